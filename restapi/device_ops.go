package restapi

import "net/http"

func (a *API) deviceAndAddr(w http.ResponseWriter, r *http.Request) (deviceID uint32, ok bool) {
	deviceID, ok = pathUint32(r, "deviceid")
	if !ok || !a.store.DeviceExists(deviceID) {
		writeNotFound(w)
		return 0, false
	}
	return deviceID, true
}

func (a *API) handleTimeGet(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.deviceAndAddr(w, r)
	if !ok {
		return
	}
	addr, ok := a.engine.PeerAddr(deviceID)
	if !ok {
		writeError(w)
		return
	}
	val, ok := a.engine.ReadDeviceTime(addr, a.engine.Device(deviceID), deviceID)
	if !ok {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, val)
}

func (a *API) handleTimePut(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.deviceAndAddr(w, r)
	if !ok {
		return
	}
	val, ok := decodeJSONNumber(r)
	if !ok {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	addr, ok := a.engine.PeerAddr(deviceID)
	if !ok {
		writeError(w)
		return
	}
	if a.engine.SendDeviceTime(addr, a.engine.Device(deviceID), deviceID, uint8(val)) {
		writeOK(w)
	} else {
		writeError(w)
	}
}

func (a *API) handleOutsideTempPut(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.deviceAndAddr(w, r)
	if !ok {
		return
	}
	val, ok := decodeJSONNumber(r)
	if !ok {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	addr, ok := a.engine.PeerAddr(deviceID)
	if !ok {
		writeError(w)
		return
	}
	if a.engine.SendOutsideTemp(addr, a.engine.Device(deviceID), deviceID, uint8(val)) {
		writeOK(w)
	} else {
		writeError(w)
	}
}
