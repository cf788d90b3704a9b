package restapi

import (
	"encoding/json"
	"net/http"

	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

// writeableParam binds a room field's URL segment to the SET_* message
// that mutates it and the accessor that reads it back, mirroring the
// original's resource_class_kwargs={"param":..., "msgId":...} table.
type writeableParam struct {
	name   string
	msgID  wire.MsgID
	get    func(r *shadow.Room) any
}

var writeableParams = []writeableParam{
	{"t1", wire.SetT1, func(r *shadow.Room) any { return r.T1 }},
	{"t2", wire.SetT2, func(r *shadow.Room) any { return r.T2 }},
	{"t3", wire.SetT3, func(r *shadow.Room) any { return r.T3 }},
	{"tempcurve", wire.SetCurve, func(r *shadow.Room) any { return r.TempCurve }},
	{"minsetp", wire.SetMinHeatSetp, func(r *shadow.Room) any { return r.MinSetp }},
	{"maxsetp", wire.SetMaxHeatSetp, func(r *shadow.Room) any { return r.MaxSetp }},
	{"units", wire.SetUnits, func(r *shadow.Room) any { return uint8(r.Units) }},
	{"winter", wire.SetSeason, func(r *shadow.Room) any { return boolToU8(r.Winter) }},
	{"sensorinfluence", wire.SetSensorInfluence, func(r *shadow.Room) any { return r.SensorInfluence }},
	{"advance", wire.SetAdvance, func(r *shadow.Room) any { return boolToU8(r.Advance) }},
	{"mode", wire.SetMode, func(r *shadow.Room) any { return uint8(r.Mode) }},
}

// readonlyParam exposes a room field the thermostat never accepts a
// write for -- the original's ReadonlyParamResource list.
type readonlyParam struct {
	name string
	get  func(r *shadow.Room) any
}

var readonlyParams = []readonlyParam{
	{"boost", func(r *shadow.Room) any { return r.Boost }},
	{"temp", func(r *shadow.Room) any { return r.Temp }},
	{"settemp", func(r *shadow.Room) any { return r.SetTemp }},
	{"cmdissued", func(r *shadow.Room) any { return r.CmdIssued }},
}

// deviceReadonlyParam exposes one OpenTherm boiler reading off the
// device rather than a room -- the original's ReadonlyParamResource
// registered without a roomid, keyed by device instead.
type deviceReadonlyParam struct {
	name string
	get  func(d *shadow.Device) any
}

var deviceReadonlyParams = []deviceReadonlyParam{
	{"boilerOn", func(d *shadow.Device) any { return d.BoilerOn }},
	{"dhwMode", func(d *shadow.Device) any { return d.DHWMode }},
	{"tFLO", func(d *shadow.Device) any { return d.TFLO }},
	{"trEt", func(d *shadow.Device) any { return d.TREt }},
	{"tdH", func(d *shadow.Device) any { return d.TdH }},
	{"tFLU", func(d *shadow.Device) any { return d.TFLU }},
	{"tESt", func(d *shadow.Device) any { return d.TESt }},
	{"MOdU", func(d *shadow.Device) any { return d.MOdU }},
	{"FLOr", func(d *shadow.Device) any { return d.FLOr }},
	{"HOUr", func(d *shadow.Device) any { return d.HOUr }},
	{"PrES", func(d *shadow.Device) any { return d.PrES }},
	{"tFL2", func(d *shadow.Device) any { return d.TFL2 }},
}

func (a *API) handleDeviceParamGet(get func(d *shadow.Device) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, ok := pathUint32(r, "deviceid")
		if !ok || !a.store.DeviceExists(deviceID) {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, get(a.store.Device(deviceID)))
	}
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (a *API) room(w http.ResponseWriter, r *http.Request) (deviceID, roomID uint32, room *shadow.Room, ok bool) {
	deviceID, ok1 := pathUint32(r, "deviceid")
	roomID, ok2 := pathUint32(r, "roomid")
	if !ok1 || !ok2 || !a.store.RoomExists(deviceID, roomID) {
		writeNotFound(w)
		return 0, 0, nil, false
	}
	return deviceID, roomID, a.store.Room(deviceID, roomID), true
}

func (a *API) handleParamGet(get func(r *shadow.Room) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, room, ok := a.room(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, get(room))
	}
}

func (a *API) handleParamPut(p writeableParam) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID, roomID, _, ok := a.room(w, r)
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
		device := a.engine.Device(deviceID)

		if a.engine.SendRoomParam(addr, device, deviceID, roomID, p.msgID, val) {
			writeOK(w)
		} else {
			writeError(w)
		}
	}
}

func (a *API) handleFakeBoostGet(w http.ResponseWriter, r *http.Request) {
	_, _, room, ok := a.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.FakeBoost != 0)
}

func (a *API) handleFakeBoostPut(w http.ResponseWriter, r *http.Request) {
	deviceID, roomID, _, ok := a.room(w, r)
	if !ok {
		return
	}
	val, ok := decodeJSONBool(r)
	if !ok {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	addr, ok := a.engine.PeerAddr(deviceID)
	if !ok {
		writeError(w)
		return
	}
	device := a.engine.Device(deviceID)

	var success bool
	if val {
		success = a.engine.EnableFakeBoost(addr, device, deviceID, roomID)
	} else {
		a.engine.DisableFakeBoost(addr, device, deviceID, roomID)
		success = true
	}

	if success {
		writeOK(w)
	} else {
		writeError(w)
	}
}

func decodeJSONBool(r *http.Request) (bool, bool) {
	var v bool
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return false, false
	}
	return v, true
}

func (a *API) handleDays(w http.ResponseWriter, r *http.Request) {
	_, _, room, ok := a.room(w, r)
	if !ok {
		return
	}
	days := make([]uint8, 0, len(room.Days))
	for d := range room.Days {
		days = append(days, d)
	}
	writeJSON(w, http.StatusOK, days)
}

func (a *API) handleDayGet(w http.ResponseWriter, r *http.Request) {
	_, _, room, ok := a.room(w, r)
	if !ok {
		return
	}
	day, ok := pathUint8(r, "dayid")
	if !ok {
		writeNotFound(w)
		return
	}
	prog, exists := room.Days[day]
	if !exists {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// handleDayPut pushes a new day program to the device. The protocol's
// PROGRAM downlink carries no usable acknowledgement (see
// engine.SendProgramWrite), so unlike every other writeable param this
// always reports success once the datagram is sent.
func (a *API) handleDayPut(w http.ResponseWriter, r *http.Request) {
	deviceID, roomID, _, ok := a.room(w, r)
	if !ok {
		return
	}
	day, ok := pathUint8(r, "dayid")
	if !ok {
		writeNotFound(w)
		return
	}

	var prog shadow.DayProgram
	if err := json.NewDecoder(r.Body).Decode(&prog); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	addr, ok := a.engine.PeerAddr(deviceID)
	if !ok {
		writeError(w)
		return
	}
	a.engine.SendProgramWrite(addr, deviceID, roomID, day, prog)
	writeOK(w)
}
