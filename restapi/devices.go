package restapi

import (
	"net/http"
	"time"

	"github.com/besim-go/besim/shadow"
)

// deviceView and roomView are the JSON shapes returned by the
// device/room read endpoints -- a flattened snapshot of the shadow
// struct fields the original's getDeviceStatus/getRoomStatus dict
// comprehensions expose.
type deviceView struct {
	ID         uint32   `json:"deviceid"`
	Addr       string   `json:"addr"`
	Version    string   `json:"version"`
	BoilerOn   bool     `json:"boileron"`
	DHWMode    bool     `json:"dhwmode"`
	TFLO       int16    `json:"tflo"`
	TREt       int16    `json:"tret"`
	TdH        int16    `json:"tdh"`
	TFLU       int16    `json:"tflu"`
	TESt       int16    `json:"test"`
	MOdU       int16    `json:"modu"`
	FLOr       int16    `json:"flor"`
	HOUr       int16    `json:"hour"`
	PrES       int16    `json:"pres"`
	TFL2       int16    `json:"tfl2"`
	WifiSignal uint8    `json:"wifisignal"`
	LastSeen   int64    `json:"lastseen"`
	Rooms      []uint32 `json:"rooms"`
}

type roomView struct {
	Temp            int16  `json:"temp"`
	SetTemp         int16  `json:"settemp"`
	T1              int16  `json:"t1"`
	T2              int16  `json:"t2"`
	T3              int16  `json:"t3"`
	MinSetp         int16  `json:"minsetp"`
	MaxSetp         int16  `json:"maxsetp"`
	Mode            string `json:"mode"`
	TempCurve       uint8  `json:"tempcurve"`
	HeatingSetp     uint8  `json:"heatingsetp"`
	SensorInfluence uint8  `json:"sensorinfluence"`
	Units           uint8  `json:"units"`
	Advance         bool   `json:"advance"`
	Boost           bool   `json:"boost"`
	CmdIssued       bool   `json:"cmdissued"`
	Winter          bool   `json:"winter"`
	Heating         *bool  `json:"heating"`
	LastSeen        int64  `json:"lastseen"`
	FakeBoost       int64  `json:"fakeboost"`
}

func toDeviceView(d *shadow.Device) deviceView {
	rooms := make([]uint32, 0, len(d.Rooms))
	for id := range d.Rooms {
		rooms = append(rooms, id)
	}
	return deviceView{
		ID: d.ID, Addr: d.Addr, Version: d.Version, BoilerOn: d.BoilerOn, DHWMode: d.DHWMode,
		TFLO: d.TFLO, TREt: d.TREt, TdH: d.TdH, TFLU: d.TFLU, TESt: d.TESt,
		MOdU: d.MOdU, FLOr: d.FLOr, HOUr: d.HOUr, PrES: d.PrES, TFL2: d.TFL2,
		WifiSignal: d.WifiSignal, LastSeen: d.LastSeen,
		Rooms: rooms,
	}
}

func toRoomView(r *shadow.Room) roomView {
	return roomView{
		Temp: r.Temp, SetTemp: r.SetTemp, T1: r.T1, T2: r.T2, T3: r.T3,
		MinSetp: r.MinSetp, MaxSetp: r.MaxSetp, Mode: r.Mode.String(),
		TempCurve: r.TempCurve, HeatingSetp: r.HeatingSetp, SensorInfluence: r.SensorInfluence,
		Units: uint8(r.Units), Advance: r.Advance, Boost: r.Boost, CmdIssued: r.CmdIssued,
		Winter: r.Winter, Heating: r.Heating, LastSeen: r.LastSeen, FakeBoost: r.FakeBoost,
	}
}

func (a *API) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.DeviceIDs())
}

func (a *API) handleDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathUint32(r, "deviceid")
	if !ok || !a.store.DeviceExists(deviceID) {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceView(a.store.Device(deviceID)))
}

// handleRooms lists only rooms heard from within the last 600s,
// matching the original's lastseen filter in the Rooms resource.
func (a *API) handleRooms(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathUint32(r, "deviceid")
	if !ok || !a.store.DeviceExists(deviceID) {
		writeNotFound(w)
		return
	}
	now := time.Now().Unix()
	var live []uint32
	for _, roomID := range a.store.RoomIDs(deviceID) {
		if a.store.Room(deviceID, roomID).Live(now) {
			live = append(live, roomID)
		}
	}
	writeJSON(w, http.StatusOK, live)
}

func (a *API) handleRoom(w http.ResponseWriter, r *http.Request) {
	deviceID, ok1 := pathUint32(r, "deviceid")
	roomID, ok2 := pathUint32(r, "roomid")
	if !ok1 || !ok2 || !a.store.RoomExists(deviceID, roomID) {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, toRoomView(a.store.Room(deviceID, roomID)))
}
