// Package restapi is the JSON control/inspection API: a thin
// translation layer over the shadow store and the engine's downlink
// senders, routed with gorilla/mux the way the original routes with
// flask_restful.
package restapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/besim-go/besim/engine"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/telemetry"
	"github.com/besim-go/besim/weather"
)

// API bundles every dependency the route handlers close over.
type API struct {
	store     *shadow.Store
	engine    *engine.Engine
	telemetry *telemetry.DB
	weather   weather.Provider
}

// New builds the restapi router. engine and telemetry may be nil in
// tests that only exercise read-only routes.
func New(store *shadow.Store, eng *engine.Engine, db *telemetry.DB, w weather.Provider) *API {
	return &API{store: store, engine: eng, telemetry: db, weather: w}
}

// Router returns the mux.Router every route is registered on, shared
// with the proxy's REMOTE_IF_MISSING route-existence probe.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1.0").Subrouter()

	v1.HandleFunc("/devices", a.handleDevices).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}", a.handleDevice).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/rooms", a.handleRooms).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}", a.handleRoom).Methods(http.MethodGet)

	v1.HandleFunc("/devices/{deviceid}/time", a.handleTimeGet).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/time", a.handleTimePut).Methods(http.MethodPut)
	v1.HandleFunc("/devices/{deviceid}/outsidetemp", a.handleOutsideTempPut).Methods(http.MethodPut)

	for _, p := range writeableParams {
		p := p
		v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/"+p.name, a.handleParamGet(p.get)).Methods(http.MethodGet)
		v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/"+p.name, a.handleParamPut(p)).Methods(http.MethodPut)
	}
	for _, p := range readonlyParams {
		p := p
		v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/"+p.name, a.handleParamGet(p.get)).Methods(http.MethodGet)
	}
	for _, p := range deviceReadonlyParams {
		p := p
		v1.HandleFunc("/devices/{deviceid}/"+p.name, a.handleDeviceParamGet(p.get)).Methods(http.MethodGet)
	}

	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/fakeboost", a.handleFakeBoostGet).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/fakeboost", a.handleFakeBoostPut).Methods(http.MethodPut)

	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/days", a.handleDays).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/days/{dayid}", a.handleDayGet).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/days/{dayid}", a.handleDayPut).Methods(http.MethodPut)

	v1.HandleFunc("/devices/{deviceid}/rooms/{roomid}/history", a.handleRoomHistory).Methods(http.MethodGet)

	v1.HandleFunc("/weather", a.handleWeather).Methods(http.MethodGet)
	v1.HandleFunc("/weather/history", a.handleWeatherHistory).Methods(http.MethodGet)

	v1.HandleFunc("/call/history", a.handleCallHistory).Methods(http.MethodGet)
	v1.HandleFunc("/call/unknown/udp", a.handleUnknownUDP).Methods(http.MethodGet)
	v1.HandleFunc("/call/unknown/api", a.handleUnknownAPI).Methods(http.MethodGet)

	return r
}

type okMessage struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter)    { writeJSON(w, http.StatusOK, okMessage{"OK"}) }
func writeError(w http.ResponseWriter) { writeJSON(w, http.StatusInternalServerError, okMessage{"ERROR"}) }
func writeNotFound(w http.ResponseWriter) { http.Error(w, "not found", http.StatusNotFound) }

func pathUint32(r *http.Request, name string) (uint32, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	return uint32(v), err == nil
}

func pathUint8(r *http.Request, name string) (uint8, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 8)
	return uint8(v), err == nil
}

func decodeJSONNumber(r *http.Request) (int64, bool) {
	var v float64
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return 0, false
	}
	return int64(v), true
}
