package restapi

import (
	"net/http"
	"strconv"

	"github.com/besim-go/besim/telemetry"
)

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (a *API) handleWeather(w http.ResponseWriter, r *http.Request) {
	if a.weather == nil {
		writeJSON(w, http.StatusServiceUnavailable, okMessage{"no weather provider configured"})
		return
	}
	report, err := a.weather.Current(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, okMessage{err.Error()})
		return
	}
	if a.telemetry != nil {
		a.telemetry.LogOutsideTemperature(r.Context(), report.AirTemperature)
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	if a.telemetry == nil {
		writeJSON(w, http.StatusOK, []telemetry.Sample{})
		return
	}
	samples, err := a.telemetry.GetOutsideTemperature(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (a *API) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, roomID, _, ok := a.room(w, r)
	if !ok {
		return
	}
	if a.telemetry == nil {
		writeJSON(w, http.StatusOK, []telemetry.RoomSample{})
		return
	}
	key := strconv.FormatUint(uint64(deviceID), 10) + "/" + strconv.FormatUint(uint64(roomID), 10)
	samples, err := a.telemetry.GetTemperature(r.Context(), key, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (a *API) handleCallHistory(w http.ResponseWriter, r *http.Request) {
	if a.telemetry == nil {
		writeJSON(w, http.StatusOK, []telemetry.CallGroup{})
		return
	}
	var filters []telemetry.CallFilter
	if host := r.URL.Query().Get("host"); host != "" {
		filters = append(filters, telemetry.CallFilter{Column: "host", Value: host})
	}
	groups, err := a.telemetry.GetCallsGroup(r.Context(), filters)
	if err != nil {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleUnknownUDP(w http.ResponseWriter, r *http.Request) {
	if a.telemetry == nil {
		writeJSON(w, http.StatusOK, []telemetry.UnknownUDPGroup{})
		return
	}
	groups, err := a.telemetry.GetUnknownUDP(r.Context())
	if err != nil {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleUnknownAPI(w http.ResponseWriter, r *http.Request) {
	if a.telemetry == nil {
		writeJSON(w, http.StatusOK, []telemetry.UnknownAPIGroup{})
		return
	}
	groups, err := a.telemetry.GetUnknownAPI(r.Context())
	if err != nil {
		writeError(w)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}
