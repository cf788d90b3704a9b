// Package localapp serves the fixed endpoints a real thermostat's
// besmart-home.com firmware expects to resolve locally: the firmware
// version check and the hourly outside-temperature poll.
package localapp

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/besim-go/besim/weather"
)

const versionResponse = "1+0654918011102+http://www.besmart-home.com/fwUpgrade/PR06549/0654918011102.bin"

// Handler builds the local-app mux: fwUpgrade version check and the
// getWebTemperature endpoint real devices poll hourly.
func Handler(w weather.Provider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/fwUpgrade/PR06549/version.txt", handleVersion)
	mux.HandleFunc("/WifiBoxInterface_vokera/getWebTemperature.php", handleWebTemperature(w))
	mux.HandleFunc("/", handleIndex)
	return mux
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, versionResponse)
}

// handleWebTemperature returns the rounded outside temperature as
// plain ASCII, or the literal string "E_1" on any failure -- a real
// device treats this as a best-effort poll, not something it reports
// back to the app.
func handleWebTemperature(provider weather.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := provider.Current(r.Context())
		if err != nil {
			slog.Debug("localapp: getWebTemperature upstream failed", "err", err)
			fmt.Fprint(w, "E_1")
			return
		}
		fmt.Fprintf(w, "%d", int(math.Round(report.AirTemperature)))
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "BeSim local app")
}
