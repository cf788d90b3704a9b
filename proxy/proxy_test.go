package proxy_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/besim-go/besim/proxy"
)

func TestServeHTTP_LocalHostBypassesPolicy(t *testing.T) {
	local := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("local"))
	})
	router := mux.NewRouter()

	m := proxy.New(local, router, "8.8.8.8")

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1/whatever", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Body.String() != "local" {
		t.Fatalf("body = %q, want local", rec.Body.String())
	}
}

func TestServeHTTP_OnlyLocalRuleNeverCallsUpstream(t *testing.T) {
	local := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("static-asset"))
	})
	router := mux.NewRouter()
	router.HandleFunc("/static/app.js", func(w http.ResponseWriter, r *http.Request) {})

	m := proxy.New(local, router, "203.0.113.1") // unroutable resolver: would fail if ever dialed

	req := httptest.NewRequest(http.MethodGet, "http://api.besmart-home.com/static/app.js", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Body.String() != "static-asset" {
		t.Fatalf("body = %q, want static-asset", rec.Body.String())
	}
}

func TestServeHTTP_RemoteIfMissingFallsBackToLocalWhenRouted(t *testing.T) {
	local := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("device-api"))
	})
	router := mux.NewRouter()
	router.HandleFunc("/api/v1.0/devices", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodGet)

	m := proxy.New(local, router, "203.0.113.1", proxy.WithRules([]proxy.Rule{}))

	req := httptest.NewRequest(http.MethodGet, "http://api.besmart-home.com/api/v1.0/devices", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if rec.Body.String() != "device-api" {
		t.Fatalf("body = %q, want device-api (local route exists, should not force remote)", rec.Body.String())
	}
}
