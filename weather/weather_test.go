package weather_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/besim-go/besim/weather"
)

func TestMetNoProvider_CachesWithinTTL(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"properties":{"timeseries":[{"data":{"instant":{"details":{"air_temperature":12.3}}}}]}}`))
	}))
	defer ts.Close()

	p := weather.NewMetNoProvider(51.5, -0.12, weather.WithBaseURL(ts.URL))

	r1, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if r1.AirTemperature != 12.3 {
		t.Fatalf("AirTemperature = %v, want 12.3", r1.AirTemperature)
	}

	if _, err := p.Current(context.Background()); err != nil {
		t.Fatalf("second Current: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second Current should hit cache)", calls)
	}
}

func TestMetNoProvider_PropagatesUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := weather.NewMetNoProvider(51.5, -0.12, weather.WithBaseURL(ts.URL))
	if _, err := p.Current(context.Background()); err == nil {
		t.Fatal("expected an error for a non-200 upstream response")
	}
}
