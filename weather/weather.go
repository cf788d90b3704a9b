// Package weather fetches the current outside temperature at a fixed
// location from met.no, caching the result for an hour the way the
// original's Flask endpoint does via cachetools.TTLCache.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	apiURL    = "https://api.met.no/weatherapi/locationforecast/2.0/complete"
	userAgent = "besim/0.1 github.com/besim-go/besim"
	cacheTTL  = time.Hour
)

// Report is the subset of met.no's locationforecast response besimd
// cares about.
type Report struct {
	AirTemperature float64
}

// Provider returns the current outside temperature.
type Provider interface {
	Current(ctx context.Context) (Report, error)
}

// MetNoProvider calls met.no and caches the last good reading for
// cacheTTL, matching the original's 3600s TTL cache.
type MetNoProvider struct {
	latitude, longitude float64
	baseURL             string
	client              *http.Client

	mu       sync.Mutex
	cached   Report
	cachedAt time.Time
}

// Option configures a MetNoProvider at construction time.
type Option func(*MetNoProvider)

// WithBaseURL overrides the met.no endpoint, for tests.
func WithBaseURL(url string) Option { return func(p *MetNoProvider) { p.baseURL = url } }

// NewMetNoProvider returns a Provider for the given location.
func NewMetNoProvider(latitude, longitude float64, opts ...Option) *MetNoProvider {
	p := &MetNoProvider{
		latitude:  latitude,
		longitude: longitude,
		baseURL:   apiURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type locationForecast struct {
	Properties struct {
		Timeseries []struct {
			Data struct {
				Instant struct {
					Details struct {
						AirTemperature float64 `json:"air_temperature"`
					} `json:"details"`
				} `json:"instant"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// Current returns the cached reading if it is still fresh, otherwise
// fetches a new one from met.no.
func (p *MetNoProvider) Current(ctx context.Context) (Report, error) {
	p.mu.Lock()
	if time.Since(p.cachedAt) < cacheTTL && !p.cachedAt.IsZero() {
		r := p.cached
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	report, err := p.fetch(ctx)
	if err != nil {
		return Report{}, err
	}

	p.mu.Lock()
	p.cached = report
	p.cachedAt = time.Now()
	p.mu.Unlock()
	return report, nil
}

func (p *MetNoProvider) fetch(ctx context.Context) (Report, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%g", p.latitude))
	q.Set("lon", fmt.Sprintf("%g", p.longitude))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("weather: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather: request met.no: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("weather: met.no returned %d", resp.StatusCode)
	}

	var lf locationForecast
	if err := json.NewDecoder(resp.Body).Decode(&lf); err != nil {
		return Report{}, fmt.Errorf("weather: decode response: %w", err)
	}
	if len(lf.Properties.Timeseries) == 0 {
		return Report{}, fmt.Errorf("weather: empty timeseries")
	}

	return Report{AirTemperature: lf.Properties.Timeseries[0].Data.Instant.Details.AirTemperature}, nil
}
