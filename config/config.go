// Package config loads and persists besimd's YAML configuration file,
// following the teacher's load/mutate/write-back lifecycle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable besimd needs at startup. Zero values are
// filled in by Default before a file is loaded over them.
type Config struct {
	mu sync.RWMutex `yaml:"-"`

	// UDPListenAddr is where the control-plane engine listens for
	// device traffic, e.g. "0.0.0.0:6199".
	UDPListenAddr string `yaml:"udp_listen_addr"`

	// CloudRelay, if Enabled, makes the engine mirror all traffic to
	// the vendor's real cloud endpoint in addition to answering it.
	CloudRelay CloudRelayConfig `yaml:"cloud_relay"`

	// RESTListenAddr serves the JSON control/inspection API.
	RESTListenAddr string `yaml:"rest_listen_addr"`

	// ProxyListenAddr serves the dual-stack HTTP proxy.
	ProxyListenAddr string `yaml:"proxy_listen_addr"`

	// LocalAppListenAddr serves the fixed-response firmware/weather
	// endpoints a real thermostat expects to find locally.
	LocalAppListenAddr string `yaml:"localapp_listen_addr"`

	// SQLitePath is the telemetry sidecar's database file.
	SQLitePath string `yaml:"sqlite_path"`

	// CapturePath is the append-only hex-dump side-log. Empty disables
	// capture.
	CapturePath string `yaml:"capture_path"`

	// Weather is the fixed location used to answer the local app's
	// outside-temperature endpoint.
	Weather WeatherConfig `yaml:"weather"`

	// DaysToKeep controls telemetry.Purge's retention window.
	DaysToKeep int `yaml:"days_to_keep"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
}

type CloudRelayConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CloudHost  string `yaml:"cloud_host"`
	Nameserver string `yaml:"nameserver"`
}

type WeatherConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Default returns the configuration besimd runs with if no file is
// found, or to fill gaps a partial file leaves unset.
func Default() *Config {
	return &Config{
		UDPListenAddr:       ":6199",
		RESTListenAddr:      ":8080",
		ProxyListenAddr:     ":8081",
		LocalAppListenAddr:  ":80",
		SQLitePath:          "besim.db",
		CapturePath:         "",
		DaysToKeep:          30,
		CloudRelay: CloudRelayConfig{
			CloudHost:  "further.logicwireless.com",
			Nameserver: "8.8.8.8",
		},
		Weather: WeatherConfig{Latitude: 51.5, Longitude: -0.12},
	}
}

// Load reads path into a fresh Config built on top of Default, so a
// file only needs to mention the fields it overrides.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path atomically (write to a temp file, then
// rename), matching the teacher's crash-safe write-back pattern.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	return os.Rename(f.Name(), path)
}
