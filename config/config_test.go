package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/besim-go/besim/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if c.UDPListenAddr != ":6199" {
		t.Fatalf("UDPListenAddr = %q, want default", c.UDPListenAddr)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("udp_listen_addr: \":9999\"\ndays_to_keep: 7\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.UDPListenAddr != ":9999" {
		t.Fatalf("UDPListenAddr = %q, want :9999", c.UDPListenAddr)
	}
	if c.DaysToKeep != 7 {
		t.Fatalf("DaysToKeep = %d, want 7", c.DaysToKeep)
	}
	if c.RESTListenAddr != ":8080" {
		t.Fatalf("RESTListenAddr = %q, want default to survive partial override", c.RESTListenAddr)
	}
}

func TestSave_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := config.Default()
	c.DaysToKeep = 14

	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if reloaded.DaysToKeep != 14 {
		t.Fatalf("DaysToKeep = %d, want 14", reloaded.DaysToKeep)
	}
}
