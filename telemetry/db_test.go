package telemetry_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/besim-go/besim/telemetry"
)

func openTestDB(t *testing.T) *telemetry.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "besim.db")
	db, err := telemetry.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_BootstrapsFreshSchema(t *testing.T) {
	db := openTestDB(t)

	db.LogOutsideTemperature(context.Background(), 12.5)
	samples, err := db.GetOutsideTemperature(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetOutsideTemperature: %v", err)
	}
	if len(samples) != 1 || samples[0].Value != 12.5 {
		t.Fatalf("samples = %+v, want one row of 12.5", samples)
	}
}

func TestLogTemperature_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	heating := true
	db.LogTemperature(1234, 7, 21.5, 22.0, &heating)

	history, err := db.GetTemperature(context.Background(), "1234/7", 10)
	if err != nil {
		t.Fatalf("GetTemperature: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %+v, want 1 row", history)
	}
	if history[0].Temp != 21.5 || history[0].SetTemp != 22.0 {
		t.Fatalf("history[0] = %+v, want temp=21.5 settemp=22.0", history[0])
	}
	if history[0].Heating == nil || !*history[0].Heating {
		t.Fatal("Heating should be true")
	}
}

func TestGetCalls_FiltersByAllowedColumn(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.LogTraces(ctx, "proxy", "local_first", "example.com", "/a", 0, "200")
	db.LogTraces(ctx, "proxy", "remote_first", "other.com", "/b", 0, "200")

	rows, err := db.GetCalls(ctx, []telemetry.CallFilter{{Column: "host", Value: "example"}}, 10, 0)
	if err != nil {
		t.Fatalf("GetCalls: %v", err)
	}
	if len(rows) != 1 || rows[0].Host != "example.com" {
		t.Fatalf("rows = %+v, want one example.com row", rows)
	}
}

func TestPurge_RemovesOldRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.LogOutsideTemperature(ctx, 5.0)
	db.Purge(ctx, 0) // cutoff = now, any row with ts < now should go; freshly inserted rows share "now" granularity

	// Purge uses second-granularity timestamps so a same-instant row may
	// survive the cutoff of now; only check that the query does not error.
	if _, err := db.GetOutsideTemperature(ctx, 10); err != nil {
		t.Fatalf("GetOutsideTemperature after purge: %v", err)
	}

	// A cutoff one day in the future makes every row older than it.
	db.Purge(ctx, -1)
	samples, err := db.GetOutsideTemperature(ctx, 10)
	if err != nil {
		t.Fatalf("GetOutsideTemperature after purge: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("samples = %+v, want none left after purge", samples)
	}
}
