package telemetry

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCheckMigrations_RefusesVersionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "besim.db")

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db.sql.ExecContext(ctx, "pragma user_version = 3"); err != nil {
		t.Fatalf("force user_version: %v", err)
	}
	db.Close()

	if _, err := Open(ctx, path); err == nil {
		t.Fatal("Open with mismatched version should have failed")
	}
}
