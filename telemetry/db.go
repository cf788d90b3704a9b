// Package telemetry is the SQLite-backed sidecar that records
// temperature history, outside-temperature readings, HTTP proxy
// traces, and unrecognised UDP/HTTP traffic, purely for later
// inspection -- nothing in the control-plane protocol depends on a
// write succeeding.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is stored in SQLite's user_version pragma. A mismatch
// at startup is fatal -- there is no migration path, matching the
// original's "drop the database and restart" policy.
const schemaVersion = 7

// DB is a thin wrapper around *sql.DB adding the sidecar's schema
// bootstrap and typed insert/query helpers. All writes are
// best-effort: a failed insert is logged and swallowed so a telemetry
// outage never affects the control-plane protocol.
type DB struct {
	sql     *sql.DB
	metrics Metrics
}

// Metrics is the subset of metrics.Telemetry this package reports
// through.
type Metrics interface {
	InsertOK(table string)
	InsertFailed(table string)
}

type noopMetrics struct{}

func (noopMetrics) InsertOK(string)     {}
func (noopMetrics) InsertFailed(string) {}

// Option configures a DB at Open time.
type Option func(*DB)

func WithMetrics(m Metrics) Option { return func(d *DB) { d.metrics = m } }

// Open opens (creating if necessary) the SQLite database at path,
// checks its user_version against schemaVersion, and either bootstraps
// a fresh schema or refuses to continue.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite serialises writers anyway

	d := &DB{sql: sqlDB, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.checkMigrations(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) checkMigrations(ctx context.Context) error {
	var userVersion int
	if err := d.sql.QueryRowContext(ctx, "pragma user_version").Scan(&userVersion); err != nil {
		return fmt.Errorf("telemetry: read user_version: %w", err)
	}

	switch {
	case userVersion == 0:
		slog.Warn("telemetry: initialising fresh schema", "version", schemaVersion)
		if err := d.createTables(ctx); err != nil {
			return err
		}
		if _, err := d.sql.ExecContext(ctx, fmt.Sprintf("pragma user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("telemetry: set user_version: %w", err)
		}
		return nil
	case userVersion != schemaVersion:
		return fmt.Errorf("telemetry: database at version %d, need %d: no migration path, delete the file and restart", userVersion, schemaVersion)
	default:
		return nil
	}
}

func (d *DB) createTables(ctx context.Context) error {
	statements := []string{
		`create table if not exists besim_outside_temperature(
			ts DATETIME, temp NUMERIC)`,
		`create table if not exists besim_temperature(
			ts DATETIME, thermostat TEXT, temp NUMERIC, settemp NUMERIC, heating NUMERIC)`,
		`create table if not exists web_traces(
			ts DATETIME, source TEXT, adapter_map TEXT, host TEXT, uri TEXT, elapsed NUMERIC, response_status TEXT)`,
		`create table if not exists unknown_udp(
			ts DATETIME, source TEXT, type TEXT, code NUMERIC, payload BLOB, unparsed_payload BLOB, raw_data BLOB)`,
		`create table if not exists unknown_api(
			ts DATETIME, source TEXT, host TEXT, method TEXT, uri TEXT, headers TEXT, body BLOB, remote_status TEXT, remote_body BLOB)`,
	}
	for _, stmt := range statements {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("telemetry: create table: %w", err)
		}
	}
	return nil
}

// Purge deletes every row older than daysToKeep across all five
// tables, best-effort per table.
func (d *DB) Purge(ctx context.Context, daysToKeep int) {
	limit := time.Now().UTC().AddDate(0, 0, -daysToKeep).Format(time.RFC3339)
	for _, table := range []string{"besim_outside_temperature", "besim_temperature", "web_traces", "unknown_udp", "unknown_api"} {
		if _, err := d.sql.ExecContext(ctx, fmt.Sprintf("delete from %s where ts < ?", table), limit); err != nil {
			slog.Warn("telemetry: purge failed", "table", table, "err", err)
		}
	}
}
