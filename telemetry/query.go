package telemetry

import (
	"context"
	"fmt"
	"strings"
)

// Sample is one (timestamp, value) pair, shared by the outside- and
// room-temperature history queries.
type Sample struct {
	Timestamp string
	Value     float64
}

// GetOutsideTemperature returns up to limit outside-temperature
// samples, most recent first.
func (d *DB) GetOutsideTemperature(ctx context.Context, limit int) ([]Sample, error) {
	rows, err := d.sql.QueryContext(ctx,
		`select ts, temp from besim_outside_temperature order by ts desc limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query outside temperature: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Timestamp, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RoomSample is one room-temperature history row.
type RoomSample struct {
	Timestamp string
	Temp      float64
	SetTemp   float64
	Heating   *bool
}

// GetTemperature returns up to limit history rows for the given
// "deviceID/roomID" thermostat key, most recent first.
func (d *DB) GetTemperature(ctx context.Context, thermostat string, limit int) ([]RoomSample, error) {
	rows, err := d.sql.QueryContext(ctx,
		`select ts, temp, settemp, heating from besim_temperature where thermostat = ? order by ts desc limit ?`,
		thermostat, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query temperature: %w", err)
	}
	defer rows.Close()

	var out []RoomSample
	for rows.Next() {
		var s RoomSample
		var heating *int
		if err := rows.Scan(&s.Timestamp, &s.Temp, &s.SetTemp, &heating); err != nil {
			return nil, err
		}
		if heating != nil {
			v := *heating != 0
			s.Heating = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CallFilter narrows a Calls query to rows whose column contains
// value, case-insensitively, mirroring the original's dynamic
// LIKE-clause filter dict.
type CallFilter struct {
	Column string
	Value  string
}

// Trace is one web_traces row.
type Trace struct {
	Timestamp      string
	Source         string
	AdapterMap     string
	Host           string
	URI            string
	ElapsedSeconds float64
	ResponseStatus string
}

var traceColumns = map[string]bool{
	"source": true, "adapter_map": true, "host": true, "uri": true, "response_status": true,
}

// GetCalls returns paginated web_traces rows, most recent first,
// optionally narrowed by filters (only whitelisted columns are
// honoured, same as the original's column allowlist).
func (d *DB) GetCalls(ctx context.Context, filters []CallFilter, limit, offset int) ([]Trace, error) {
	query := `select ts, source, adapter_map, host, uri, elapsed, response_status from web_traces`
	where, args := buildLikeWhere(filters, traceColumns)
	query += where + ` order by ts desc limit ? offset ?`
	args = append(args, limit, offset)

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query calls: %w", err)
	}
	defer rows.Close()

	var out []Trace
	for rows.Next() {
		var t Trace
		if err := rows.Scan(&t.Timestamp, &t.Source, &t.AdapterMap, &t.Host, &t.URI, &t.ElapsedSeconds, &t.ResponseStatus); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CallGroup is one row of GetCallsGroup's grouped-count result.
type CallGroup struct {
	Host  string
	URI   string
	Count int
}

// GetCallsGroup returns call counts grouped by (host, uri), optionally
// filtered the same way as GetCalls.
func (d *DB) GetCallsGroup(ctx context.Context, filters []CallFilter) ([]CallGroup, error) {
	query := `select host, uri, count(*) from web_traces`
	where, args := buildLikeWhere(filters, traceColumns)
	query += where + ` group by host, uri order by count(*) desc`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query calls group: %w", err)
	}
	defer rows.Close()

	var out []CallGroup
	for rows.Next() {
		var g CallGroup
		if err := rows.Scan(&g.Host, &g.URI, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UnknownUDPGroup is one deduplicated unknown_udp row, with its BLOB
// payload rendered as a hex string (mirroring the original's hex() on
// the raw column for readability).
type UnknownUDPGroup struct {
	Type    string
	Code    int
	RawHex  string
	Count   int
}

// GetUnknownUDP returns deduplicated unknown-UDP-type counts, most
// frequent first.
func (d *DB) GetUnknownUDP(ctx context.Context) ([]UnknownUDPGroup, error) {
	rows, err := d.sql.QueryContext(ctx,
		`select type, code, hex(raw_data), count(*) from unknown_udp group by type, code, raw_data order by count(*) desc`)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query unknown udp: %w", err)
	}
	defer rows.Close()

	var out []UnknownUDPGroup
	for rows.Next() {
		var g UnknownUDPGroup
		if err := rows.Scan(&g.Type, &g.Code, &g.RawHex, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UnknownAPIGroup is one deduplicated unknown-API row.
type UnknownAPIGroup struct {
	Host   string
	Method string
	URI    string
	Count  int
}

// GetUnknownAPI returns deduplicated unknown-route counts, most
// frequent first.
func (d *DB) GetUnknownAPI(ctx context.Context) ([]UnknownAPIGroup, error) {
	rows, err := d.sql.QueryContext(ctx,
		`select host, method, uri, count(*) from unknown_api group by host, method, uri order by count(*) desc`)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query unknown api: %w", err)
	}
	defer rows.Close()

	var out []UnknownAPIGroup
	for rows.Next() {
		var g UnknownAPIGroup
		if err := rows.Scan(&g.Host, &g.Method, &g.URI, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func buildLikeWhere(filters []CallFilter, allowed map[string]bool) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	for _, f := range filters {
		if !allowed[f.Column] {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s like ?", f.Column))
		args = append(args, "%"+f.Value+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}
