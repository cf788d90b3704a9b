package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/besim-go/besim/wire"
)

func (d *DB) exec(ctx context.Context, table, query string, args ...any) {
	if _, err := d.sql.ExecContext(ctx, query, args...); err != nil {
		d.metrics.InsertFailed(table)
		slog.Warn("telemetry: insert failed", "table", table, "err", err)
		return
	}
	d.metrics.InsertOK(table)
}

// LogOutsideTemperature records a single outside-temperature sample.
func (d *DB) LogOutsideTemperature(ctx context.Context, temp float64) {
	d.exec(ctx, "besim_outside_temperature",
		`insert into besim_outside_temperature(ts, temp) values(?, ?)`,
		nowISO(), temp)
}

// LogTemperature satisfies engine.TelemetryLogger, recording a room
// reading keyed by "deviceID/roomID" the way the original keys its
// per-thermostat log rows by address.
func (d *DB) LogTemperature(deviceID, roomID uint32, temp, setTemp float64, heating *bool) {
	var heatingVal any
	if heating != nil {
		heatingVal = boolToInt(*heating)
	}
	thermostat := thermostatKey(deviceID, roomID)
	d.exec(context.Background(), "besim_temperature",
		`insert into besim_temperature(ts, thermostat, temp, settemp, heating) values(?, ?, ?, ?, ?)`,
		nowISO(), thermostat, temp, setTemp, heatingVal)
}

func thermostatKey(deviceID, roomID uint32) string {
	return fmt.Sprintf("%d/%d", deviceID, roomID)
}

// LogTraces satisfies proxy.Tracer, recording one proxied HTTP request.
func (d *DB) LogTraces(ctx context.Context, source, adapterMap, host, uri string, elapsed time.Duration, status string) {
	d.exec(ctx, "web_traces",
		`insert into web_traces(ts, source, adapter_map, host, uri, elapsed, response_status) values(?, ?, ?, ?, ?, ?, ?)`,
		nowISO(), source, adapterMap, host, uri, elapsed.Seconds(), status)
}

// LogUnknownUDP satisfies engine.UnknownUDPLogger, recording a
// datagram the engine could not fully interpret: either its message
// type is unrecognised, or a handler left part of the body unread.
func (d *DB) LogUnknownUDP(msgType wire.MsgID, source string, raw, payload, unparsed []byte) {
	d.exec(context.Background(), "unknown_udp",
		`insert into unknown_udp(ts, source, type, code, payload, unparsed_payload, raw_data) values(?, ?, ?, ?, ?, ?, ?)`,
		nowISO(), source, msgType.String(), uint8(msgType), payload, unparsed, raw)
}

// LogUnknownAPI records a proxied request to a local route the router
// does not recognise, along with what the upstream returned.
func (d *DB) LogUnknownAPI(ctx context.Context, source, host, method, uri string, headers map[string][]string, body []byte, remoteStatus string, remoteBody []byte) {
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		headerJSON = []byte("{}")
	}
	d.exec(ctx, "unknown_api",
		`insert into unknown_api(ts, source, host, method, uri, headers, body, remote_status, remote_body) values(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nowISO(), source, host, method, uri, string(headerJSON), body, remoteStatus, remoteBody)
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
