// Package metrics instruments the engine, proxy and telemetry sidecar
// with Prometheus counters and histograms. Every consumer depends on
// a small interface, not the concrete *Registry, so unit tests can
// leave metrics unset: the engine, proxy and telemetry packages each
// fall back to their own no-op implementation and never touch a real
// registry.
package metrics

import (
	"time"

	"github.com/besim-go/besim/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the subset of metrics the UDP engine reports.
type Engine interface {
	DatagramReceived()
	DatagramDropped(reason string)
	MessageDispatched(msgType wire.MsgID)
	HandlerPanic(msgType wire.MsgID)
	FakeBoostTransition(kind string)
	DownlinkLatency(msgType wire.MsgID, d time.Duration)
}

// Proxy is the subset of metrics the HTTP proxy reports.
type Proxy interface {
	RequestServed(behavior string, status int, d time.Duration)
	UnknownAPI()
}

// Telemetry is the subset of metrics the sidecar reports.
type Telemetry interface {
	InsertOK(table string)
	InsertFailed(table string)
}

// Registry is the concrete Prometheus-backed implementation of Engine,
// Proxy and Telemetry.
type Registry struct {
	datagramsReceived prometheus.Counter
	datagramsDropped  *prometheus.CounterVec
	messagesDispatched *prometheus.CounterVec
	handlerPanics      *prometheus.CounterVec
	fakeBoostTransitions *prometheus.CounterVec
	downlinkLatency      *prometheus.HistogramVec

	proxyRequests *prometheus.HistogramVec
	unknownAPI    prometheus.Counter

	telemetryInserts *prometheus.CounterVec
}

// NewRegistry builds a Registry and registers all of its collectors
// with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "udp", Name: "datagrams_received_total",
			Help: "Total UDP datagrams received by the engine.",
		}),
		datagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "udp", Name: "datagrams_dropped_total",
			Help: "Datagrams dropped before dispatch, by reason.",
		}, []string{"reason"}),
		messagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "udp", Name: "messages_dispatched_total",
			Help: "Messages whose wrapper decoded, by type, counted before handler lookup (unhandled types included).",
		}, []string{"msg_type"}),
		handlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "udp", Name: "handler_panics_total",
			Help: "Handler panics recovered by the engine, by message type.",
		}, []string{"msg_type"}),
		fakeBoostTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "udp", Name: "fakeboost_transitions_total",
			Help: "Fake-boost state transitions, by kind (enable/disable).",
		}, []string{"kind"}),
		downlinkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "besim", Subsystem: "udp", Name: "downlink_wait_seconds",
			Help:    "Time spent waiting for an acknowledged downlink, by message type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"msg_type"}),
		proxyRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "besim", Subsystem: "proxy", Name: "request_duration_seconds",
			Help:    "HTTP proxy request latency, by resolved behavior and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"behavior", "status"}),
		unknownAPI: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "proxy", Name: "unknown_api_total",
			Help: "Requests to unmapped local routes forwarded upstream.",
		}),
		telemetryInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "besim", Subsystem: "telemetry", Name: "inserts_total",
			Help: "Telemetry sidecar insert attempts, by table and outcome.",
		}, []string{"table", "outcome"}),
	}

	reg.MustRegister(
		r.datagramsReceived, r.datagramsDropped, r.messagesDispatched,
		r.handlerPanics, r.fakeBoostTransitions, r.downlinkLatency,
		r.proxyRequests, r.unknownAPI, r.telemetryInserts,
	)
	return r
}

func (r *Registry) DatagramReceived()               { r.datagramsReceived.Inc() }
func (r *Registry) DatagramDropped(reason string)   { r.datagramsDropped.WithLabelValues(reason).Inc() }
func (r *Registry) MessageDispatched(id wire.MsgID)  { r.messagesDispatched.WithLabelValues(id.String()).Inc() }
func (r *Registry) HandlerPanic(id wire.MsgID)       { r.handlerPanics.WithLabelValues(id.String()).Inc() }
func (r *Registry) FakeBoostTransition(kind string)  { r.fakeBoostTransitions.WithLabelValues(kind).Inc() }
func (r *Registry) DownlinkLatency(id wire.MsgID, d time.Duration) {
	r.downlinkLatency.WithLabelValues(id.String()).Observe(d.Seconds())
}

func (r *Registry) RequestServed(behavior string, status int, d time.Duration) {
	r.proxyRequests.WithLabelValues(behavior, statusBucket(status)).Observe(d.Seconds())
}
func (r *Registry) UnknownAPI() { r.unknownAPI.Inc() }

func (r *Registry) InsertOK(table string)     { r.telemetryInserts.WithLabelValues(table, "ok").Inc() }
func (r *Registry) InsertFailed(table string) { r.telemetryInserts.WithLabelValues(table, "error").Inc() }

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
