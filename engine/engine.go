// Package engine implements the UDP control-plane protocol: the
// receive loop that decodes frames and wrapper headers off the wire,
// dispatches them to per-message handlers, mutates the shadow store,
// and sends the matching downlink replies.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

const maxDatagram = 4096

// TelemetryLogger persists STATUS-derived room readings. Implementations
// must not block the receive loop; a failed write is logged by the
// implementation and never propagated here.
type TelemetryLogger interface {
	LogTemperature(deviceID, roomID uint32, temp, setTemp float64, heating *bool)
}

// CaptureLogger is the append-only hex-dump side-log, one record per
// datagram crossing the socket.
type CaptureLogger interface {
	LogIn(addr *net.UDPAddr, data []byte)
	LogOut(addr *net.UDPAddr, data []byte)
}

// UnknownUDPLogger records a datagram the engine could not fully
// interpret: either its message type is unrecognised, or a known
// handler didn't consume the whole body. source is the sender's IP,
// raw the whole datagram, payload the wrapper body, and unparsed
// whatever tail of payload was left unread (nil when nothing is known
// to be left over).
type UnknownUDPLogger interface {
	LogUnknownUDP(msgType wire.MsgID, source string, raw, payload, unparsed []byte)
}

// Metrics is the subset of metrics.Engine this package reports through.
type Metrics interface {
	DatagramReceived()
	DatagramDropped(reason string)
	MessageDispatched(msgType wire.MsgID)
	HandlerPanic(msgType wire.MsgID)
	FakeBoostTransition(kind string)
	DownlinkLatency(msgType wire.MsgID, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) DatagramReceived()                             {}
func (noopMetrics) DatagramDropped(string)                        {}
func (noopMetrics) MessageDispatched(wire.MsgID)                  {}
func (noopMetrics) HandlerPanic(wire.MsgID)                       {}
func (noopMetrics) FakeBoostTransition(string)                    {}
func (noopMetrics) DownlinkLatency(wire.MsgID, time.Duration)     {}

// handlerFunc decodes one message body and returns the number of bytes
// it consumed, so dispatch can confirm the handler read exactly what
// the wrapper declared.
type handlerFunc func(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int

// Engine owns the UDP socket the device protocol is spoken on and the
// shadow store it mutates in response.
type Engine struct {
	conn  *net.UDPConn
	store *shadow.Store

	telemetry TelemetryLogger
	capture   CaptureLogger
	unknown   UnknownUDPLogger
	metrics   Metrics

	fakeBoostInFlight sync.Map // key "deviceID/roomID" -> struct{}

	// sendTo performs the actual write; overridable so tests and
	// RelayEngine can observe or redirect outbound frames.
	sendTo func(addr *net.UDPAddr, buf []byte) error
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithTelemetry(t TelemetryLogger) Option { return func(e *Engine) { e.telemetry = t } }
func WithCapture(c CaptureLogger) Option     { return func(e *Engine) { e.capture = c } }
func WithUnknownLogger(u UnknownUDPLogger) Option { return func(e *Engine) { e.unknown = u } }
func WithMetrics(m Metrics) Option           { return func(e *Engine) { e.metrics = m } }

// New returns an Engine reading and writing on conn, mutating store.
func New(conn *net.UDPConn, store *shadow.Store, opts ...Option) *Engine {
	e := &Engine{conn: conn, store: store, metrics: noopMetrics{}}
	e.sendTo = e.writeTo
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) writeTo(addr *net.UDPAddr, buf []byte) error {
	if e.capture != nil {
		e.capture.LogOut(addr, buf)
	}
	_, err := e.conn.WriteToUDP(buf, addr)
	return err
}

// Run reads datagrams until ctx is cancelled or the socket errors.
func (e *Engine) Run(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("engine: read: %w", err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		e.metrics.DatagramReceived()
		if e.capture != nil {
			e.capture.LogIn(addr, data)
		}

		e.dispatch(addr, data)
	}
}

// dispatch decodes one datagram and routes it to a handler, recovering
// from a handler panic the way the original receive loop recovered
// from an unhandled exception: log it and pause briefly rather than
// letting one bad message take the whole server down.
func (e *Engine) dispatch(addr *net.UDPAddr, data []byte) {
	msgType := wire.MsgUnknown
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: handler panic", "recovered", r, "stack", string(debug.Stack()))
			e.metrics.HandlerPanic(msgType)
			time.Sleep(time.Second)
		}
	}()

	frame, ok := wire.DecodeFrame(data)
	if !ok {
		e.metrics.DatagramDropped("bad_frame")
		return
	}

	e.store.Peer(addr).Seq = frame.Seq

	w, body, err := wire.DecodeWrapper(frame.Payload, false)
	if err != nil {
		slog.Warn("engine: bad wrapper", "addr", addr, "err", err)
		e.metrics.DatagramDropped("bad_wrapper")
		return
	}

	msgType = w.MsgType
	e.metrics.MessageDispatched(w.MsgType)

	var consumed int
	if h, ok := handlers[w.MsgType]; ok {
		consumed = h(e, addr, w, body)
	} else if _, isSet := wire.SetPayloadSize(w.MsgType); isSet {
		consumed = handleGenericSet(e, addr, w, body)
	} else {
		slog.Warn("engine: unhandled message", "msgType", w.MsgType)
		slog.Debug("engine: unhandled message dump", "wrapper", spew.Sdump(w))
		if e.unknown != nil {
			e.unknown.LogUnknownUDP(w.MsgType, addr.IP.String(), data, body, nil)
		}
		return
	}

	// Confirm the handler consumed exactly what the wrapper declared,
	// the same sanity check the original's handleMsg runs after every
	// dispatch (unpack.getOffset() vs msgLen).
	if consumed != len(body) {
		warnUnexpected("message length", consumed, len(body))
		if e.unknown != nil {
			unparsed := []byte(nil)
			if consumed >= 0 && consumed <= len(body) {
				unparsed = body[consumed:]
			}
			e.unknown.LogUnknownUDP(w.MsgType, addr.IP.String(), data, body, unparsed)
		}
	}
}

var handlers = map[wire.MsgID]handlerFunc{
	wire.Status:     handleStatus,
	wire.GetProg:     handleGetProg,
	wire.Ping:        handlePing,
	wire.Refresh:     handleRefresh,
	wire.DeviceTime:  handleDeviceTime,
	wire.OutsideTemp: handleOutsideTemp,
	wire.ProgEnd:     handleProgEnd,
	wire.SWVersion:   handleSWVersion,
	wire.Program:     handleProgram,
}

func warnUnexpected(field string, got, want any) {
	slog.Warn("engine: unexpected field", "field", field, "got", got, "want", want)
}
