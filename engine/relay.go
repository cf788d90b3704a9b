package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/besim-go/besim/wire"
)

const (
	knockByte      = 0x58
	knockThreshold = 3
)

// RelayEngine wraps Engine to additionally speak to the vendor's real
// cloud endpoint over the same socket the device protocol is served
// on -- spec.md's concurrency model requires one receive thread per
// engine even in the cloud-relay variant. Every datagram in either
// direction is mirrored to the other side, regardless of whether its
// message type is recognised, plus an undocumented "knock" escape
// hatch that lets a test client force the next datagram to be decoded
// as if it came from the cloud.
type RelayEngine struct {
	*Engine

	cloudAddr  *net.UDPAddr
	cloudHost  string
	nameserver string
	resolver   *dns.Client
	unknown    UnknownUDPLogger

	mu             sync.Mutex
	knockCount     int
	knockFrom      string
	escapeArmed    bool
	lastDeviceAddr string
}

// NewRelay wraps engine to also mirror traffic to cloudHost, resolved
// against nameserver (not the system resolver) the first time
// ResolveCloud is called. unknown, if non-nil, records cloud-sourced
// messages the protocol doesn't recognise.
func NewRelay(engine *Engine, nameserver, cloudHost string, unknown UnknownUDPLogger) *RelayEngine {
	return &RelayEngine{
		Engine:     engine,
		cloudHost:  cloudHost,
		nameserver: nameserver,
		resolver:   &dns.Client{Timeout: 3 * time.Second},
		unknown:    unknown,
	}
}

// ResolveCloud looks up r.cloudHost via r.nameserver and fixes the
// cloud endpoint's port, caching the result for subsequent forwards.
func (r *RelayEngine) ResolveCloud(ctx context.Context, port int) error {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.cloudHost), dns.TypeA)
	in, _, err := r.resolver.ExchangeContext(ctx, m, net.JoinHostPort(r.nameserver, "53"))
	if err != nil {
		return fmt.Errorf("relay: resolve %s via %s: %w", r.cloudHost, r.nameserver, err)
	}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			r.cloudAddr = &net.UDPAddr{IP: a.A, Port: port}
			return nil
		}
	}
	return fmt.Errorf("relay: no A record for %s", r.cloudHost)
}

// Run reads datagrams on the engine's single socket until ctx is
// cancelled, distinguishing device traffic from cloud traffic by
// source address -- or by the knock escape hatch -- before
// dispatching each one through the matching direction's decoder.
func (r *RelayEngine) Run(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("relay: read: %w", err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if r.isKnock(addr, data) {
			continue
		}

		r.metrics.DatagramReceived()
		if r.capture != nil {
			r.capture.LogIn(addr, data)
		}

		if r.fromCloud(addr) {
			r.handleCloudDatagram(data)
			continue
		}

		if r.cloudAddr != nil {
			if _, err := r.conn.WriteToUDP(data, r.cloudAddr); err != nil {
				slog.Warn("relay: forward to cloud failed", "err", err)
			}
		}

		r.mu.Lock()
		r.lastDeviceAddr = addr.String()
		r.mu.Unlock()

		r.dispatch(addr, data)
	}
}

// isKnock consumes a single 0x58 byte from addr, arming the escape
// hatch once the same source has sent three in a row (spec.md §4.F
// step 3). A knock byte is never dispatched as protocol traffic.
func (r *RelayEngine) isKnock(addr *net.UDPAddr, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) != 1 || data[0] != knockByte {
		if r.knockFrom == addr.String() {
			r.knockCount = 0
			r.knockFrom = ""
		}
		return false
	}

	key := addr.String()
	if r.knockFrom != key {
		r.knockFrom = key
		r.knockCount = 0
	}
	r.knockCount++

	if r.knockCount >= knockThreshold {
		r.knockCount = 0
		r.knockFrom = ""
		r.escapeArmed = true
		slog.Info("relay: knock accepted", "addr", key)
	}
	return true
}

// fromCloud reports whether the packet just read should be decoded as
// cloud-sourced: either addr really is the resolved cloud address, or
// the knock escape hatch has armed the next packet regardless of its
// real source, per spec.md §4.F step 3.
func (r *RelayEngine) fromCloud(addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.escapeArmed {
		r.escapeArmed = false
		return true
	}
	return r.cloudAddr != nil && addr.String() == r.cloudAddr.String()
}

// handleCloudDatagram decodes data with cloud-direction wrapper
// semantics and mirrors it on to the last known device address,
// regardless of the packet's real source -- the same redirection the
// knock escape hatch relies on.
func (r *RelayEngine) handleCloudDatagram(data []byte) {
	frame, ok := wire.DecodeFrame(data)
	if !ok {
		r.metrics.DatagramDropped("bad_frame")
		return
	}

	w, body, err := wire.DecodeWrapper(frame.Payload, true)
	if err != nil {
		slog.Warn("relay: bad cloud wrapper", "err", err)
		return
	}
	if !w.MsgType.Known() && r.unknown != nil {
		r.unknown.LogUnknownUDP(w.MsgType, "cloud", data, body, nil)
	}

	target := r.redirectTarget()
	if target == "" {
		slog.Warn("relay: no known device address to mirror cloud datagram to")
		return
	}
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		slog.Warn("relay: bad redirect target", "target", target, "err", err)
		return
	}
	if err := r.sendTo(addr, data); err != nil {
		slog.Warn("relay: forward to device failed", "err", err)
	}
}

// redirectTarget returns the last device address seen, the mirror
// target for any cloud-direction datagram.
func (r *RelayEngine) redirectTarget() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDeviceAddr
}
