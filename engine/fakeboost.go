package engine

import (
	"fmt"
	"net"
	"time"

	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

// There is no wire message that asks a device to enter BOOST mode. A
// fake boost is approximated with a timed PARTY mode at a raised T3,
// driven by a two-step SET_T3 -> SET_MODE handshake -- the same
// sequence the original used before the handshake was ever made
// idempotent or restart-safe.
const (
	fakeBoostTempRise = 6 // degC * 10
	fakeBoostDuration = 1800 * time.Second
	fakeBoostTimeout  = 5 * time.Second
)

// EnableFakeBoost turns on the synthetic boost for room under device,
// reporting whether the handshake with the device succeeded.
func (e *Engine) EnableFakeBoost(addr *net.UDPAddr, device *shadow.Device, deviceID, roomID uint32) bool {
	var snap shadow.Room
	e.store.WithRoom(deviceID, roomID, func(r *shadow.Room) { snap = *r })

	if snap.FakeBoost != 0 || snap.Mode != shadow.ModeAuto || snap.Boost || snap.Advance || snap.SetTemp < snap.T1 {
		return false
	}

	newT3 := int64(snap.T3) + fakeBoostTempRise
	rc := e.sendSET(addr, device, deviceID, roomID, wire.SetT3, newT3, false, true, true, fakeBoostTimeout)
	if toInt64(rc) != newT3 {
		return false
	}

	rc = e.sendSET(addr, device, deviceID, roomID, wire.SetMode, int64(shadow.ModeParty), false, true, true, fakeBoostTimeout)
	if toInt64(rc) != int64(shadow.ModeParty) {
		return false
	}

	deadline := time.Now().Add(fakeBoostDuration).Unix()
	e.store.WithRoom(deviceID, roomID, func(r *shadow.Room) {
		r.FakeBoost = deadline
		r.Version++
	})
	e.metrics.FakeBoostTransition("enable")
	return true
}

// DisableFakeBoost reverses EnableFakeBoost: drops T3 back down and
// returns the room to AUTO.
func (e *Engine) DisableFakeBoost(addr *net.UDPAddr, device *shadow.Device, deviceID, roomID uint32) {
	e.disableFakeBoost(addr, device, deviceID, roomID)
}

func (e *Engine) disableFakeBoost(addr *net.UDPAddr, device *shadow.Device, deviceID, roomID uint32) {
	var snap shadow.Room
	e.store.WithRoom(deviceID, roomID, func(r *shadow.Room) { snap = *r })

	if snap.FakeBoost == 0 || snap.Mode != shadow.ModeParty || snap.SetTemp < snap.T1 {
		return
	}

	newT3 := int64(snap.T3) - fakeBoostTempRise
	rc := e.sendSET(addr, device, deviceID, roomID, wire.SetT3, newT3, false, true, true, fakeBoostTimeout)
	if toInt64(rc) != newT3 {
		return
	}

	rc = e.sendSET(addr, device, deviceID, roomID, wire.SetMode, int64(shadow.ModeAuto), false, true, true, fakeBoostTimeout)
	if toInt64(rc) != int64(shadow.ModeAuto) {
		return
	}

	e.store.WithRoom(deviceID, roomID, func(r *shadow.Room) {
		r.FakeBoost = 0
		r.Version++
	})
	e.metrics.FakeBoostTransition("disable")
}

// maybeExpireFakeBoost spawns at most one disableFakeBoost worker per
// room at a time, so a burst of STATUS updates while the SET handshake
// is in flight doesn't start the disable sequence twice.
func (e *Engine) maybeExpireFakeBoost(addr *net.UDPAddr, device *shadow.Device, deviceID, roomID uint32) {
	key := fmt.Sprintf("%d/%d", deviceID, roomID)
	if _, inFlight := e.fakeBoostInFlight.LoadOrStore(key, struct{}{}); inFlight {
		return
	}
	go func() {
		defer e.fakeBoostInFlight.Delete(key)
		e.disableFakeBoost(addr, device, deviceID, roomID)
	}()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	default:
		return -1 << 62 // sentinel: never matches a real SET value
	}
}
