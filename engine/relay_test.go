package engine_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/besim-go/besim/engine"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

func pingFrame(deviceID uint32, seq uint32) []byte {
	payload := wire.NewPacker().U8(0xFF).U8(0x2).U16(4).U32(deviceID).U16(1).Build()
	wrapped := wire.EncodeUplink(wire.Ping, false, false, false, payload)
	return wire.EncodeFrame(wrapped, seq)
}

// TestRelayRun_SingleSocketDispatchesDeviceTraffic confirms a normal
// device-sourced datagram still gets decoded and answered on the
// relay's one socket, the same as the plain Engine.
func TestRelayRun_SingleSocketDispatchesDeviceTraffic(t *testing.T) {
	server := listenUDP(t)
	device := listenUDP(t)

	store := shadow.NewStore()
	e := engine.New(server, store)
	relay := engine.NewRelay(e, "", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	const deviceID = uint32(42)
	if _, err := device.WriteToUDP(pingFrame(deviceID, 1), server.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	w, _ := readFrame(t, device, 2*time.Second)
	if w.MsgType != wire.Ping || !w.Downlink {
		t.Fatalf("reply MsgType=%v Downlink=%t, want a PING downlink", w.MsgType, w.Downlink)
	}
}

// TestRelayRun_KnockEscapeHatchDecodesNextPacketAsCloud confirms three
// solo 0x58 bytes from a device arm the escape hatch so the very next
// datagram from that same address is run through the cloud-direction
// path instead of being dispatched as device traffic -- it must not
// mutate the shadow store, and it must come straight back out rather
// than provoke a protocol-specific downlink reply.
func TestRelayRun_KnockEscapeHatchDecodesNextPacketAsCloud(t *testing.T) {
	server := listenUDP(t)
	device := listenUDP(t)
	deviceAddr := server.LocalAddr().(*net.UDPAddr)

	store := shadow.NewStore()
	e := engine.New(server, store)
	relay := engine.NewRelay(e, "", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	const deviceID = uint32(99)
	seed := pingFrame(deviceID, 1)
	if _, err := device.WriteToUDP(seed, deviceAddr); err != nil {
		t.Fatalf("seed WriteToUDP: %v", err)
	}
	readFrame(t, device, 2*time.Second) // drain the PING downlink reply

	for i := 0; i < 3; i++ {
		if _, err := device.WriteToUDP([]byte{0x58}, deviceAddr); err != nil {
			t.Fatalf("knock %d: %v", i, err)
		}
	}
	time.Sleep(100 * time.Millisecond) // let the relay goroutine consume all three knocks

	escaped := pingFrame(deviceID, 2)
	if _, err := device.WriteToUDP(escaped, deviceAddr); err != nil {
		t.Fatalf("escaped WriteToUDP: %v", err)
	}

	device.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := device.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	if string(buf[:n]) != string(escaped) {
		t.Fatalf("got %d bytes back, want the escaped datagram mirrored back unchanged -- "+
			"a normal PING dispatch would have replied with its own downlink frame instead", n)
	}
}
