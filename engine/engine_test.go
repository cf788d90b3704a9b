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

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *net.UDPConn, timeout time.Duration) (wire.Wrapper, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	frame, ok := wire.DecodeFrame(buf[:n])
	if !ok {
		t.Fatalf("DecodeFrame failed on %d bytes", n)
	}
	w, body, err := wire.DecodeWrapper(frame.Payload, true)
	if err != nil {
		t.Fatalf("DecodeWrapper: %v", err)
	}
	return w, body
}

func TestHandlePing_SendsDownlinkReply(t *testing.T) {
	server := listenUDP(t)
	client := listenUDP(t)

	store := shadow.NewStore()
	e := engine.New(server, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	const deviceID = uint32(1234)
	payload := wire.NewPacker().U8(0xFF).U8(0x2).U16(4).U32(deviceID).U16(1).Build()
	wrapped := wire.EncodeUplink(wire.Ping, false, false, false, payload)
	frame := wire.EncodeFrame(wrapped, 1)

	if _, err := client.WriteToUDP(frame, server.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	w, body := readFrame(t, client, 2*time.Second)
	if w.MsgType != wire.Ping {
		t.Fatalf("MsgType = %v, want PING", w.MsgType)
	}
	if !w.Downlink || !w.Response {
		t.Fatalf("reply flags wrong: downlink=%t response=%t", w.Downlink, w.Response)
	}

	u := wire.NewUnpacker(body)
	u.U8()
	u.U8()
	u.U16()
	gotDeviceID := u.U32()
	if gotDeviceID != deviceID {
		t.Fatalf("echoed deviceID = %d, want %d", gotDeviceID, deviceID)
	}
}

type roomFixture struct {
	room                           uint32
	byte1, byte2                   byte
	temp, settemp, t3, t2, t1      int16
	maxsetp, minsetp               int16
	byte3, byte4                   byte
	tempcurve, heatingsetp         byte
}

func buildStatusPayload(deviceID uint32, rooms [8]roomFixture) []byte {
	p := wire.NewPacker().U8(0xFF).U8(0x2).U16(0).U32(deviceID)
	for _, r := range rooms {
		p.U32(r.room).U8(r.byte1).U8(r.byte2).
			U16(uint16(r.temp)).U16(uint16(r.settemp)).
			U16(uint16(r.t3)).U16(uint16(r.t2)).U16(uint16(r.t1)).
			U16(uint16(r.maxsetp)).U16(uint16(r.minsetp)).
			U8(r.byte3).U8(r.byte4).U16(0).U8(r.tempcurve).U8(r.heatingsetp)
	}
	// OpenTherm block + trailing fields, all zero/neutral for the test.
	p.U8(0).U8(0)
	for i := 0; i < 10; i++ {
		p.U16(0)
	}
	p.U8(55).U8(0).U16(0).U16(0).U16(0).U16(0)
	return p.Build()
}

func TestHandleStatus_IgnoresEmptyRoomSlots(t *testing.T) {
	server := listenUDP(t)
	client := listenUDP(t)

	store := shadow.NewStore()
	e := engine.New(server, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	const deviceID = uint32(42)
	var rooms [8]roomFixture
	rooms[0] = roomFixture{
		room: 7, byte1: 0x8F, byte2: 0x00, // mode AUTO
		temp: 215, settemp: 220, t3: 230, t2: 190, t1: 180,
		maxsetp: 300, minsetp: 100, tempcurve: 5, heatingsetp: 10,
	}
	// rooms[1..7] are left zero-valued (room == 0) and must be ignored.

	payload := buildStatusPayload(deviceID, rooms)
	wrapped := wire.EncodeUplink(wire.Status, false, false, false, payload)
	frame := wire.EncodeFrame(wrapped, 1)

	if _, err := client.WriteToUDP(frame, server.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}

	w, _ := readFrame(t, client, 2*time.Second)
	if w.MsgType != wire.Status || !w.Downlink {
		t.Fatalf("expected a downlink STATUS reply, got %v", w)
	}

	if !store.RoomExists(deviceID, 7) {
		t.Fatal("room 7 should have been recorded")
	}
	if store.RoomExists(deviceID, 0) {
		t.Fatal("room 0 should have been ignored")
	}

	room := store.Room(deviceID, 7)
	if room.Temp != 215 {
		t.Fatalf("Temp = %d, want 215", room.Temp)
	}
	if room.Heating == nil || !*room.Heating {
		t.Fatal("Heating should be true for byte1=0x8F")
	}
}

func TestEnableFakeBoost_HandshakeSucceeds(t *testing.T) {
	server := listenUDP(t)
	device := listenUDP(t)

	store := shadow.NewStore()
	e := engine.New(server, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	const deviceID = uint32(99)
	const roomID = uint32(3)

	store.WithRoom(deviceID, roomID, func(r *shadow.Room) {
		r.Mode = shadow.ModeAuto
		r.SetTemp = 220
		r.T1 = 180
		r.T3 = 230
	})
	d := store.Device(deviceID)

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	go respondToTwoSets(t, device, serverAddr, deviceID, roomID)

	ok := e.EnableFakeBoost(device.LocalAddr().(*net.UDPAddr), d, deviceID, roomID)
	if !ok {
		t.Fatal("EnableFakeBoost returned false")
	}

	room := store.Room(deviceID, roomID)
	if room.FakeBoost == 0 {
		t.Fatal("FakeBoost deadline was not armed")
	}
}

// respondToTwoSets plays the device side of the fake-boost handshake:
// it acks the SET_T3 downlink with the same value, then acks the
// following SET_MODE downlink with PARTY.
func respondToTwoSets(t *testing.T, device *net.UDPConn, serverAddr *net.UDPAddr, deviceID, roomID uint32) {
	for i := 0; i < 2; i++ {
		device.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 4096)
		n, _, err := device.ReadFromUDP(buf)
		if err != nil {
			t.Errorf("device read: %v", err)
			return
		}
		frame, ok := wire.DecodeFrame(buf[:n])
		if !ok {
			t.Errorf("device: bad frame")
			return
		}
		w, body, err := wire.DecodeWrapper(frame.Payload, false)
		if err != nil {
			t.Errorf("device: bad wrapper: %v", err)
			return
		}

		u := wire.NewUnpacker(body)
		cseq := u.U8()
		u.U8()
		u.U16()
		u.U32()
		u.U32()

		numBytes, _ := wire.SetPayloadSize(w.MsgType)
		p := wire.NewPacker().U8(cseq).U8(0).U16(1).U32(deviceID).U32(roomID)
		switch numBytes {
		case 1:
			p.U8(u.U8())
		case 2:
			p.U16(u.U16())
		}
		ack := wire.EncodeUplink(w.MsgType, true, true, false, p.Build())
		if _, err := device.WriteToUDP(wire.EncodeFrame(ack, 1), serverAddr); err != nil {
			t.Errorf("device: ack write: %v", err)
			return
		}
	}
}
