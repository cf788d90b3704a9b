package wire_test

import (
	"bytes"
	"testing"

	"github.com/besim-go/besim/wire"
)

func TestEncodeDownlink_AlwaysSetsValidAndDownlink(t *testing.T) {
	for _, tc := range []struct {
		name     string
		response bool
		write    bool
	}{
		{"read-request", false, false},
		{"read-response", true, false},
		{"write-request", false, true},
		{"write-response", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{0}, 8)
			buf := wire.EncodeDownlink(wire.Ping, tc.response, tc.write, payload)

			w, body, err := wire.DecodeWrapper(buf, true)
			if err != nil {
				t.Fatalf("DecodeWrapper() error = %v", err)
			}
			if !w.Valid || !w.Downlink {
				t.Fatalf("expected valid+downlink, got %+v", w)
			}
			if w.Response != tc.response || w.Write != tc.write {
				t.Fatalf("response/write = %t/%t, want %t/%t", w.Response, w.Write, tc.response, tc.write)
			}
			if !bytes.Equal(body, payload) {
				t.Fatalf("body = % x, want % x", body, payload)
			}
		})
	}
}

func TestDecodeWrapper_InvalidBitStillDispatches(t *testing.T) {
	// flags = 0: valid bit clear. decodeWrapper must still return a body,
	// not an error -- the caller is responsible for treating it as garbage.
	buf := []byte{byte(wire.Status), 0x00, 0x00, 0x00}
	buf = append(buf, bytes.Repeat([]byte{0xAA}, 8)...)

	w, body, err := wire.DecodeWrapper(buf, false)
	if err != nil {
		t.Fatalf("DecodeWrapper() error = %v", err)
	}
	if w.Valid {
		t.Fatal("expected Valid=false")
	}
	if len(body) != 8 {
		t.Fatalf("body len = %d, want 8", len(body))
	}
}

func TestSetPayloadSize(t *testing.T) {
	twoByte := []wire.MsgID{wire.SetT3, wire.SetT2, wire.SetT1, wire.SetMinHeatSetp, wire.SetMaxHeatSetp}
	oneByte := []wire.MsgID{wire.SetUnits, wire.SetSeason, wire.SetSensorInfluence, wire.SetCurve, wire.SetAdvance, wire.SetMode}

	for _, id := range twoByte {
		if n, ok := wire.SetPayloadSize(id); !ok || n != 2 {
			t.Errorf("SetPayloadSize(%s) = %d, %t, want 2, true", id, n, ok)
		}
	}
	for _, id := range oneByte {
		if n, ok := wire.SetPayloadSize(id); !ok || n != 1 {
			t.Errorf("SetPayloadSize(%s) = %d, %t, want 1, true", id, n, ok)
		}
	}
	if _, ok := wire.SetPayloadSize(wire.Ping); ok {
		t.Error("SetPayloadSize(Ping) should report ok=false")
	}
}

func TestMsgID_UnknownFallsBackToUnknownID(t *testing.T) {
	var id wire.MsgID = 0x30
	if id.Known() {
		t.Fatalf("%#x should not be a known message type", uint8(id))
	}
	if id.String() == "" {
		t.Fatal("String() should never be empty")
	}
}
