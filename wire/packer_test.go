package wire_test

import (
	"bytes"
	"testing"

	"github.com/besim-go/besim/wire"
)

func TestPacker_MatchesUnpackerFieldOrder(t *testing.T) {
	buf := wire.NewPacker().
		U8(0x01).
		U16(0x0203).
		U32(0x04050607).
		Bytes([]byte{0xAA, 0xBB}).
		FixedString("hi", 5).
		Build()

	want := []byte{0x01, 0x03, 0x02, 0x07, 0x06, 0x05, 0x04, 0xAA, 0xBB, 'h', 'i', 0, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Fatalf("Build() = % x, want % x", buf, want)
	}

	u := wire.NewUnpacker(buf)
	if got := u.U8(); got != 0x01 {
		t.Fatalf("U8() = %#x, want 0x01", got)
	}
	if got := u.U16(); got != 0x0203 {
		t.Fatalf("U16() = %#x, want 0x0203", got)
	}
	if got := u.U32(); got != 0x04050607 {
		t.Fatalf("U32() = %#x, want 0x04050607", got)
	}
}

func TestPacker_FixedStringTruncates(t *testing.T) {
	buf := wire.NewPacker().FixedString("toolongvalue", 4).Build()
	if !bytes.Equal(buf, []byte("tool")) {
		t.Fatalf("FixedString truncation = %q, want %q", buf, "tool")
	}
}
