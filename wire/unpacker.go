package wire

import "encoding/binary"

// Unpacker walks a byte slice sequentially, decoding little-endian
// fixed-width fields. It mirrors the struct.unpack_from-based helper
// the original protocol decoder used, so each handler reads its body
// the same way the wire layout is documented.
type Unpacker struct {
	buf    []byte
	offset int
}

// NewUnpacker returns an Unpacker positioned at the start of buf.
func NewUnpacker(buf []byte) *Unpacker {
	return &Unpacker{buf: buf}
}

// Offset returns the current read position.
func (u *Unpacker) Offset() int { return u.offset }

// Remaining returns the number of unread bytes.
func (u *Unpacker) Remaining() int { return len(u.buf) - u.offset }

func (u *Unpacker) take(n int) []byte {
	b := u.buf[u.offset : u.offset+n]
	u.offset += n
	return b
}

// U8 reads one byte.
func (u *Unpacker) U8() uint8 { return u.take(1)[0] }

// I8 reads one signed byte.
func (u *Unpacker) I8() int8 { return int8(u.U8()) }

// U16 reads a little-endian uint16.
func (u *Unpacker) U16() uint16 { return binary.LittleEndian.Uint16(u.take(2)) }

// I16 reads a little-endian int16.
func (u *Unpacker) I16() int16 { return int16(u.U16()) }

// U32 reads a little-endian uint32.
func (u *Unpacker) U32() uint32 { return binary.LittleEndian.Uint32(u.take(4)) }

// Bytes reads n raw bytes.
func (u *Unpacker) Bytes(n int) []byte {
	b := u.take(n)
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Skip advances the cursor by n bytes without returning them.
func (u *Unpacker) Skip(n int) { u.offset += n }

// SetOffset repositions the cursor, used when a handler deliberately
// skips the remainder of an unrecognised body.
func (u *Unpacker) SetOffset(n int) { u.offset = n }
