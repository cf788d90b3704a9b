package wire

import "encoding/binary"

// Packer appends little-endian fixed-width fields to a growing byte
// slice -- the write-side counterpart to Unpacker, used by every
// downlink constructor to build a wrapper's inner payload field by
// field in the same order the wire layout is documented.
type Packer struct {
	buf []byte
}

// NewPacker returns an empty Packer.
func NewPacker() *Packer { return &Packer{} }

// U8 appends one byte.
func (p *Packer) U8(v uint8) *Packer {
	p.buf = append(p.buf, v)
	return p
}

// U16 appends a little-endian uint16.
func (p *Packer) U16(v uint16) *Packer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	p.buf = append(p.buf, b[:]...)
	return p
}

// U32 appends a little-endian uint32.
func (p *Packer) U32(v uint32) *Packer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.buf = append(p.buf, b[:]...)
	return p
}

// Bytes appends b verbatim.
func (p *Packer) Bytes(b []byte) *Packer {
	p.buf = append(p.buf, b...)
	return p
}

// FixedString appends s truncated or zero-padded to exactly n bytes.
func (p *Packer) FixedString(s string, n int) *Packer {
	b := make([]byte, n)
	copy(b, s)
	p.buf = append(p.buf, b...)
	return p
}

// Build returns the accumulated bytes.
func (p *Packer) Build() []byte { return p.buf }
