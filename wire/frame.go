package wire

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/sigurn/crc16"
)

// MagicHeader and MagicFooter bracket every frame on the wire.
const (
	MagicHeader uint16 = 0xD4FA
	MagicFooter uint16 = 0xDF2D

	// frameOverhead is the number of bytes a frame adds beyond its payload:
	// 2 (header) + 2 (length) + 4 (seq) + 2 (crc) + 2 (footer).
	frameOverhead = 12

	// NoSeq is passed to EncodeFrame when the caller has no frame-level
	// sequence number to assign.
	NoSeq uint32 = 0xFFFFFFFF
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Frame is the outermost envelope on the wire:
//
//	[u16 magic][u16 payload_len][u32 seq][payload][u16 crc][u16 magic]
type Frame struct {
	Seq     uint32
	Payload []byte
}

// EncodeFrame serialises payload into a complete frame, stamping seq as
// the frame-level sequence number (pass NoSeq for "unassigned").
func EncodeFrame(payload []byte, seq uint32) []byte {
	buf := make([]byte, 0, frameOverhead+len(payload))
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[0:2], MagicHeader)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:8], seq)
	buf = append(buf, hdr[:]...)
	buf = append(buf, payload...)

	crc := crc16.Checksum(payload, crcTable)
	var ftr [4]byte
	binary.LittleEndian.PutUint16(ftr[0:2], crc)
	binary.LittleEndian.PutUint16(ftr[2:4], MagicFooter)
	buf = append(buf, ftr[:]...)
	return buf
}

// DecodeFrame validates and unwraps data, returning the frame and its
// payload. It returns false if the header magic, length field, CRC, or
// footer magic do not check out — the caller should log and drop the
// datagram, never propagate an error to the peer.
func DecodeFrame(data []byte) (Frame, bool) {
	if len(data) < frameOverhead {
		slog.Warn("wire: frame shorter than overhead", "len", len(data))
		return Frame{}, false
	}

	hdr := binary.LittleEndian.Uint16(data[0:2])
	if hdr != MagicHeader {
		slog.Warn("wire: invalid frame header", "got", fmt.Sprintf("%#x", hdr))
		return Frame{}, false
	}

	length := binary.LittleEndian.Uint16(data[2:4])
	if int(length) != len(data)-frameOverhead {
		slog.Warn("wire: invalid frame length", "declared", length, "have", len(data)-frameOverhead)
		return Frame{}, false
	}

	seq := binary.LittleEndian.Uint32(data[4:8])
	payload := data[8 : 8+int(length)]

	crcGot := binary.LittleEndian.Uint16(data[8+int(length) : 10+int(length)])
	crcCalc := crc16.Checksum(payload, crcTable)
	if crcGot != crcCalc {
		slog.Warn("wire: invalid frame CRC", "got", fmt.Sprintf("%#x", crcGot), "want", fmt.Sprintf("%#x", crcCalc))
		return Frame{}, false
	}

	ftr := binary.LittleEndian.Uint16(data[10+int(length) : 12+int(length)])
	if ftr != MagicFooter {
		slog.Warn("wire: invalid frame footer", "got", fmt.Sprintf("%#x", ftr))
		return Frame{}, false
	}

	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)
	return Frame{Seq: seq, Payload: payloadCopy}, true
}
