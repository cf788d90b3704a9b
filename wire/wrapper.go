package wire

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Flag bits within a Wrapper header (LSB = bit 0).
const (
	flagResponse     = 1 << 0
	flagWrite        = 1 << 1
	flagValid        = 1 << 2
	flagDownlink     = 1 << 3
	flagReserved4    = 1 << 4
	flagCloudSyncLost = 1 << 5
	flagReserved6    = 1 << 6
	flagReserved7    = 1 << 7
)

// Wrapper is the message header carried inside a Frame's payload:
//
//	[u8 msg_type][u8 flags][u16 inner_len_minus_8][inner_len_minus_8+8 bytes body]
type Wrapper struct {
	MsgType  MsgID
	Response bool
	Write    bool
	Valid    bool
	Downlink bool

	// CloudSyncLost mirrors flag bit 5 as observed on uplinks.
	CloudSyncLost bool

	flags byte // retained for diagnostics / String()
}

// DecodeWrapper unwraps data (a Frame's payload) arriving from a device
// (fromCloud=false) or from the cloud endpoint (fromCloud=true, used by
// the cloud-relay variant). It returns the wrapper and the message body
// (exactly msgLen bytes, where msgLen = inner_len_minus_8 + 8).
func DecodeWrapper(data []byte, fromCloud bool) (Wrapper, []byte, error) {
	if len(data) < 4 {
		return Wrapper{}, nil, fmt.Errorf("wire: wrapper header truncated: %d bytes", len(data))
	}

	msgType := MsgID(data[0])
	flags := data[1]
	innerLen := binary.LittleEndian.Uint16(data[2:4])
	msgLen := int(innerLen) + 8

	if len(data)-4 < msgLen {
		return Wrapper{}, nil, fmt.Errorf("wire: wrapper body truncated: need %d, have %d", msgLen, len(data)-4)
	}

	w := Wrapper{
		MsgType:       msgType,
		flags:         flags,
		Downlink:      flags&flagDownlink != 0,
		Valid:         flags&flagValid != 0,
		Write:         flags&flagWrite != 0,
		Response:      flags&flagResponse != 0,
		CloudSyncLost: flags&flagCloudSyncLost != 0,
	}

	if flags&(flagReserved4|flagReserved6|flagReserved7) != 0 {
		slog.Warn("wire: unexpected reserved flag bit set", "flags", fmt.Sprintf("%#x", flags))
	}

	if !w.Valid {
		slog.Error("wire: invalid message (valid bit clear)", "msgType", w.MsgType, "flags", fmt.Sprintf("%#x", flags))
	}

	if w.Downlink != fromCloud {
		if w.Downlink {
			slog.Warn("wire: unexpected downlink flag from device")
		} else {
			slog.Warn("wire: unexpected downlink flag from cloud")
		}
	}

	return w, data[4 : 4+msgLen], nil
}

// EncodeDownlink builds a downlink (simulator→device) wrapper carrying
// payload, with bits 2 (valid) and 3 (downlink) always set and bits 0/1
// reflecting response/write.
func EncodeDownlink(msgType MsgID, response, write bool, payload []byte) []byte {
	var flags byte
	if response {
		flags |= flagResponse
	}
	if write {
		flags |= flagWrite
	}
	flags |= flagValid
	flags |= flagDownlink

	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, byte(msgType), flags)
	var lenField [2]byte
	binary.LittleEndian.PutUint16(lenField[:], uint16(len(payload)-8))
	buf = append(buf, lenField[:]...)
	buf = append(buf, payload...)
	return buf
}

// EncodeUplink builds an uplink (device→simulator) wrapper carrying
// payload. Used by test harnesses and the relay's device-side
// simulation to construct traffic a real device would send.
func EncodeUplink(msgType MsgID, response, write, cloudSyncLost bool, payload []byte) []byte {
	var flags byte
	if response {
		flags |= flagResponse
	}
	if write {
		flags |= flagWrite
	}
	flags |= flagValid
	if cloudSyncLost {
		flags |= flagCloudSyncLost
	}

	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, byte(msgType), flags)
	var lenField [2]byte
	binary.LittleEndian.PutUint16(lenField[:], uint16(len(payload)-8))
	buf = append(buf, lenField[:]...)
	buf = append(buf, payload...)
	return buf
}

func (w Wrapper) String() string {
	return fmt.Sprintf(
		"msgType=%s(%#x) synclost=%t downlink=%t response=%t write=%t flags=%#x",
		w.MsgType, uint8(w.MsgType), w.CloudSyncLost, w.Downlink, w.Response, w.Write, w.flags,
	)
}
