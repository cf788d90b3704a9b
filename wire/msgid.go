// Package wire implements the binary framing and message-wrapper codecs
// for the thermostat control-plane protocol: a 12-byte-overhead frame
// (magic/length/seq/CRC) carrying a typed, flagged message wrapper.
package wire

import "fmt"

// MsgID identifies the kind of message carried inside a Wrapper.
//
// Downlink (DL) is simulator→device. Uplink (UL) is device→simulator.
type MsgID uint8

const (
	// SetMode sets the thermostat mode (auto/holiday/party/off/...). DL initiated.
	SetMode MsgID = 0x02

	// Program carries one day's heating program. UL/DL initiated.
	Program MsgID = 0x0A

	// SetT3, SetT2, SetT1 set the three program temperatures, in degC*10. DL initiated.
	SetT3 MsgID = 0x0B
	SetT2 MsgID = 0x0C
	SetT1 MsgID = 0x0D

	// SetAdvance enables/disables "advance" (1 = advance). DL initiated.
	SetAdvance MsgID = 0x12

	// SWVersion reports the device firmware version string. UL/DL initiated.
	SWVersion MsgID = 0x15

	// SetCurve sets the OpenTherm temperature curve. DL initiated.
	SetCurve MsgID = 0x16

	// SetMinHeatSetp, SetMaxHeatSetp set OpenTherm heating setpoint bounds. DL initiated.
	SetMinHeatSetp MsgID = 0x17
	SetMaxHeatSetp MsgID = 0x18

	// SetUnits selects degC(0)/degF(1). DL initiated.
	SetUnits MsgID = 0x19

	// SetSeason selects winter(1)/summer(0). DL initiated.
	SetSeason MsgID = 0x1A

	// SetSensorInfluence sets the OpenTherm sensor influence, in degC. DL initiated.
	SetSensorInfluence MsgID = 0x1B

	// Refresh meaning unknown in the source protocol. DL initiated.
	Refresh MsgID = 0x1D

	// OutsideTemp selects the outside-temperature source: 0=off 1=boiler 2=web. DL initiated.
	OutsideTemp MsgID = 0x20

	// Ping is a periodic uplink keepalive. UL initiated.
	Ping MsgID = 0x22

	// Status is the periodic (~40s) uplink device/room telemetry report. UL initiated.
	Status MsgID = 0x24

	// DeviceTime sets daylight-saving on the device. DL initiated.
	DeviceTime MsgID = 0x29

	// ProgEnd marks the end of a device's program dump. UL initiated.
	ProgEnd MsgID = 0x2A

	// GetProg requests a device send all daily programs for a room. DL initiated.
	GetProg MsgID = 0x2B

	// MsgUnknown is the sentinel for any id not recognised by the protocol.
	MsgUnknown MsgID = 0xFF
)

var msgIDNames = map[MsgID]string{
	SetMode:            "SET_MODE",
	Program:            "PROGRAM",
	SetT3:              "SET_T3",
	SetT2:              "SET_T2",
	SetT1:              "SET_T1",
	SetAdvance:         "SET_ADVANCE",
	SWVersion:          "SWVERSION",
	SetCurve:           "SET_CURVE",
	SetMinHeatSetp:     "SET_MIN_HEAT_SETP",
	SetMaxHeatSetp:     "SET_MAX_HEAT_SETP",
	SetUnits:           "SET_UNITS",
	SetSeason:          "SET_SEASON",
	SetSensorInfluence: "SET_SENSOR_INFLUENCE",
	Refresh:            "REFRESH",
	OutsideTemp:        "OUTSIDE_TEMP",
	Ping:               "PING",
	Status:             "STATUS",
	DeviceTime:         "DEVICE_TIME",
	ProgEnd:            "PROG_END",
	GetProg:            "GET_PROG",
	MsgUnknown:         "UNKNOWN_ID",
}

// Known reports whether id is a recognised message type.
func (id MsgID) Known() bool {
	_, ok := msgIDNames[id]
	return ok && id != MsgUnknown
}

// String implements fmt.Stringer, falling back to UNKNOWN_ID for any
// value not in the enumerated set — mirroring the Python IntEnum's
// `_missing_` hook.
func (id MsgID) String() string {
	if name, ok := msgIDNames[id]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_ID(%#x)", uint8(id))
}

// SetPayloadSize returns the number of value bytes following the
// 12-byte SET_* header for the given message type, or 0, false if id
// is not a SET_* message.
func SetPayloadSize(id MsgID) (int, bool) {
	switch id {
	case SetT3, SetT2, SetT1, SetMinHeatSetp, SetMaxHeatSetp:
		return 2, true
	case SetUnits, SetSeason, SetSensorInfluence, SetCurve, SetAdvance, SetMode:
		return 1, true
	default:
		return 0, false
	}
}
