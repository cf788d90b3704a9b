package shadow

// Mode is a room's operating mode.
type Mode uint8

const (
	ModeAuto Mode = iota
	ModeManual
	ModeHoliday
	ModeParty
	ModeOff
	ModeDHW
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeManual:
		return "MANUAL"
	case ModeHoliday:
		return "HOLIDAY"
	case ModeParty:
		return "PARTY"
	case ModeOff:
		return "OFF"
	case ModeDHW:
		return "DHW"
	default:
		return "UNKNOWN"
	}
}

// Units selects the temperature unit a room reports in.
type Units uint8

const (
	UnitsCelsius Units = iota
	UnitsFahrenheit
)

// DayProgram is one day's 24-slot heating program, a fixed-size array so
// the "len(days[d]) == 24 whenever present" invariant is enforced by the
// type system rather than by convention.
type DayProgram [24]byte

// Room holds the live state of one thermostat room beneath a Device.
type Room struct {
	Temp      int16
	SetTemp   int16
	T1        int16
	T2        int16
	T3        int16
	MinSetp   int16
	MaxSetp   int16
	Mode      Mode
	TempCurve uint8
	HeatingSetp uint8

	SensorInfluence uint8
	Units           Units
	Advance         bool
	Boost           bool
	CmdIssued       bool
	Winter          bool

	// Heating reports whether the boiler is firing for this room; nil
	// means "unknown" (byte1 was neither 0x8F nor 0x83 on last STATUS).
	Heating *bool

	LastSeen int64 // seconds since epoch

	// FakeBoost is 0 normally, or the epoch-seconds at which a synthetic
	// boost (see engine.EnableFakeBoost) should be disabled.
	FakeBoost int64

	Days map[uint8]DayProgram

	// Version increments on every mutation the engine makes to the
	// room. It is bookkeeping only: the REST layer judges a write by the
	// device's acknowledged value, and nothing in this module reads
	// Version.
	Version uint64
}

func newRoom() *Room {
	return &Room{Days: make(map[uint8]DayProgram)}
}

// Live reports whether the room has been heard from within the last
// 600 seconds of now (seconds since epoch).
func (r *Room) Live(now int64) bool {
	return r.LastSeen > now-600
}
