package shadow

import "github.com/besim-go/besim/cseqctl"

// Device holds everything known about one thermostat controller.
type Device struct {
	ID uint32

	// Addr is the last peer address this device was observed from, as a
	// string key into Store.peers (net.UDPAddr isn't itself comparable
	// in a useful map-key sense across Go versions, so the store keys
	// peers by their formatted address).
	Addr string

	Seq *cseqctl.Sequencer

	Version     string // firmware version string
	BoilerOn    bool
	DHWMode     bool
	TFLO        int16 // boiler flow sensor temperature
	TREt        int16 // boiler return sensor temperature
	TdH         int16 // boiler DHW sensor temperature
	TFLU        int16 // boiler flues sensor temperature
	TESt        int16 // boiler outdoor sensor temperature
	MOdU        int16 // instantaneous boiler fan modulation percentage
	FLOr        int16 // instantaneous domestic hot water flow rate
	HOUr        int16 // hours worked in high condensation mode
	PrES        int16 // central heating system pressure
	TFL2        int16 // heating flow sensor temperature, second circuit
	WifiSignal  uint8
	LastSeen    int64

	Rooms map[uint32]*Room
}

func newDevice(id uint32) *Device {
	return &Device{
		ID:    id,
		Seq:   cseqctl.NewSequencer(),
		Rooms: make(map[uint32]*Room),
	}
}
