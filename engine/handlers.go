package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/besim-go/besim/cseqctl"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

// deviceFor records that deviceID is reachable via addr (mirroring the
// original's getDeviceStatus + peer-ownership bookkeeping in a single
// call) and returns its Device.
func deviceFor(e *Engine, addr *net.UDPAddr, deviceID uint32) *shadow.Device {
	peer := e.store.Peer(addr)
	return e.store.Assign(addr, deviceID, peer.Seq)
}

func handleStatus(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	_ = u.U8()  // cseq, unused on STATUS (UL only, no handshake)
	_ = u.U8()  // unk1
	_ = u.U16() // unk2
	deviceID := u.U32()

	device := deviceFor(e, addr, deviceID)

	var roomsNeedingProgram []uint32
	now := time.Now().Unix()

	for i := 0; i < 8; i++ {
		room := u.U32()
		byte1 := u.U8()
		byte2 := u.U8()
		temp := int16(u.U16())
		settemp := int16(u.U16())
		t3 := int16(u.U16())
		t2 := int16(u.U16())
		t1 := int16(u.U16())
		maxsetp := int16(u.U16())
		minsetp := int16(u.U16())

		mode := byte2 >> 4
		byte3 := u.U8()
		byte4 := u.U8()
		_ = u.U16() // unk13
		tempCurve := u.U8()
		heatingSetp := u.U8()

		sensorInfluence := (byte3 >> 3) & 0xF
		units := (byte3 >> 2) & 0x1
		advance := (byte3>>1)&0x1 != 0
		boost := (byte4>>2)&0x1 != 0
		cmdIssued := (byte4>>1)&0x1 != 0
		winter := byte4&0x1 != 0

		// A room of 0, 0xFFFFFFFF, or byte1==0 means no thermostat is
		// connected there -- skip it entirely.
		if room == 0 || room == 0xFFFFFFFF || byte1 == 0 {
			continue
		}

		var heating *bool
		switch byte1 {
		case 0x8F:
			v := true
			heating = &v
		case 0x83:
			v := false
			heating = &v
		default:
			slog.Warn("engine: unexpected room status byte", "byte1", fmt.Sprintf("%#x", byte1))
		}

		var needsProgram bool
		var boostDeadline int64
		e.store.WithRoom(deviceID, room, func(r *shadow.Room) {
			r.Heating = heating
			r.Temp = temp
			r.SetTemp = settemp
			r.T3 = t3
			r.T2 = t2
			r.T1 = t1
			r.MaxSetp = maxsetp
			r.MinSetp = minsetp
			r.Mode = shadow.Mode(mode)
			r.TempCurve = tempCurve
			r.HeatingSetp = heatingSetp
			r.SensorInfluence = sensorInfluence
			r.Units = shadow.Units(units)
			r.Advance = advance
			r.Boost = boost
			r.CmdIssued = cmdIssued
			r.Winter = winter
			r.LastSeen = now
			r.Version++

			needsProgram = len(r.Days) != 7 || w.CloudSyncLost
			boostDeadline = r.FakeBoost
		})

		if boostDeadline != 0 && boostDeadline < now {
			e.maybeExpireFakeBoost(addr, device, deviceID, room)
		}

		if needsProgram {
			roomsNeedingProgram = append(roomsNeedingProgram, room)
		}

		if e.telemetry != nil {
			e.telemetry.LogTemperature(deviceID, room, float64(temp)/10, float64(settemp)/10, heating)
		}
	}

	// OpenTherm boiler/DHW flags.
	otFlags1 := u.U8()
	_ = u.U8() // otFlags2, padding -- consumed only to preserve offsets
	boilerOn := (otFlags1>>5)&0x1 != 0
	dhwMode := (otFlags1>>6)&0x1 != 0

	// Ten OpenTherm sensor readings. Only tFLO/tdH/tESt's positions were
	// ever confirmed against a real boiler by the original; the rest
	// are assigned here in the order the manual's own OpenTherm
	// parameter list names them (see DESIGN.md), not independently
	// verified.
	tREt := int16(u.U16())
	tFLU := int16(u.U16())
	tFLO := int16(u.U16())
	mOdU := int16(u.U16())
	tdH := int16(u.U16())
	tESt := int16(u.U16())
	flOr := int16(u.U16())
	hOUr := int16(u.U16())
	prES := int16(u.U16())
	tFL2 := int16(u.U16())

	wifiSignal := u.U8()
	_ = u.U8()  // unk16
	_ = u.U16() // unk17
	_ = u.U16() // unk18
	_ = u.U16() // unk19
	_ = u.U16() // unk20

	e.store.WithDevice(deviceID, func(d *shadow.Device) {
		d.BoilerOn = boilerOn
		d.DHWMode = dhwMode
		d.TFLO = tFLO
		d.TREt = tREt
		d.TdH = tdH
		d.TFLU = tFLU
		d.TESt = tESt
		d.MOdU = mOdU
		d.FLOr = flOr
		d.HOUr = hOUr
		d.PrES = prES
		d.TFL2 = tFL2
		d.WifiSignal = wifiSignal
		d.LastSeen = now
	})

	e.sendSTATUS(addr, deviceID, now, true)

	if len(roomsNeedingProgram) > 0 {
		rooms := roomsNeedingProgram
		go func() {
			for _, room := range rooms {
				time.Sleep(time.Second) // device can't handle a burst of requests
				e.sendGETPROG(addr, device, deviceID, room, false, false, 0)
			}
		}()
	}

	return u.Offset()
}

func handleGetProg(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	_ = u.U32() // room
	unk3 := u.U32()

	device := deviceFor(e, addr, deviceID)

	if cseq != device.Seq.Last() {
		warnUnexpected("cseq", cseq, device.Seq.Last())
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 1 {
		warnUnexpected("unk2", unk2, 1)
	}
	if unk3 != 0x800FE0 {
		warnUnexpected("unk3", unk3, 0x800FE0)
	}

	if w.Response {
		device.Seq.Signal(cseq, unk3)
	}

	return u.Offset()
}

func handlePing(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	unk3 := u.U16()

	deviceFor(e, addr, deviceID)

	if cseq != cseqctl.Unused {
		warnUnexpected("cseq", cseq, cseqctl.Unused)
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 4 && unk2 != 0 {
		warnUnexpected("unk2", unk2, "4 or 0")
	}
	if unk3 != 1 {
		warnUnexpected("unk3", unk3, 1)
	}

	e.sendPING(addr, deviceID, true)

	return u.Offset()
}

func handleRefresh(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()

	device := deviceFor(e, addr, deviceID)

	if cseq != device.Seq.Last() {
		warnUnexpected("cseq", cseq, device.Seq.Last())
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 0x1 {
		warnUnexpected("unk2", unk2, 0x1)
	}

	if w.Response {
		device.Seq.Signal(cseq, unk2)
	}

	return u.Offset()
}

func handleDeviceTime(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	val := u.U8()
	unk3 := u.U8()
	unk4 := u.U16()
	unk5 := u.U32()

	device := deviceFor(e, addr, deviceID)

	if cseq != device.Seq.Last() {
		warnUnexpected("cseq", cseq, device.Seq.Last())
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 0x1 {
		warnUnexpected("unk2", unk2, 0x1)
	}
	if unk3 != 0x0 {
		warnUnexpected("unk3", unk3, 0x0)
	}
	if unk4 != 0x0 {
		warnUnexpected("unk4", unk4, 0x0)
	}
	if unk5 != 0x0 {
		warnUnexpected("unk5", unk5, 0x0)
	}

	if w.Response {
		device.Seq.Signal(cseq, val)
	}

	return u.Offset()
}

func handleOutsideTemp(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	val := u.U8()

	device := deviceFor(e, addr, deviceID)

	if cseq != device.Seq.Last() {
		warnUnexpected("cseq", cseq, device.Seq.Last())
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 0x1 {
		warnUnexpected("unk2", unk2, 0x1)
	}

	if w.Response {
		device.Seq.Signal(cseq, val)
	}

	return u.Offset()
}

func handleProgEnd(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	room := u.U32()
	unk3 := u.U16()

	deviceFor(e, addr, deviceID)

	if cseq != cseqctl.Unused {
		warnUnexpected("cseq", cseq, cseqctl.Unused)
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 0x1 {
		warnUnexpected("unk2", unk2, 0x1)
	}
	if unk3 != 0xA14 {
		warnUnexpected("unk3", unk3, 0xA14)
	}

	if !w.Response {
		e.sendPROGEND(addr, deviceID, room, true)
	}

	return u.Offset()
}

func handleSWVersion(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	version := string(bytes.TrimRight(u.Bytes(13), "\x00"))

	device := deviceFor(e, addr, deviceID)
	e.store.WithDevice(deviceID, func(d *shadow.Device) { d.Version = version })

	if cseq != device.Seq.Last() {
		warnUnexpected("cseq", cseq, device.Seq.Last())
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 1 {
		warnUnexpected("unk2", unk2, 1)
	}

	if !w.Response {
		e.sendSWVERSION(addr, device, deviceID, true, false, 0)
	} else {
		device.Seq.Signal(cseq, version)
	}

	return u.Offset()
}

func handleProgram(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	u := wire.NewUnpacker(body)
	cseq := u.U8()
	unk1 := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	room := u.U32()
	day := u.U16()

	var prog shadow.DayProgram
	copy(prog[:], u.Bytes(24))

	deviceFor(e, addr, deviceID)
	e.store.WithRoom(deviceID, room, func(r *shadow.Room) {
		r.Days[uint8(day)] = prog
		r.Version++
	})

	if cseq != cseqctl.Unused {
		warnUnexpected("cseq", cseq, cseqctl.Unused)
	}
	if unk1 != 0x2 {
		warnUnexpected("unk1", unk1, 0x2)
	}
	if unk2 != 1 {
		warnUnexpected("unk2", unk2, 1)
	}

	if !w.Response {
		e.sendPROGRAM(addr, deviceID, room, uint8(day), prog, true, false)
	}

	return u.Offset()
}

// handleGenericSet services every MsgId.SET_* the protocol defines:
// the payload shape and sanity checks are identical across all of
// them, only the room field each updates differs.
func handleGenericSet(e *Engine, addr *net.UDPAddr, w wire.Wrapper, body []byte) int {
	numBytes, _ := wire.SetPayloadSize(w.MsgType)

	u := wire.NewUnpacker(body)
	cseq := u.U8()
	flags := u.U8()
	unk2 := u.U16()
	deviceID := u.U32()
	room := u.U32()

	var value int64
	switch numBytes {
	case 1:
		value = int64(u.U8())
	case 2:
		value = int64(int16(u.U16()))
	default:
		slog.Warn("engine: unrecognised SET payload size", "msgType", w.MsgType)
		return u.Offset()
	}

	device := deviceFor(e, addr, deviceID)

	e.store.WithRoom(deviceID, room, func(r *shadow.Room) {
		switch w.MsgType {
		case wire.SetT1:
			r.T1 = int16(value)
		case wire.SetT2:
			r.T2 = int16(value)
		case wire.SetT3:
			r.T3 = int16(value)
		case wire.SetMinHeatSetp:
			r.MinSetp = int16(value)
		case wire.SetMaxHeatSetp:
			r.MaxSetp = int16(value)
		case wire.SetUnits:
			r.Units = shadow.Units(value)
		case wire.SetSeason:
			r.Winter = value != 0
		case wire.SetAdvance:
			r.Advance = value != 0
		case wire.SetMode:
			r.Mode = shadow.Mode(value)
		case wire.SetSensorInfluence:
			r.SensorInfluence = uint8(value)
		case wire.SetCurve:
			r.TempCurve = uint8(value)
		}
		r.Version++
	})

	if unk2 != 0x1 {
		warnUnexpected("unk2", unk2, 0x1)
	}
	if w.Downlink && flags != 0x0 {
		warnUnexpected("flags(downlink)", flags, 0x0)
	}
	if !w.Downlink && flags != 0x0 && flags != 0x2 {
		warnUnexpected("flags(uplink)", flags, "0x0 or 0x2")
	}

	if !w.Response {
		e.sendSET(addr, device, deviceID, room, w.MsgType, value, true, false, false, 0)
	} else {
		device.Seq.Signal(cseq, packSetValue(w.MsgType, value))
	}

	return u.Offset()
}

// packSetValue narrows value to the type a corresponding downlink
// SET handshake would receive back, so fakeboost's type assertions on
// a signalled value work the same way on both uplink- and
// downlink-initiated SETs.
func packSetValue(msgType wire.MsgID, value int64) any {
	n, _ := wire.SetPayloadSize(msgType)
	if n == 1 {
		return uint8(value)
	}
	return int16(value)
}
