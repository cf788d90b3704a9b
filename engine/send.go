package engine

import (
	"log/slog"
	"net"
	"time"

	"github.com/besim-go/besim/cseqctl"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

func (e *Engine) sendFrame(addr *net.UDPAddr, msgType wire.MsgID, response, write bool, inner []byte) {
	wrapped := wire.EncodeDownlink(msgType, response, write, inner)
	frame := wire.EncodeFrame(wrapped, wire.NoSeq)
	if err := e.sendTo(addr, frame); err != nil {
		slog.Warn("engine: send failed", "addr", addr, "msgType", msgType, "err", err)
	}
}

func (e *Engine) sendPING(addr *net.UDPAddr, deviceID uint32, response bool) {
	payload := wire.NewPacker().
		U8(cseqctl.Unused).U8(0).U16(0).
		U32(deviceID).
		U16(0xF43C).
		Build()
	e.sendFrame(addr, wire.Ping, response, true, payload)
}

func (e *Engine) sendGETPROG(addr *net.UDPAddr, device *shadow.Device, deviceID, room uint32, response, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	payload := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).U32(room).
		U32(0x800FE0).
		Build()
	e.sendFrame(addr, wire.GetProg, response, false, payload)
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendSWVERSION(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, response, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	payload := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).
		Build()
	e.sendFrame(addr, wire.SWVersion, response, false, payload)
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendPROGRAM(addr *net.UDPAddr, deviceID, room uint32, day uint8, prog shadow.DayProgram, response, write bool) {
	payload := wire.NewPacker().
		U8(cseqctl.Unused).U8(0).U16(0).
		U32(deviceID).U32(room).
		U16(uint16(day)).
		Bytes(prog[:]).
		Build()
	e.sendFrame(addr, wire.Program, response, write, payload)
}

func (e *Engine) sendSTATUS(addr *net.UDPAddr, deviceID uint32, lastSeen int64, response bool) {
	payload := wire.NewPacker().
		U8(cseqctl.Unused).U8(0).U16(0).
		U32(deviceID).U32(uint32(lastSeen)).
		Build()
	e.sendFrame(addr, wire.Status, response, true, payload)
}

// sendSET drives a SET_* downlink for any of the generic one/two-byte
// SET message types, waiting for the matching ack when wait is set.
func (e *Engine) sendSET(addr *net.UDPAddr, device *shadow.Device, deviceID, room uint32, msgType wire.MsgID, value int64, response, write, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	p := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).U32(room)

	numBytes, _ := wire.SetPayloadSize(msgType)
	switch numBytes {
	case 1:
		p.U8(uint8(value))
	case 2:
		p.U16(uint16(value))
	default:
		slog.Warn("engine: sendSET with unrecognised payload size", "msgType", msgType)
		return nil
	}

	e.sendFrame(addr, msgType, response, write, p.Build())
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendREFRESH(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, response, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	payload := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).
		Build()
	e.sendFrame(addr, wire.Refresh, response, false, payload)
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendOUTSIDETEMP(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, val uint8, response, write, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	payload := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).
		U8(val).
		Build()
	e.sendFrame(addr, wire.OutsideTemp, response, write, payload)
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendDEVICETIME(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, val uint8, response, write, wait bool, timeout time.Duration) any {
	cseq := device.Seq.Next(wait, timeout)
	payload := wire.NewPacker().
		U8(cseq).U8(0).U16(0).
		U32(deviceID).
		U8(val).U8(0).U16(0).
		Build()
	e.sendFrame(addr, wire.DeviceTime, response, write, payload)
	if wait {
		return device.Seq.WaitFor(cseq)
	}
	return nil
}

func (e *Engine) sendPROGEND(addr *net.UDPAddr, deviceID, room uint32, response bool) {
	payload := wire.NewPacker().
		U8(cseqctl.Unused).U8(0).U16(0).
		U32(deviceID).U32(room).
		U16(0x0A14).
		Build()
	e.sendFrame(addr, wire.ProgEnd, response, false, payload)
}
