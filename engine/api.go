package engine

import (
	"net"
	"time"

	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

// restTimeout bounds every REST-driven downlink round trip.
const restTimeout = 5 * time.Second

// SendRoomParam drives a SET_* downlink for room and reports whether
// the device's ack echoed back val -- the signal the REST layer uses
// to decide between a 200 and a 500 response.
func (e *Engine) SendRoomParam(addr *net.UDPAddr, device *shadow.Device, deviceID, room uint32, msgType wire.MsgID, val int64) bool {
	rc := e.sendSET(addr, device, deviceID, room, msgType, val, false, true, true, restTimeout)
	return toInt64(rc) == val
}

// SendDeviceTime drives SET_DEVICE_TIME and reports ack agreement.
func (e *Engine) SendDeviceTime(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, val uint8) bool {
	rc := e.sendDEVICETIME(addr, device, deviceID, val, false, true, true, restTimeout)
	return toInt64(rc) == int64(val)
}

// ReadDeviceTime asks the device for its current time.
func (e *Engine) ReadDeviceTime(addr *net.UDPAddr, device *shadow.Device, deviceID uint32) (uint8, bool) {
	rc := e.sendDEVICETIME(addr, device, deviceID, 0, false, false, true, restTimeout)
	v := toInt64(rc)
	if v < 0 {
		return 0, false
	}
	return uint8(v), true
}

// SendOutsideTemp drives SET_OUTSIDE_TEMP and reports ack agreement.
func (e *Engine) SendOutsideTemp(addr *net.UDPAddr, device *shadow.Device, deviceID uint32, val uint8) bool {
	rc := e.sendOUTSIDETEMP(addr, device, deviceID, val, false, true, true, restTimeout)
	return toInt64(rc) == int64(val)
}

// SendProgramWrite pushes a day's program to the device. The protocol
// gives this message no usable acknowledgement -- both downlink and
// uplink PROGRAM frames always carry the unused cseq, so unlike every
// other SET_* write there is nothing to wait on here. It returns
// nothing; callers treat the send itself as success.
func (e *Engine) SendProgramWrite(addr *net.UDPAddr, deviceID, room uint32, day uint8, prog shadow.DayProgram) {
	e.sendPROGRAM(addr, deviceID, room, day, prog, false, true)
}

// PeerAddr returns the UDP address most recently associated with
// deviceID, if any.
func (e *Engine) PeerAddr(deviceID uint32) (*net.UDPAddr, bool) {
	return e.store.PeerOf(deviceID)
}

// Device returns the shadow device record for deviceID, creating one
// if it doesn't exist yet.
func (e *Engine) Device(deviceID uint32) *shadow.Device {
	return e.store.Device(deviceID)
}
