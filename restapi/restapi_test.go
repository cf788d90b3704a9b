package restapi_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/besim-go/besim/engine"
	"github.com/besim-go/besim/restapi"
	"github.com/besim-go/besim/shadow"
	"github.com/besim-go/besim/wire"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleDevices_ReadOnlyRoutesNeedNoEngine(t *testing.T) {
	store := shadow.NewStore()
	store.WithRoom(1, 1, func(r *shadow.Room) { r.Temp = 215 })

	api := restapi.New(store, nil, nil, nil)
	router := api.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ids []uint32
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("ids = %v, want [1]", ids)
	}
}

func TestHandleRoom_UnknownRoomIs404(t *testing.T) {
	store := shadow.NewStore()
	api := restapi.New(store, nil, nil, nil)
	router := api.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/devices/9/rooms/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeviceParamGet_OpenThermReadingsReachableWithoutRoom(t *testing.T) {
	store := shadow.NewStore()
	store.WithDevice(1, func(d *shadow.Device) {
		d.BoilerOn = true
		d.TFLO = 550
		d.PrES = 12
	})

	api := restapi.New(store, nil, nil, nil)
	router := api.Router()

	for path, want := range map[string]string{
		"/api/v1.0/devices/1/boilerOn": "true",
		"/api/v1.0/devices/1/tFLO":     "550",
		"/api/v1.0/devices/1/PrES":     "12",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Fatalf("%s: body = %q, want %q", path, got, want)
		}
	}
}

func TestHandleParamPut_T1_SuccessAcksThrough(t *testing.T) {
	server := listenUDP(t)
	device := listenUDP(t)

	store := shadow.NewStore()
	store.WithRoom(1, 1, func(r *shadow.Room) {})
	store.Assign(device.LocalAddr().(*net.UDPAddr), 1, 0)

	e := engine.New(server, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	go ackOneSet(t, device, server.LocalAddr().(*net.UDPAddr))

	api := restapi.New(store, e, nil, nil)
	router := api.Router()

	body := strings.NewReader("180")
	req := httptest.NewRequest(http.MethodPut, "/api/v1.0/devices/1/rooms/1/t1", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

// ackOneSet plays the device side of a single SET_* round trip,
// echoing back whatever value it was asked to set.
func ackOneSet(t *testing.T, device *net.UDPConn, serverAddr *net.UDPAddr) {
	device.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := device.ReadFromUDP(buf)
	if err != nil {
		t.Errorf("device read: %v", err)
		return
	}
	frame, ok := wire.DecodeFrame(buf[:n])
	if !ok {
		t.Errorf("device: bad frame")
		return
	}
	w, body, err := wire.DecodeWrapper(frame.Payload, false)
	if err != nil {
		t.Errorf("device: bad wrapper: %v", err)
		return
	}

	u := wire.NewUnpacker(body)
	cseq := u.U8()
	u.U8()
	u.U16()
	deviceID := u.U32()
	roomID := u.U32()

	numBytes, _ := wire.SetPayloadSize(w.MsgType)
	p := wire.NewPacker().U8(cseq).U8(0).U16(1).U32(deviceID).U32(roomID)
	switch numBytes {
	case 1:
		p.U8(u.U8())
	case 2:
		p.U16(u.U16())
	}
	ack := wire.EncodeUplink(w.MsgType, true, true, false, p.Build())
	if _, err := device.WriteToUDP(wire.EncodeFrame(ack, 1), serverAddr); err != nil {
		t.Errorf("device: ack write: %v", err)
	}
}
