// Package shadow is the in-memory mirror of device/room state the
// simulator maintains from STATUS updates -- shared between the UDP
// engine and the HTTP surface. All access goes through Store's single
// lock; parallel consumers (the UDP receive thread, REST handlers, the
// fake-boost timer goroutine) are expected.
package shadow

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// Peer is a network endpoint that has sent at least one valid frame.
type Peer struct {
	Addr    *net.UDPAddr
	Seq     uint32
	Devices map[uint32]struct{}
}

// Store is the process-wide device/room/peer shadow. Created once per
// engine run; entries are created lazily and never removed during a
// run (spec.md §3: "Created on first receive; never destroyed").
type Store struct {
	mu      sync.Mutex
	peers   map[string]*Peer
	devices map[uint32]*Device
	token   string
}

// NewStore returns an empty Store with a freshly generated run token.
func NewStore() *Store {
	return &Store{
		peers:   make(map[string]*Peer),
		devices: make(map[uint32]*Device),
		token:   uuid.NewString(),
	}
}

// Token returns the opaque identifier generated once when the store
// was created.
func (s *Store) Token() string {
	return s.token
}

// Peer returns the Peer for addr, creating it if this is the first
// time addr has been seen.
func (s *Store) Peer(addr *net.UDPAddr) *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerLocked(addr)
}

func (s *Store) peerLocked(addr *net.UDPAddr) *Peer {
	key := addr.String()
	p, ok := s.peers[key]
	if !ok {
		p = &Peer{Addr: addr, Devices: make(map[uint32]struct{})}
		s.peers[key] = p
	}
	return p
}

// Device returns the Device for id, creating it (with cseq=0 and an
// empty room map) if this is the first mention of id.
func (s *Store) Device(id uint32) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceLocked(id)
}

func (s *Store) deviceLocked(id uint32) *Device {
	d, ok := s.devices[id]
	if !ok {
		d = newDevice(id)
		s.devices[id] = d
	}
	return d
}

// Room returns room roomID under device id, creating both the device
// and the room if necessary.
func (s *Store) Room(deviceID, roomID uint32) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.deviceLocked(deviceID)
	r, ok := d.Rooms[roomID]
	if !ok {
		r = newRoom()
		d.Rooms[roomID] = r
	}
	return r
}

// PeerOf is the reverse lookup: the peer address currently reachable
// for device id, or nil, false if no peer claims it.
func (s *Store) PeerOf(id uint32) (*net.UDPAddr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if _, ok := p.Devices[id]; ok {
			return p.Addr, true
		}
	}
	return nil, false
}

// Assign records that device id is reachable via addr, updating the
// peer's frame sequence number and making addr the sole owner of id
// (spec.md §3: "exactly one peer owns each device id at a time").
func (s *Store) Assign(addr *net.UDPAddr, id uint32, frameSeq uint32) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	newKey := addr.String()
	for key, p := range s.peers {
		if key == newKey {
			continue
		}
		delete(p.Devices, id)
	}

	p := s.peerLocked(addr)
	p.Seq = frameSeq
	p.Devices[id] = struct{}{}

	d := s.deviceLocked(id)
	d.Addr = newKey
	return d
}

// DeviceIDs returns every device id seen so far, for the REST "list
// devices" endpoint.
func (s *Store) DeviceIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint32, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

// RoomIDs returns every room id registered under device id (regardless
// of liveness) -- callers filter by Live() themselves under the same
// lock via WithRoom/WithDevice where liveness matters.
func (s *Store) RoomIDs(deviceID uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil
	}
	ids := make([]uint32, 0, len(d.Rooms))
	for id := range d.Rooms {
		ids = append(ids, id)
	}
	return ids
}

// WithDevice runs fn with the store locked and id's device passed in,
// guaranteeing the caller sees and mutates an internally consistent
// snapshot for the duration of fn.
func (s *Store) WithDevice(id uint32, fn func(*Device)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.deviceLocked(id))
}

// WithRoom runs fn with the store locked and roomID's room (under
// deviceID) passed in, creating both as needed.
func (s *Store) WithRoom(deviceID, roomID uint32, fn func(*Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.deviceLocked(deviceID)
	r, ok := d.Rooms[roomID]
	if !ok {
		r = newRoom()
		d.Rooms[roomID] = r
	}
	fn(r)
}

// DeviceExists reports whether id has been seen, without creating it.
func (s *Store) DeviceExists(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.devices[id]
	return ok
}

// RoomExists reports whether roomID under deviceID has been seen,
// without creating either.
func (s *Store) RoomExists(deviceID, roomID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return false
	}
	_, ok = d.Rooms[roomID]
	return ok
}
