// Package cseqctl implements the per-device control-plane sequence
// protocol: allocating cseq values, parking a caller waiting for the
// matching reply, and signalling that reply when it arrives on the
// receive thread.
package cseqctl

import (
	"sync"
	"time"
)

// MaxCSeq is the highest real cseq value; 0xFF (Unused) means
// "unsolicited, no reply expected" and is never allocated by Next.
const (
	MaxCSeq uint8 = 0xFD
	Unused  uint8 = 0xFF
)

type pending struct {
	ch      chan any
	timeout time.Duration
}

// Sequencer owns one device's cseq counter and its outstanding
// pending-reply table. The zero value is not usable; use NewSequencer.
type Sequencer struct {
	mu      sync.Mutex
	current uint8
	results map[uint8]*pending
}

// NewSequencer returns a Sequencer with its counter starting at 0, the
// same as a freshly created device in the shadow store.
func NewSequencer() *Sequencer {
	return &Sequencer{results: make(map[uint8]*pending)}
}

// Next allocates the next cseq, returning the value to place in the
// outbound message (the *current* counter value, per spec — the
// counter itself advances to current+1, wrapping from MaxCSeq to 0).
// If wait is true, a pending-reply slot is registered at the returned
// cseq with the given timeout, for a later WaitFor call.
func (s *Sequencer) Next(wait bool, timeout time.Duration) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.current
	next := current + 1
	if current >= MaxCSeq {
		next = 0
	}
	s.current = next

	// Drop any dangling entry at the value we're about to reuse -- its
	// waiter, if any, has already timed out.
	delete(s.results, current)

	if wait {
		s.results[current] = &pending{ch: make(chan any, 1), timeout: timeout}
	}

	return current
}

// Last returns the cseq most recently handed out by Next, for matching
// against a reply whose cseq must equal the last request sent.
func (s *Sequencer) Last() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == 0 {
		return MaxCSeq
	}
	return s.current - 1
}

// WaitFor blocks until cseq is Signal'd or its registered timeout
// elapses, returning the signalled value (or nil on timeout or if no
// pending entry exists for cseq).
func (s *Sequencer) WaitFor(cseq uint8) any {
	s.mu.Lock()
	p, ok := s.results[cseq]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var val any
	select {
	case val = <-p.ch:
	case <-time.After(p.timeout):
		val = nil
	}

	s.mu.Lock()
	delete(s.results, cseq)
	s.mu.Unlock()

	return val
}

// Signal delivers val to whoever is waiting on cseq. It is a no-op if
// nothing is pending at that cseq (e.g. it already timed out and was
// reclaimed, or the message was unsolicited).
func (s *Sequencer) Signal(cseq uint8, val any) {
	s.mu.Lock()
	p, ok := s.results[cseq]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case p.ch <- val:
	default:
		// Already has a buffered value (shouldn't happen: one signal
		// per cseq) -- don't block the receive thread over it.
	}
}
