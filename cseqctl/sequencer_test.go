package cseqctl_test

import (
	"testing"
	"time"

	"github.com/besim-go/besim/cseqctl"
)

func TestNext_WrapsAtMaxCSeq(t *testing.T) {
	// Scenario 3 from the spec: starting at 0xFC.
	s := cseqctl.NewSequencer()

	// Drive the counter up to 0xFC by allocating without waiting.
	for i := uint8(0); i < 0xFC; i++ {
		s.Next(false, time.Second)
	}

	got := s.Next(true, time.Second)
	if got != 0xFC {
		t.Fatalf("1st call = %#x, want 0xFC", got)
	}

	got = s.Next(true, time.Second)
	if got != 0xFD {
		t.Fatalf("2nd call = %#x, want 0xFD", got)
	}

	got = s.Next(true, time.Second)
	if got != 0x00 {
		t.Fatalf("3rd call = %#x, want 0x00", got)
	}
}

func TestNext_AlwaysInRange(t *testing.T) {
	s := cseqctl.NewSequencer()
	for i := 0; i < 1000; i++ {
		c := s.Next(false, time.Millisecond)
		if c > cseqctl.MaxCSeq {
			t.Fatalf("Next() returned %#x, exceeds MaxCSeq %#x", c, cseqctl.MaxCSeq)
		}
	}
}

func TestWaitFor_SignalDelivers(t *testing.T) {
	s := cseqctl.NewSequencer()
	cseq := s.Next(true, time.Second)

	go func() {
		s.Signal(cseq, "hello")
	}()

	got := s.WaitFor(cseq)
	if got != "hello" {
		t.Fatalf("WaitFor() = %v, want %q", got, "hello")
	}
}

func TestWaitFor_TimesOutToNil(t *testing.T) {
	s := cseqctl.NewSequencer()
	cseq := s.Next(true, 10*time.Millisecond)

	got := s.WaitFor(cseq)
	if got != nil {
		t.Fatalf("WaitFor() = %v, want nil on timeout", got)
	}
}

func TestWaitFor_NoPendingEntryReturnsNil(t *testing.T) {
	s := cseqctl.NewSequencer()
	if got := s.WaitFor(0x05); got != nil {
		t.Fatalf("WaitFor() on unregistered cseq = %v, want nil", got)
	}
}

func TestSignal_NoOpWithoutWaiter(t *testing.T) {
	s := cseqctl.NewSequencer()
	// Should not panic or block.
	s.Signal(0x05, "ignored")
}

func TestLast_WrapsBackwards(t *testing.T) {
	s := cseqctl.NewSequencer()
	if got := s.Last(); got != cseqctl.MaxCSeq {
		t.Fatalf("Last() on fresh sequencer = %#x, want MaxCSeq", got)
	}

	s.Next(false, time.Second) // current becomes 1, Last() should be 0
	if got := s.Last(); got != 0 {
		t.Fatalf("Last() = %#x, want 0", got)
	}
}

func TestNext_DroppsDanglingEntryOnReuse(t *testing.T) {
	s := cseqctl.NewSequencer()

	// Wrap the counter past the 0xFD..0 boundary, registering an entry
	// at every value that nobody ever waits on.
	for i := 0; i < 300; i++ {
		s.Next(true, time.Nanosecond)
	}

	// Park an entry with a long timeout at c, then drive the counter a
	// full cycle so the last Next hands out c again. That reuse must drop
	// the dangling entry, so WaitFor(c) finds nothing and returns nil
	// at once instead of blocking for an hour.
	c := s.Next(true, time.Hour)
	for i := 0; i < int(cseqctl.MaxCSeq)+1; i++ {
		s.Next(false, time.Second)
	}
	done := make(chan any, 1)
	go func() { done <- s.WaitFor(c) }()
	select {
	case got := <-done:
		if got != nil {
			t.Fatalf("WaitFor(%#x) = %v, want nil", c, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("WaitFor(%#x) still blocked: the entry was not dropped when its cseq was reused", c)
	}
}
