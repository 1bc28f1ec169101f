package stream

import "testing"

func TestStartThenAutoStopOnDuration(t *testing.T) {
	s := New()
	s.Start(0, 5, 20) // start at tick 5, auto-end at tick 25
	if s.Phase() != Starting {
		t.Fatalf("phase = %v, want STARTING", s.Phase())
	}
	// before schedStart: no transition
	if s.Advance(4) {
		t.Fatalf("unexpected buffer reset before schedStart")
	}
	if s.Phase() != Starting {
		t.Fatalf("phase = %v, want STARTING", s.Phase())
	}
	// at schedStart: YES then immediately STOPPING (since duration != 0)
	if !s.Advance(5) {
		t.Fatalf("expected buffer reset at window start")
	}
	if s.Phase() != Stopping {
		t.Fatalf("phase = %v, want STOPPING (auto end armed)", s.Phase())
	}
	// before auto-end: stays STOPPING
	s.Advance(24)
	if s.Phase() != Stopping {
		t.Fatalf("phase = %v, want STOPPING", s.Phase())
	}
	// at auto-end: LAST
	s.Advance(25)
	if s.Phase() != Last {
		t.Fatalf("phase = %v, want LAST", s.Phase())
	}
	s.FinishLast()
	if s.Phase() != No {
		t.Fatalf("phase = %v, want NO after FinishLast", s.Phase())
	}
}

func TestStartWithZeroDuration_NeverAutoStops(t *testing.T) {
	s := New()
	s.Start(0, 0, 0)
	if !s.Advance(0) {
		t.Fatalf("expected immediate start at clock 0")
	}
	if s.Phase() != Yes {
		t.Fatalf("phase = %v, want YES (no auto-end scheduled)", s.Phase())
	}
	for tick := uint64(1); tick < 10000; tick += 1000 {
		s.Advance(tick)
		if s.Phase() != Yes {
			t.Fatalf("phase changed unexpectedly at tick %d: %v", tick, s.Phase())
		}
	}
}

func TestStartClampsPastTimestampsToClock(t *testing.T) {
	s := New()
	s.Start(50, 10, 0) // startTs < clock: clamp to clock
	if !s.Advance(50) {
		t.Fatalf("expected immediate transition since schedStart clamped to clock")
	}
}

func TestManualStopThenLast(t *testing.T) {
	s := New()
	s.Start(0, 0, 0)
	s.Advance(0)
	if s.Phase() != Yes {
		t.Fatalf("phase = %v, want YES", s.Phase())
	}
	s.Stop(100)
	if s.Phase() != Stopping {
		t.Fatalf("phase = %v, want STOPPING", s.Phase())
	}
	s.Advance(99)
	if s.Phase() != Stopping {
		t.Fatalf("phase = %v, want STOPPING (not yet due)", s.Phase())
	}
	s.Advance(100)
	if s.Phase() != Last {
		t.Fatalf("phase = %v, want LAST", s.Phase())
	}
}

func TestStopAtOrBeforeClockCancelsOnNextAdvance(t *testing.T) {
	s := New()
	s.Start(0, 0, 0)
	s.Advance(0)
	s.Stop(0) // stop with timestamp <= current clock
	s.Advance(0)
	if s.Phase() != Last {
		t.Fatalf("phase = %v, want LAST (immediate cancellation)", s.Phase())
	}
}

func TestPendingReflectsScheduledTransitions(t *testing.T) {
	s := New()
	if s.Pending() {
		t.Fatalf("fresh state should have no pending transition")
	}
	s.Start(0, 5, 0)
	if !s.Pending() {
		t.Fatalf("STARTING should be pending")
	}
	s.Advance(5)
	if s.Pending() {
		t.Fatalf("YES with no scheduled end should not be pending")
	}
}

func TestTwoConsecutiveCyclesAreDisjoint(t *testing.T) {
	s := New()
	s.Start(0, 0, 10)
	s.Advance(0) // YES -> STOPPING (auto end at 10)
	s.Advance(10)
	if s.Phase() != Last {
		t.Fatalf("expected LAST at end of first window")
	}
	s.FinishLast()
	if s.Phase() != No {
		t.Fatalf("expected NO between cycles")
	}
	s.Start(10, 10, 10)
	if !s.Advance(10) {
		t.Fatalf("expected second window to start")
	}
	if s.Phase() != Stopping {
		t.Fatalf("expected second window auto-armed to STOPPING")
	}
}
