package monitor

import "testing"

// TestPeriodicEmitsImmediatelyOnChangeThenEveryPeriod mirrors spec §8
// scenario S4: periods:[5] emits on tick 0 (due immediately on the period
// change), then every 5 ticks thereafter.
func TestPeriodicEmitsImmediatelyOnChangeThenEveryPeriod(t *testing.T) {
	m := New()
	m.SetPeriod(5)

	if !m.Due(0) {
		t.Fatalf("expected immediate emission on period change")
	}
	for tick := uint64(1); tick < 5; tick++ {
		if m.Due(tick) {
			t.Fatalf("unexpected emission at tick %d before next due", tick)
		}
	}
	if !m.Due(5) {
		t.Fatalf("expected emission at tick 5")
	}
	if m.Due(6) || m.Due(9) {
		t.Fatalf("unexpected emission before tick 10")
	}
	if !m.Due(10) {
		t.Fatalf("expected emission at tick 10")
	}
}

func TestOneShotEmitsOnceThenStops(t *testing.T) {
	m := New()
	m.SetPeriod(1)

	if !m.Due(100) {
		t.Fatalf("expected one-shot emission on first Due call")
	}
	if m.Period() != 0 {
		t.Fatalf("period = %d, want 0 after one-shot fires", m.Period())
	}
	if m.Due(101) {
		t.Fatalf("one-shot must not re-fire without a new SetPeriod")
	}
}

func TestZeroPeriodNeverDue(t *testing.T) {
	m := New()
	if m.Due(0) || m.Pending() {
		t.Fatalf("fresh throttle must be off")
	}
}

func TestSetPeriodReArmsOneShot(t *testing.T) {
	m := New()
	m.SetPeriod(1)
	m.Due(0)
	m.SetPeriod(1)
	if !m.Due(50) {
		t.Fatalf("expected re-armed one-shot to fire again")
	}
}
