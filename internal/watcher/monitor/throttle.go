// Package monitor implements the per-variable Monitor Throttler (spec §4.3):
// periodic or one-shot single-value change notifications, independent of
// the stream/log frame buffer.
package monitor

// Throttle holds one variable's monitoring period and next-due timestamp.
// It is owned by the RT thread: SetPeriod may be called from the control
// codec's non-RT "monitor" command handling (spec §4.6 says this is applied
// directly, "no RT hop needed: monitoring reads are benign"), so period and
// changed use no internal locking and rely on the same relaxed-visibility
// contract spec §5 grants the remote-value field — a torn read merely
// delays a period change by one notify, never corrupts state.
type Throttle struct {
	period  uint64 // 0 = off, 1 = one-shot, k>=2 = every k ticks
	nextDue uint64
	changed bool
}

// New returns a quiescent throttle (monitoring off).
func New() *Throttle { return &Throttle{} }

// Period returns the current monitoring period.
func (m *Throttle) Period() uint64 { return m.period }

// Pending reports whether monitoring is armed at all — used by the
// somethingToDo cache (spec §4.4).
func (m *Throttle) Pending() bool { return m.period != 0 }

// SetPeriod applies a new monitoring period. The change takes effect on the
// next Due call (spec §4.3: "change-of-period is applied exactly once per
// change via a flag bit"), which re-arms nextDue to the clock value in
// effect at that call so the first emission after a period change happens
// immediately rather than waiting a full period.
func (m *Throttle) SetPeriod(period uint64) {
	m.period = period
	m.changed = true
}

// Due evaluates the throttle at the given clock value, returning true if a
// monitor message should be emitted now. One-shot periods (m==1) emit once
// and reset the period to 0. Periodic (m>=2) emits whenever clock has
// reached nextDue and reschedules nextDue = clock + period.
func (m *Throttle) Due(clock uint64) bool {
	if m.period == 0 {
		return false
	}
	if m.changed {
		m.changed = false
		m.nextDue = clock
	}
	if clock < m.nextDue {
		return false
	}
	if m.period == 1 {
		m.period = 0
		return true
	}
	m.nextDue = clock + m.period
	return true
}
