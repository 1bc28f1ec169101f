// Package stream implements the per-variable, per-channel state machine
// driving the stream-to-host and log-to-file outputs (spec §4.4). Both
// channels share the same five states and transition rules; a variable
// owns two independent instances of State, one per channel.
package stream

import (
	"math"
	"sync/atomic"
)

// Never is the "no scheduled end" sentinel for schedEnd (spec §3).
const Never = math.MaxUint64

// Phase is one of the five channel states.
type Phase uint8

const (
	No Phase = iota
	Starting
	Yes
	Stopping
	Last
)

func (p Phase) String() string {
	switch p {
	case No:
		return "NO"
	case Starting:
		return "STARTING"
	case Yes:
		return "YES"
	case Stopping:
		return "STOPPING"
	case Last:
		return "LAST"
	default:
		return "?"
	}
}

// Active reports whether the channel should be appending to the frame
// buffer: YES, STOPPING or LAST (spec §4.4 notify step 3).
func (p Phase) Active() bool { return p == Yes || p == Stopping || p == Last }

// State holds one channel's (stream or log) scheduled transitions. All
// mutation happens on the RT thread via Start/Stop/Advance/FinishLast;
// phase is stored atomically so the non-RT control codec can read it (e.g.
// for the "already logging" check on a log command, or the list response's
// "watched"/"logged" fields) without a lock, tolerating the benign race
// spec §5 allows for read-only cross-thread lookups.
type State struct {
	phase      atomic.Uint32
	schedStart uint64
	schedEnd   uint64
}

// New returns a quiescent channel state.
func New() *State {
	s := &State{schedEnd: Never}
	s.phase.Store(uint32(No))
	return s
}

// Phase returns the current phase.
func (s *State) Phase() Phase { return Phase(s.phase.Load()) }

func (s *State) setPhase(p Phase) { s.phase.Store(uint32(p)) }

// Pending reports whether this channel has a scheduled transition still to
// happen — used by the somethingToDo cache (spec §4.4).
func (s *State) Pending() bool {
	p := s.Phase()
	return p == Starting || p == Stopping
}

// Start arms the channel per spec §4.4's NO→STARTING transition:
// schedStart = max(startTs, clock); schedEnd = startTs+duration, or Never if
// duration==0.
func (s *State) Start(clock, startTs, duration uint64) {
	if startTs < clock {
		startTs = clock
	}
	s.schedStart = startTs
	if duration == 0 {
		s.schedEnd = Never
	} else {
		s.schedEnd = startTs + duration
	}
	s.setPhase(Starting)
}

// Stop arms the armed-to-end transition per spec §4.4's YES→STOPPING rule:
// schedStart = endTs, state = STOPPING. Issuing stop with endTs <= clock
// cancels the window on the next Advance (spec §5 cancellation).
func (s *State) Stop(endTs uint64) {
	if s.Phase() == No {
		return
	}
	s.schedStart = endTs
	s.setPhase(Stopping)
}

// Advance applies scheduled transitions that are due at clock, per spec
// §4.4 step 1. It returns true if the frame buffer should be reset
// (STARTING→YES transition) because a new window just began filling.
func (s *State) Advance(clock uint64) (resetBuffer bool) {
	switch s.Phase() {
	case Starting:
		if clock >= s.schedStart {
			s.setPhase(Yes)
			resetBuffer = true
			if s.schedEnd != Never {
				// auto-terminate: YES is instantaneous, arm STOPPING now.
				s.schedStart = s.schedEnd
				s.setPhase(Stopping)
			}
		}
	case Stopping:
		if clock >= s.schedStart {
			s.setPhase(Last)
		}
	}
	return resetBuffer
}

// FinishLast transitions LAST back to NO after the terminal frame has been
// handed off (spec §4.4: "state returns to NO").
func (s *State) FinishLast() {
	if s.Phase() == Last {
		s.setPhase(No)
		s.schedEnd = Never
	}
}

// ScheduledStart returns the currently armed start timestamp, meaningful
// right after Start (the non-RT worker reads it to ack the actual clamped
// start per spec §6's StartedLogging response).
func (s *State) ScheduledStart() uint64 { return s.schedStart }

// ScheduledEnd returns the currently armed end timestamp, or Never.
func (s *State) ScheduledEnd() uint64 { return s.schedEnd }

// Abort forces the channel back to NO outside the normal LAST transition,
// used when a log writer failure means the current frame can never be
// handed off cleanly (spec §7 LogWriterFailure: "the log channel returning
// to NO").
func (s *State) Abort() {
	s.setPhase(No)
	s.schedEnd = Never
}
