// Package pipe implements the Cross-Thread Command Pipe (spec §4.5): a
// bounded single-producer/single-consumer queue carrying control-plane
// commands from non-RT threads into the RT thread, and acknowledgements
// back out. Producers batch writes, then publish a release-ordered count;
// the consumer compares it against what it has already received and drains
// a non-blocking ring read — never blocking, never allocating on the RT
// side when given a reusable scratch slice.
package pipe

import (
	"sync/atomic"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Cmd enumerates the message shapes defined in spec §4.5.
type Cmd uint8

const (
	// To-RT commands.
	StartLogging Cmd = iota
	StopLogging
	StartWatching
	StopWatching

	// To-non-RT acknowledgement.
	StartedLogging
)

func (c Cmd) String() string {
	switch c {
	case StartLogging:
		return "StartLogging"
	case StopLogging:
		return "StopLogging"
	case StartWatching:
		return "StartWatching"
	case StopWatching:
		return "StopWatching"
	case StartedLogging:
		return "StartedLogging"
	default:
		return "?"
	}
}

// ToRT is a non-RT -> RT message. Args carry (startTs, duration) for the
// Start* commands or (endTs, _) for the Stop* commands.
type ToRT struct {
	Handle wtype.Handle
	Cmd    Cmd
	Args   [2]uint64
}

// ToNonRT is an RT -> non-RT acknowledgement. Args carry (actualStartTs,
// actualEndTs) for StartedLogging.
type ToNonRT struct {
	Handle wtype.Handle
	Cmd    Cmd
	Args   [2]uint64
}

// ring is the generic bounded SPSC buffer both directions share. produced
// and received are producer-local/consumer-local counters (each touched by
// exactly one thread); sent is the published, atomically-visible boundary.
type ring[T any] struct {
	buf      []T
	produced uint64 // producer-owned
	sent     atomic.Uint64
	received uint64 // consumer-owned
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// write stages one message without publishing it (producer side only).
func (r *ring[T]) write(msg T) {
	r.buf[r.produced%uint64(len(r.buf))] = msg
	r.produced++
}

// publish releases everything written since the last publish to the
// consumer via a single atomic store of the monotonic produced count
// (spec §4.5: "publish a release memory fence and bump a monotonic sent
// counter").
func (r *ring[T]) publish() { r.sent.Store(r.produced) }

// drain is the non-blocking consumer read. scratch is reused (truncated to
// len 0, then appended to) so the RT thread performs no allocation when the
// caller passes a slice with capacity >= len(r.buf). If the producer has
// published more messages than the ring can hold unread, drain can only
// recover the most recent len(buf) of them; it reports the shortfall as a
// PipeOverrunError and resynchronises received to sent regardless (spec
// §4.5/§7: "fast-forward received to sent").
func (r *ring[T]) drain(scratch []T, op string) ([]T, error) {
	scratch = scratch[:0]
	sent := r.sent.Load()
	avail := sent - r.received
	if avail == 0 {
		return scratch, nil
	}

	got := avail
	if got > uint64(len(r.buf)) {
		got = uint64(len(r.buf))
	}
	start := sent - got
	for i := uint64(0); i < got; i++ {
		scratch = append(scratch, r.buf[(start+i)%uint64(len(r.buf))])
	}

	var err error
	if got < avail {
		err = werr.NewPipeOverrunError(op, avail, got)
	}
	r.received = sent
	return scratch, err
}

// ToRTPipe carries commands from non-RT producers (the control codec) to
// the RT consumer (the manager's notify/tick loop).
type ToRTPipe struct{ r *ring[ToRT] }

// NewToRT allocates a to-RT pipe with the given ring capacity.
func NewToRT(capacity int) *ToRTPipe { return &ToRTPipe{r: newRing[ToRT](capacity)} }

// Write stages one command (non-RT side). Call Publish after a batch.
func (p *ToRTPipe) Write(msg ToRT) { p.r.write(msg) }

// Publish releases the batch written since the last Publish call.
func (p *ToRTPipe) Publish() { p.r.publish() }

// Drain is called once per RT tick. scratch should be reused across calls
// with capacity >= the pipe's ring capacity to avoid RT-side allocation.
func (p *ToRTPipe) Drain(scratch []ToRT) ([]ToRT, error) {
	return p.r.drain(scratch, "pipe.to_rt.drain")
}

// ToNonRTPipe carries acknowledgements from the RT producer back to the
// non-RT manager worker.
type ToNonRTPipe struct{ r *ring[ToNonRT] }

// NewToNonRT allocates a to-non-RT pipe with the given ring capacity.
func NewToNonRT(capacity int) *ToNonRTPipe { return &ToNonRTPipe{r: newRing[ToNonRT](capacity)} }

// Write stages one acknowledgement (RT side, no blocking or allocation:
// write only touches the pre-allocated ring).
func (p *ToNonRTPipe) Write(msg ToNonRT) { p.r.write(msg) }

// Publish releases the batch written since the last Publish call.
func (p *ToNonRTPipe) Publish() { p.r.publish() }

// Drain is called by the non-RT manager worker, typically on a bounded
// polling timeout (spec §5: "short, e.g. 100ms").
func (p *ToNonRTPipe) Drain(scratch []ToNonRT) ([]ToNonRT, error) {
	return p.r.drain(scratch, "pipe.to_nonrt.drain")
}
