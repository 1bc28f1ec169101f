package watcher

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/BelaPlatform/watcher-go/internal/watcher/frame"
	"github.com/BelaPlatform/watcher-go/internal/watcher/logfile"
	"github.com/BelaPlatform/watcher-go/internal/watcher/monitor"
	"github.com/BelaPlatform/watcher-go/internal/watcher/stream"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Entry is the per-variable registry record: the typed cell, its frame
// buffer, its two channel state machines (stream-to-host, log-to-file),
// its monitor throttle, and the bookkeeping the manager needs to decide
// whether notify has anything to do (spec §4.1, §4.4's somethingToDo).
type Entry struct {
	Handle Handle
	Name   string
	Type   ValueType
	Mode   TimestampMode

	Cell    *Cell
	Buffer  *frame.Buffer
	Stream  *stream.State
	Log     *stream.State
	Monitor *monitor.Throttle

	// LogFileName is the name under which a log writer should be opened;
	// defaulted to "<name>.bin" per spec §6 and original_source (see
	// DESIGN.md), overridable via the control codec's fileNames[] array.
	LogFileName string

	// logWriter is opened by the control codec (non-RT) on a "log" command
	// and appended to by the RT thread on every log hand-off; an atomic
	// pointer lets both sides touch it without a lock (spec §5: "the log
	// file handle is owned by the RT thread for log() calls and by the
	// worker for flush()/close()").
	logWriter atomic.Pointer[logfile.Writer]

	// needsFlush is set by the RT thread when the log channel reaches LAST
	// (spec §4.4 step 3c: "request a log flush") and cleared by the manager
	// worker once it has called Flush. A plain atomic flag, not a pipe
	// message, since spec §4.5 enumerates only StartedLogging on the
	// to-non-RT direction; flush requests are a separate, coarser signal the
	// worker can simply poll alongside its pipe drain.
	needsFlush atomic.Bool
}

// LogWriter returns the currently installed log writer, or nil if no "log"
// command has opened one yet. The writer stays installed after the log
// channel returns to NO; the next "log" command replaces it.
func (e *Entry) LogWriter() *logfile.Writer { return e.logWriter.Load() }

// SwapLogWriter installs w as the active log writer and returns whatever
// writer was previously installed (the caller is responsible for closing
// it), implementing "a new log file" semantics on every "log" command.
func (e *Entry) SwapLogWriter(w *logfile.Writer) *logfile.Writer {
	return e.logWriter.Swap(w)
}

// somethingToDo mirrors spec §4.4's per-variable cache: true iff either
// channel isn't NO, monitoring is armed, or either channel has a pending
// scheduled transition. Recomputed on demand rather than cached as a field,
// since every input is already a cheap field load (the channel phases are
// atomic, the monitor period is a plain read) — there is no allocation or
// lock to amortise.
func (e *Entry) somethingToDo() bool {
	if e.Monitor.Pending() {
		return true
	}
	if e.Stream.Phase() != stream.No || e.Stream.Pending() {
		return true
	}
	if e.Log.Phase() != stream.No || e.Log.Pending() {
		return true
	}
	return false
}

// SomethingToDo exposes the cache check for the manager's notify fast path.
func (e *Entry) SomethingToDo() bool { return e.somethingToDo() }

// RequestFlush marks the log channel as needing a flush on the next worker
// pass. Called from the RT thread; never blocks.
func (e *Entry) RequestFlush() { e.needsFlush.Store(true) }

// TakeFlushRequest reports and clears a pending flush request. Called from
// the non-RT manager worker.
func (e *Entry) TakeFlushRequest() bool { return e.needsFlush.CompareAndSwap(true, false) }

// Registry holds the ordered collection of watched variables (spec §4.1).
// Registration/unregistration happen from application setup/teardown;
// steady-state lookups by name (the control codec) are read-only and safe
// to run concurrently with notify, which only reads the maps under the read
// lock (Lookup).
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Entry
	byHandle map[uint32]*Entry
	nextID   uint32
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Entry),
		byHandle: make(map[uint32]*Entry),
	}
}

// Register allocates a frame buffer, assigns a stable handle/transport
// buffer id, and initialises quiescent state for a new variable (spec
// §4.1). It fails only if the frame buffer cannot be aligned (spec §3's
// AllocationAlignment error), which frame.New already classifies.
//
// Registry uniqueness by name is assumed, not enforced (spec §3: duplicate
// names produce undefined command targeting) — Register does not check for
// an existing entry under the same name.
func (r *Registry) Register(name string, t ValueType, mode TimestampMode) (*Entry, error) {
	buf, err := frame.New(t, mode)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h := wtype.NewHandle(r.nextID)

	e := &Entry{
		Handle:      h,
		Name:        name,
		Type:        t,
		Mode:        mode,
		Cell:        newCell(h, name, t),
		Buffer:      buf,
		Stream:      stream.New(),
		Log:         stream.New(),
		Monitor:     monitor.New(),
		LogFileName: fmt.Sprintf("%s.bin", name),
	}
	r.byName[name] = e
	r.byHandle[h.ID()] = e
	return e, nil
}

// Unregister removes the entry for h, if present. Flushing/closing any
// active log and releasing transport registrations is the manager's
// responsibility (spec §3's destruction sequence); Unregister only frees
// the registry slot. Buffer ids are never handed out again: Register always
// takes the next unused id.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byHandle[h.ID()]
	if !ok {
		return
	}
	delete(r.byHandle, h.ID())
	delete(r.byName, e.Name)
}

// Find looks up an entry by name (spec §4.1's find(name) -> handle|none).
func (r *Registry) Find(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Lookup resolves a handle back to its entry, used by inbound frame
// dispatch and the RT command-pipe consumer.
func (r *Registry) Lookup(h Handle) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byHandle[h.ID()]
	return e, ok
}

// All returns a stable-ordered snapshot of every registered entry, used by
// the control codec's "list" response and by the manager worker's log-flush
// pass.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.byHandle))
	for _, e := range r.byHandle {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle.ID() < out[j].Handle.ID() })
	return out
}
