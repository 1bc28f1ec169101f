// Package manager implements the Watcher Manager itself: the component that
// owns the shared clock and wires the registry, typed cells, frame buffers,
// stream/log state machines, monitor throttler, cross-thread command pipe,
// control codec and inbound decoder together (spec §2's data-flow summary).
//
// Per spec §9's design note ("global singleton manager -> explicit handle"),
// Manager is a plain constructed value the audio runtime's setup scope owns
// and threads through registration; there is no process-wide default.
package manager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/logger"
	"github.com/BelaPlatform/watcher-go/internal/watcher"
	"github.com/BelaPlatform/watcher-go/internal/watcher/control"
	"github.com/BelaPlatform/watcher-go/internal/watcher/handoff"
	"github.com/BelaPlatform/watcher-go/internal/watcher/inbound"
	"github.com/BelaPlatform/watcher-go/internal/watcher/pipe"
	"github.com/BelaPlatform/watcher-go/internal/watcher/stream"
	"github.com/BelaPlatform/watcher-go/internal/watcher/transport"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

const (
	toRTCapacity    = 256
	toNonRTCapacity = 128
	inboundRingSize = 16 * 1024
)

// Config holds manager setup options (spec §6's "Configuration" section).
type Config struct {
	SampleRate float32
	LogDir     string
	// ID correlates log files to the owning manager instance (spec §6's log
	// header "pointer-sized identifier of the owning manager").
	ID     uint64
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = logger.Logger()
	}
}

// Manager wires every watcher subpackage around one shared clock. Registered
// variables are exercised by three cooperating roles (spec §5): Tick is
// called by the RT thread at the top of every audio callback; notify fires
// synchronously from RT-thread writes to a registered Var; Run services the
// non-RT worker role, draining acknowledgements and flush requests.
type Manager struct {
	cfg Config
	log *slog.Logger

	reg       *watcher.Registry
	transport transport.Transport
	toRT      *pipe.ToRTPipe
	toNonRT   *pipe.ToNonRTPipe
	decoder   *inbound.Decoder

	clock     atomic.Uint64
	rtScratch []pipe.ToRT

	ringsMu sync.RWMutex
	rings   map[uint32]*handoff.Ring
}

// New constructs a Manager bound to t (may be nil for headless/test use).
func New(t transport.Transport, cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:       cfg,
		log:       cfg.Logger.With("component", "watcher_manager"),
		reg:       watcher.NewRegistry(),
		transport: t,
		toRT:      pipe.NewToRT(toRTCapacity),
		toNonRT:   pipe.NewToNonRT(toNonRTCapacity),
		rings:     make(map[uint32]*handoff.Ring),
	}
	m.decoder = inbound.New(m, m.pushInbound)
	if t != nil {
		t.OnControlMessage(m.handleControlMessage)
		t.OnBinaryFrame(m.handleBinaryFrame)
	}
	return m
}

// Register allocates a new watched variable: a registry entry, a typed Var
// wrapper, and an inbound handoff ring keyed on the variable's handle id
// (spec's first Open Question: every variable owns its own buffer id, no
// sharing — see DESIGN.md). The returned Var is what application/DSP code
// calls Set/Get on.
func Register[T watcher.Numeric](m *Manager, name string, t watcher.ValueType, mode watcher.TimestampMode) (watcher.Var[T], error) {
	e, err := m.reg.Register(name, t, mode)
	if err != nil {
		var zero watcher.Var[T]
		return zero, err
	}
	e.Cell.BindNotify(m.notify)
	m.ringsMu.Lock()
	m.rings[e.Handle.ID()] = handoff.NewRing(inboundRingSize)
	m.ringsMu.Unlock()
	return watcher.NewVar[T](e.Cell), nil
}

// Unregister flushes and closes any active log, drops the inbound ring, and
// removes the registry entry (spec §3's destruction sequence).
func (m *Manager) Unregister(h watcher.Handle) {
	if e, ok := m.reg.Lookup(h); ok {
		if w := e.LogWriter(); w != nil {
			_ = w.Flush()
			_ = w.Close()
		}
		e.Buffer.Release()
	}
	m.reg.Unregister(h)
	m.ringsMu.Lock()
	delete(m.rings, h.ID())
	m.ringsMu.Unlock()
}

// Registry exposes read-only lookups for the control codec and diagnostics.
func (m *Manager) Registry() *watcher.Registry { return m.reg }

// Clock returns the most recent tick value.
func (m *Manager) Clock() uint64 { return m.clock.Load() }

// InboundRing returns the handoff ring carrying validated inbound payloads
// for a registered variable, for the audio thread to drain. ok is false for
// an unregistered handle.
func (m *Manager) InboundRing(h watcher.Handle) (*handoff.Ring, bool) {
	m.ringsMu.RLock()
	defer m.ringsMu.RUnlock()
	r, ok := m.rings[h.ID()]
	return r, ok
}

// LookupInboundType implements inbound.Resolver.
func (m *Manager) LookupInboundType(bufferID uint32) (wtype.ValueType, bool) {
	e, ok := m.reg.Lookup(wtype.NewHandle(bufferID))
	if !ok {
		return 0, false
	}
	return e.Type, true
}

func (m *Manager) pushInbound(bufferID uint32, payload []byte) {
	m.ringsMu.RLock()
	r, ok := m.rings[bufferID]
	m.ringsMu.RUnlock()
	if !ok {
		return
	}
	r.Write(payload)
	r.Publish()
}

// handleBinaryFrame is registered as the transport's OnBinaryFrame callback
// (spec §4.7: "hands the payload to the application-supplied consumer on
// the non-RT transport thread").
func (m *Manager) handleBinaryFrame(data []byte) {
	if err := m.decoder.Decode(data); err != nil {
		m.log.Warn("inbound decode failed", "err", err)
	}
}

// handleControlMessage is registered as the transport's OnControlMessage
// callback (spec §4.6). Any synchronous responses (currently only "list")
// are written back immediately; errors are logged, never propagated to the
// transport thread's caller.
func (m *Manager) handleControlMessage(data []byte) {
	ctx := &control.Context{
		Registry:   m.reg,
		ToRT:       m.toRT,
		SampleRate: m.cfg.SampleRate,
		LogDir:     m.cfg.LogDir,
		ManagerID:  m.cfg.ID,
		Clock:      m.Clock,
		Logger:     m.log,
	}
	responses, err := control.Handle(ctx, data)
	if err != nil {
		m.log.Warn("control request had errors", "err", err)
	}
	if m.transport == nil {
		return
	}
	for _, r := range responses {
		if err := m.transport.SendControl(r); err != nil {
			m.log.Warn("failed to send control response", "err", err)
		}
	}
}

// Tick is called once per audio callback, before any DSP code runs (spec
// §5: "the clock advance in each tick happens-before any command delivery
// in that tick"). It advances the shared clock and applies every
// to-RT command published since the previous tick.
func (m *Manager) Tick(clock uint64) {
	m.clock.Store(clock)

	cmds, err := m.toRT.Drain(m.rtScratch)
	if err != nil {
		m.log.Warn("command pipe overrun", "err", err)
	}
	m.rtScratch = cmds

	ackPublished := false
	for _, c := range cmds {
		e, ok := m.reg.Lookup(c.Handle)
		if !ok {
			continue
		}
		switch c.Cmd {
		case pipe.StartWatching:
			e.Stream.Start(clock, c.Args[0], c.Args[1])
		case pipe.StopWatching:
			e.Stream.Stop(c.Args[0])
		case pipe.StartLogging:
			e.Log.Start(clock, c.Args[0], c.Args[1])
			m.toNonRT.Write(pipe.ToNonRT{
				Handle: c.Handle,
				Cmd:    pipe.StartedLogging,
				Args:   [2]uint64{e.Log.ScheduledStart(), e.Log.ScheduledEnd()},
			})
			ackPublished = true
		case pipe.StopLogging:
			e.Log.Stop(c.Args[0])
		}
	}
	if ackPublished {
		m.toNonRT.Publish()
	}
}

// notify is bound to every Cell at Register time; it runs the per-variable
// decision sequence of spec §4.4 synchronously on whatever thread called
// Var.Set (the RT thread, in steady state).
func (m *Manager) notify(h watcher.Handle) {
	e, ok := m.reg.Lookup(h)
	if !ok {
		return
	}
	if !e.SomethingToDo() {
		return
	}
	clock := m.clock.Load()

	resetStream := e.Stream.Advance(clock)
	resetLog := e.Log.Advance(clock)
	if resetStream || resetLog {
		e.Buffer.Reset()
	}

	if e.Monitor.Due(clock) {
		m.emitMonitor(e, clock)
	}

	streamActive := e.Stream.Phase().Active()
	logActive := e.Log.Phase().Active()
	if !streamActive && !logActive {
		return
	}

	if e.Buffer.Empty() {
		e.Buffer.StartHeader(clock)
	}
	e.Buffer.AppendBits(e.Cell.LocalBits(), clock)

	lastStream := e.Stream.Phase() == stream.Last
	lastLog := e.Log.Phase() == stream.Last
	if !e.Buffer.Full() && !lastStream && !lastLog {
		return
	}

	if lastStream || lastLog {
		e.Buffer.ZeroFillTail()
	}
	frame := e.Buffer.Bytes()

	if streamActive {
		m.sendStreamFrame(e, frame)
	}
	logOK := true
	if logActive {
		logOK = m.appendLogFrame(e, frame)
	}

	e.Buffer.Reset()
	if lastStream {
		e.Stream.FinishLast()
	}
	if lastLog && logOK {
		e.Log.FinishLast()
		e.RequestFlush()
	}
}

func (m *Manager) sendStreamFrame(e *watcher.Entry, frame []byte) {
	if m.transport == nil {
		return
	}
	err := m.transport.SendFrame(e.Handle.ID(), frame)
	if err == nil {
		return
	}
	var unavailable *werr.TransportUnavailableError
	if errors.As(err, &unavailable) {
		return // spec §7: "stream sends silently no-op but log writes continue"
	}
	m.log.Warn("stream send failed", "variable", e.Name, "err", err)
}

// appendLogFrame reports whether the frame was durably written; false means
// the log channel must not be allowed to reach its normal LAST->NO/flush
// transition, since the writer has already failed and self-disabled (spec
// §7 LogWriterFailure: "the log channel returning to NO").
func (m *Manager) appendLogFrame(e *watcher.Entry, frame []byte) bool {
	w := e.LogWriter()
	if w == nil {
		return false
	}
	if err := w.Append(frame); err != nil {
		m.log.Error("log append failed", "variable", e.Name, "err", werr.NewLogWriterFailureError("manager.notify", err))
		e.Log.Abort()
		return false
	}
	return true
}

func (m *Manager) emitMonitor(e *watcher.Entry, clock uint64) {
	if m.transport == nil {
		return
	}
	valSize := e.Type.Size()
	valuePart := valSize
	if valuePart < 8 {
		valuePart = 8
	}
	pkt := make([]byte, 8+valuePart)
	binary.LittleEndian.PutUint64(pkt[0:8], clock)
	putBits(pkt[8:8+valSize], e.Cell.LocalBits(), valSize)

	err := m.transport.SendMonitor(e.Handle.ID(), pkt)
	if err == nil {
		return
	}
	var unavailable *werr.TransportUnavailableError
	if errors.As(err, &unavailable) {
		return
	}
	m.log.Warn("monitor send failed", "variable", e.Name, "err", err)
}

func putBits(dst []byte, bits uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(bits)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(dst, bits)
	default:
		panic(fmt.Sprintf("manager: unsupported value size %d", size))
	}
}
