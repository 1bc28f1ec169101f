package watcher

import (
	"sync/atomic"

	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Cell is the untyped storage behind every watched variable: a local value
// (last written by local/DSP code), a remote value (last written by the
// control codec's set/setMask), and the localControl flag selecting which
// one get() reports (spec §4.2). Word-sized fields are atomics so the
// codec's non-RT writes and the RT thread's reads need no lock, matching
// spec §5's "relaxed atomics, no ordering required beyond per-variable
// eventual visibility".
//
// Per the design note on tagged variants, there is one Cell implementation
// for every ValueType; Set/Get box and unbox through wtype.BitsOf/ValueOf
// rather than five generated specializations.
type Cell struct {
	handle Handle
	name   string
	typ    ValueType

	local        atomic.Uint64
	remote       atomic.Uint64
	localControl atomic.Bool

	// notify is bound by the manager at registration time (spec §9's
	// "capability struct" in place of a virtual onLocalControlChanged):
	// Set invokes it after updating local so the manager can run the
	// stream/monitor machinery for this variable.
	notify func(Handle)
}

func newCell(h Handle, name string, t ValueType) *Cell {
	c := &Cell{handle: h, name: name, typ: t}
	c.localControl.Store(true) // quiescent: local value is authoritative
	return c
}

// Handle returns the owning variable's registry handle.
func (c *Cell) Handle() Handle { return c.handle }

// Name returns the variable's registration name.
func (c *Cell) Name() string { return c.name }

// Type returns the variable's declared ValueType.
func (c *Cell) Type() ValueType { return c.typ }

// BindNotify wires the manager's notify callback. Called once, at
// registration, by the manager.
func (c *Cell) BindNotify(fn func(Handle)) { c.notify = fn }

// SetBits updates the local value from a packed bit pattern and invokes
// notify (spec §4.2: "set must be total and bounded; it may invoke notify").
func (c *Cell) SetBits(bits uint64) {
	c.local.Store(bits)
	if c.notify != nil {
		c.notify(c.handle)
	}
}

// GetBits implements get() per spec §4.2: local value if localControl is
// enabled, else the remote value.
func (c *Cell) GetBits() uint64 {
	if c.localControl.Load() {
		return c.local.Load()
	}
	return c.remote.Load()
}

// LocalBits returns the local value regardless of localControl.
func (c *Cell) LocalBits() uint64 { return c.local.Load() }

// RemoteBits returns the remote value regardless of localControl.
func (c *Cell) RemoteBits() uint64 { return c.remote.Load() }

// SetRemoteBits writes the remote value (codec's "set" command).
func (c *Cell) SetRemoteBits(bits uint64) { c.remote.Store(bits) }

// LocalControl reports whether the local value is currently authoritative.
func (c *Cell) LocalControl() bool { return c.localControl.Load() }

// SetLocalControl implements localControl(bool) per spec §4.2. Disabling it
// (enabled == false, i.e. handing control to the remote host) seeds the
// remote value from the current local value first, so the variable does not
// snap to a stale remote value the instant control is ceded.
func (c *Cell) SetLocalControl(enabled bool) {
	if !enabled {
		c.remote.Store(c.local.Load())
	}
	c.localControl.Store(enabled)
}

// SetMask applies setMask: clears the bits selected by mask in the remote
// value and ORs in value&mask (spec §4.2). Integer types only; callers
// should check Type().IsInteger() and reject otherwise (spec §7
// TypeMismatch) — SetMask itself is a no-op for non-integer types so a
// stray call can never corrupt a float's bit pattern.
func (c *Cell) SetMask(value, mask uint32) {
	if !c.typ.IsInteger() {
		return
	}
	for {
		old := c.remote.Load()
		next := (uint32(old) &^ mask) | (value & mask)
		if c.remote.CompareAndSwap(old, uint64(next)) {
			return
		}
	}
}

// Numeric is the set of Go types a typed Var[T] may bind a Cell to. Each
// must correspond to exactly one wtype.ValueType at registration.
type Numeric interface {
	~int8 | ~uint32 | ~int32 | ~float32 | ~float64
}

// Var is a thin, compile-time-typed handle onto a Cell, letting application
// (DSP) code write `v.Set(1.0)` instead of threading bit patterns by hand.
// It carries no state of its own, so copying a Var is cheap and safe.
type Var[T Numeric] struct {
	cell *Cell
}

// NewVar wraps a Cell in a typed accessor. The caller is responsible for
// picking a T matching the Cell's declared ValueType (TypeFloat32 ->
// float32, TypeInt32 -> int32, TypeChar -> int8, and so on). The generic
// manager.Register helper takes T and the ValueType as separate arguments
// and does not check that they correspond.
func NewVar[T Numeric](c *Cell) Var[T] { return Var[T]{cell: c} }

// Cell returns the underlying untyped cell, e.g. for passing to the codec.
func (v Var[T]) Cell() *Cell { return v.cell }

// Handle returns the variable's registry handle.
func (v Var[T]) Handle() Handle { return v.cell.handle }

// Set writes the local value and triggers notify (spec §4.2).
func (v Var[T]) Set(val T) { v.cell.SetBits(wtype.BitsOf(v.cell.typ, float64(val))) }

// Get returns the local or remote value depending on localControl.
func (v Var[T]) Get() T { return T(wtype.ValueOf(v.cell.typ, v.cell.GetBits())) }

// LocalValue returns the local value regardless of localControl.
func (v Var[T]) LocalValue() T { return T(wtype.ValueOf(v.cell.typ, v.cell.LocalBits())) }

// LocalControl toggles local vs remote authority (spec §4.2).
func (v Var[T]) LocalControl(enabled bool) { v.cell.SetLocalControl(enabled) }

// SetMask is defined only for integer element types; see Cell.SetMask.
func (v Var[T]) SetMask(value, mask uint32) { v.cell.SetMask(value, mask) }
