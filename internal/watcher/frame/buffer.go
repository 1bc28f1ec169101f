// Package frame implements the per-variable Frame Buffer (spec §3, §6): a
// fixed-capacity byte buffer holding one 8-byte absolute-timestamp header
// followed by either a dense array of values (block mode) or a value array
// plus a parallel array of 4-byte relative timestamps (sample mode).
//
// The wire layout mirrors the header-then-payload shape of the teacher's
// chunk header encoder (internal/rtmp/chunk), but the layout itself is
// fixed-size and has no FMT-variant header compression: every hand-off is
// exactly Capacity bytes, by design (spec §9: "Zero-fill on LAST").
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/BelaPlatform/watcher-go/internal/bufpool"
	protoerr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// Capacity is the fixed total size B of every outbound stream frame,
// including the 8-byte header (spec §6: "Total B is fixed at 4,104 bytes").
const Capacity = 4096 + HeaderSize

// HeaderSize is the width of the absolute-timestamp header.
const HeaderSize = 8

// Buffer is one variable's frame buffer, shared by the stream and log
// channels (spec §3: "shared by both stream channels").
type Buffer struct {
	valType ValueType
	mode    TimestampMode
	valSize int

	// maxCount is the number of value-array bytes (not counting the
	// header) that may be written before the buffer is full.
	maxCount int
	// relOffset is the byte offset, from the start of the buffer, where
	// the relative-timestamp array begins (sample mode only).
	relOffset int

	data          []byte
	count         int // bytes of value data written so far
	countRelBytes int // bytes of relative-timestamp data written so far
	startTS       uint64
}

// re-export the shared value/timestamp-mode types under short local aliases
// so call sites read as frame.ValueType instead of wtype.ValueType.
type ValueType = wtype.ValueType
type TimestampMode = wtype.TimestampMode

const (
	Block  = wtype.TimestampBlock
	Sample = wtype.TimestampSample
)

// New allocates a frame buffer for a variable of the given value type and
// timestamp mode, precomputing maxCount and (for sample mode) the
// relative-timestamp array offset per spec §3/§6.
//
// New fails with an AllocationAlignment error if the value array (which
// starts at offset HeaderSize) cannot be naturally aligned for valType,
// matching spec §3's registration invariant.
func New(valType ValueType, mode TimestampMode) (*Buffer, error) {
	valSize := valType.Size()
	if valSize == 0 {
		return nil, protoerr.NewAllocationAlignmentError("frame.new", fmt.Errorf("unsupported value type %v", valType))
	}
	if HeaderSize%valSize != 0 {
		return nil, protoerr.NewAllocationAlignmentError("frame.new",
			fmt.Errorf("value array at offset %d is not aligned to %d-byte values", HeaderSize, valSize))
	}

	// Frame buffers come from the shared size-classed pool rather than a
	// fresh make() per variable (kept from the teacher's chunk-assembly
	// path, which pools buffers the same way): Capacity falls in the
	// pool's 65536-byte class, so repeatedly registering/unregistering
	// variables reuses backing arrays instead of pressuring the GC.
	b := &Buffer{
		valType: valType,
		mode:    mode,
		valSize: valSize,
		data:    bufpool.Get(Capacity),
	}

	if mode == Block {
		b.maxCount = Capacity - HeaderSize
	} else {
		// floor((B-8) / (valSize+4)) values fit; the timestamp array
		// starts right after them, rounded down to a 4-byte boundary
		// (spec §6: "O is computed ... rounded down to a u32 alignment
		// boundary").
		const relSize = 4
		n := (Capacity - HeaderSize) / (valSize + relSize)
		offset := HeaderSize + n*valSize
		offset &^= (relSize - 1)
		b.relOffset = offset
		b.maxCount = offset - HeaderSize
	}
	return b, nil
}

// MaxCount returns the precomputed capacity, in bytes, of the value array.
func (b *Buffer) MaxCount() int { return b.maxCount }

// Count returns bytes of value data written to the current (unflushed) frame.
func (b *Buffer) Count() int { return b.count }

// Empty reports whether no value has been appended to the current frame yet.
func (b *Buffer) Empty() bool { return b.count == 0 }

// Full reports whether the value array (and, in sample mode, the
// relative-timestamp array) has reached capacity.
func (b *Buffer) Full() bool {
	if b.count >= b.maxCount {
		return true
	}
	if b.mode == Sample && b.countRelBytes >= Capacity {
		return true
	}
	return false
}

// StartHeader stamps the absolute start timestamp into the header if this is
// the first append of a new frame (spec §4.4 step 3a).
func (b *Buffer) StartHeader(ts uint64) {
	if !b.Empty() {
		return
	}
	b.startTS = ts
	binary.LittleEndian.PutUint64(b.data[0:HeaderSize], ts)
	b.countRelBytes = b.relOffset
}

// StartTimestamp returns the timestamp stamped by the most recent StartHeader.
func (b *Buffer) StartTimestamp() uint64 { return b.startTS }

// AppendBits appends one value, given as its little-endian bit pattern
// truncated to valSize bytes, and — in sample mode — the relative timestamp
// for that sample (spec invariant 3: "the i-th relative timestamp equals
// (tᵢ − startTimestamp)").
func (b *Buffer) AppendBits(bits uint64, ts uint64) {
	off := HeaderSize + b.count
	putUint(b.data[off:off+b.valSize], bits, b.valSize)
	b.count += b.valSize

	if b.mode == Sample {
		rel := uint32(ts - b.startTS)
		binary.LittleEndian.PutUint32(b.data[b.countRelBytes:b.countRelBytes+4], rel)
		b.countRelBytes += 4
	}
}

// ZeroFillTail zero-fills any unused bytes of the value array and (in sample
// mode) the relative-timestamp array, per spec §4.4 step 3c / invariant 3
// ("remaining slots are zero").
func (b *Buffer) ZeroFillTail() {
	for i := HeaderSize + b.count; i < HeaderSize+b.maxCount; i++ {
		b.data[i] = 0
	}
	if b.mode == Sample {
		for i := b.countRelBytes; i < Capacity; i++ {
			b.data[i] = 0
		}
	}
}

// Bytes returns the full on-wire frame (header + data), valid until the next
// Reset. Callers that need to retain the frame past a Reset must copy it —
// the same contract the teacher's media.Recorder places on chunk.Message
// payloads it persists.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset clears the value/relative-timestamp counters, ready for the next
// frame. It does not reallocate the backing array.
func (b *Buffer) Reset() {
	b.count = 0
	b.countRelBytes = 0
}

// Release returns the backing array to the shared pool. Call only at
// variable destruction (spec §3), once the buffer will never be appended
// to or read again.
func (b *Buffer) Release() {
	bufpool.Put(b.data)
	b.data = nil
}

func putUint(dst []byte, bits uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(bits)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(dst, bits)
	}
}
