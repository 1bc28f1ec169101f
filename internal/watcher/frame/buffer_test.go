package frame

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

func TestNew_BlockMode_Float32(t *testing.T) {
	b, err := New(wtype.TypeFloat32, Block)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := Capacity - HeaderSize
	if b.MaxCount() != want {
		t.Fatalf("maxCount = %d, want %d", b.MaxCount(), want)
	}
}

func TestNew_SampleMode_Int32_OffsetAligned(t *testing.T) {
	b, err := New(wtype.TypeInt32, Sample)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// N values of 4 bytes each + N relative timestamps of 4 bytes must fit
	// in Capacity-HeaderSize, and relOffset must be 4-byte aligned.
	n := b.MaxCount() / 4
	if (HeaderSize+n*4)%4 != 0 {
		t.Fatalf("relative timestamp offset not 4-byte aligned")
	}
	if HeaderSize+b.MaxCount()+n*4 > Capacity {
		t.Fatalf("value+timestamp arrays overflow capacity")
	}
}

func TestAllocationAlignment_RejectsUnsupportedType(t *testing.T) {
	if _, err := New(wtype.ValueType(255), Block); err == nil {
		t.Fatalf("expected allocation alignment error for unsupported type")
	}
}

func TestAppendAndHandoff_BlockMode(t *testing.T) {
	b, err := New(wtype.TypeFloat32, Block)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !b.Empty() {
		t.Fatalf("expected empty buffer")
	}
	b.StartHeader(5)
	for i, v := range []float32{5.0, 6.0, 7.0} {
		bits := uint64(math.Float32bits(v))
		b.AppendBits(bits, uint64(5+i))
	}
	if got := binary.LittleEndian.Uint64(b.Bytes()[0:8]); got != 5 {
		t.Fatalf("header timestamp = %d, want 5", got)
	}
	if b.Count() != 12 {
		t.Fatalf("count = %d, want 12", b.Count())
	}
	b.ZeroFillTail()
	tail := b.Bytes()[HeaderSize+12:]
	for i, by := range tail {
		if by != 0 {
			t.Fatalf("tail byte %d not zero-filled: %d", i, by)
		}
	}
	b.Reset()
	if !b.Empty() {
		t.Fatalf("expected empty after reset")
	}
}

func TestAppendAndHandoff_SampleMode_RelativeTimestamps(t *testing.T) {
	b, err := New(wtype.TypeInt32, Sample)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.StartHeader(100)
	ticks := []uint64{100, 103, 106, 109}
	for _, ts := range ticks {
		b.AppendBits(uint64(int32(ts)), ts)
	}
	b.ZeroFillTail()
	data := b.Bytes()
	relOffset := b.relOffset
	for i, ts := range ticks {
		rel := binary.LittleEndian.Uint32(data[relOffset+i*4 : relOffset+i*4+4])
		want := uint32(ts - 100)
		if rel != want {
			t.Fatalf("relative timestamp[%d] = %d, want %d", i, rel, want)
		}
	}
	// remaining relative-timestamp slots must be zero
	for i := len(ticks); i*4+relOffset+4 <= Capacity; i++ {
		rel := binary.LittleEndian.Uint32(data[relOffset+i*4 : relOffset+i*4+4])
		if rel != 0 {
			t.Fatalf("expected zero-filled relative timestamp at slot %d, got %d", i, rel)
		}
	}
}

func TestFull_BlockMode(t *testing.T) {
	b, _ := New(wtype.TypeFloat64, Block)
	b.StartHeader(0)
	n := b.MaxCount() / 8
	for i := 0; i < n; i++ {
		b.AppendBits(0, uint64(i))
	}
	if !b.Full() {
		t.Fatalf("expected buffer full after %d values", n)
	}
}
