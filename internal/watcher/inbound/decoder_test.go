package inbound

import (
	"encoding/binary"
	"errors"
	"testing"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

type fakeResolver map[uint32]wtype.ValueType

func (f fakeResolver) LookupInboundType(id uint32) (wtype.ValueType, bool) {
	t, ok := f[id]
	return t, ok
}

func encodeFrame(bufferID uint32, tag [4]byte, values []int32) []byte {
	buf := make([]byte, HeaderSize+len(values)*4)
	binary.LittleEndian.PutUint32(buf[0:4], bufferID)
	copy(buf[4:8], tag[:])
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(values)))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[HeaderSize+i*4:], uint32(v))
	}
	return buf
}

func TestDecode_ValidFrameDispatchesPayload(t *testing.T) {
	resolver := fakeResolver{3: wtype.TypeInt32}
	var gotID uint32
	var gotPayload []byte
	d := New(resolver, func(id uint32, payload []byte) {
		gotID = id
		gotPayload = append([]byte(nil), payload...)
	})

	frame := encodeFrame(3, typeTag(wtype.TypeInt32), []int32{1, 2, 3})
	if err := d.Decode(frame); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotID != 3 {
		t.Fatalf("gotID = %d, want 3", gotID)
	}
	if len(gotPayload) != 12 {
		t.Fatalf("payload len = %d, want 12", len(gotPayload))
	}
}

func TestDecode_UnknownBufferID(t *testing.T) {
	d := New(fakeResolver{}, func(uint32, []byte) { t.Fatalf("consumer should not run") })
	frame := encodeFrame(99, typeTag(wtype.TypeFloat32), []int32{1})
	err := d.Decode(frame)
	var uv *werr.UnknownVariableError
	if !errors.As(err, &uv) {
		t.Fatalf("err = %v, want UnknownVariableError", err)
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	resolver := fakeResolver{1: wtype.TypeFloat32}
	d := New(resolver, func(uint32, []byte) { t.Fatalf("consumer should not run") })
	frame := encodeFrame(1, typeTag(wtype.TypeInt32), []int32{1})
	err := d.Decode(frame)
	var tm *werr.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
}

func TestDecode_ShortPayload(t *testing.T) {
	resolver := fakeResolver{1: wtype.TypeInt32}
	d := New(resolver, func(uint32, []byte) { t.Fatalf("consumer should not run") })
	frame := encodeFrame(1, typeTag(wtype.TypeInt32), []int32{1, 2})
	truncated := frame[:len(frame)-1]
	if err := d.Decode(truncated); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}
