package handoff

import "testing"

func TestWritePublishRead(t *testing.T) {
	r := NewRing(8)
	if r.Available() != 0 {
		t.Fatalf("fresh ring should report 0 available, got %d", r.Available())
	}
	r.Write([]byte{1, 2, 3})
	if r.Available() != 0 {
		t.Fatalf("unpublished write must not be visible")
	}
	r.Publish()
	if r.Available() != 3 {
		t.Fatalf("available = %d, want 3", r.Available())
	}
	dst := make([]byte, 8)
	n := r.Read(dst)
	if n != 3 || dst[0] != 1 || dst[1] != 2 || dst[2] != 3 {
		t.Fatalf("n=%d dst=%v", n, dst[:n])
	}
	if r.Available() != 0 {
		t.Fatalf("ring should be empty after full read")
	}
}

func TestReadPartial(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte{10, 20, 30})
	r.Publish()
	dst := make([]byte, 2)
	n := r.Read(dst)
	if n != 2 || dst[0] != 10 || dst[1] != 20 {
		t.Fatalf("n=%d dst=%v", n, dst)
	}
	if r.Available() != 1 {
		t.Fatalf("available = %d, want 1", r.Available())
	}
}

func TestWrapAround(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte{1, 2, 3, 4})
	r.Publish()
	dst := make([]byte, 4)
	r.Read(dst)
	r.Write([]byte{5, 6})
	r.Publish()
	dst2 := make([]byte, 2)
	n := r.Read(dst2)
	if n != 2 || dst2[0] != 5 || dst2[1] != 6 {
		t.Fatalf("wraparound read mismatch: n=%d dst=%v", n, dst2)
	}
}
