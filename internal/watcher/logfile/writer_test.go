package logfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCreate_WritesHeaderRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osc1.bin")
	w, err := Create(path, "osc1", "float32", 0xdeadbeef, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("watcher\x00osc1\x00float32\x00")) {
		t.Fatalf("unexpected header prefix: %q", data)
	}
	if len(data)%4 != 0 {
		t.Fatalf("header not 4-byte padded: len=%d", len(data))
	}
}

func TestAppendThenFlushThenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.bin")
	w, err := Create(path, "v", "int32", 1, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Append([]byte("frame-one")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("frame-one")) {
		t.Fatalf("appended frame missing from file")
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.bin")
	w, err := Create(path, "v", "int32", 1, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append([]byte("late")); err == nil {
		t.Fatalf("expected error appending to a disabled writer")
	}
}
