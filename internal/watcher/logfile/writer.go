// Package logfile implements the binary log writer collaborator named out
// of core scope in spec §1: a per-variable append-only file holding a
// header record (spec §6) followed by a sequence of stream frames.
//
// Shape follows the teacher's media.Recorder: os.Create on open, a
// disabled-on-first-error fallback so a write failure never panics the
// caller, and a mutex guarding the handle — here doing double duty as the
// synchronisation spec §5 requires between the RT thread's Append calls
// and the non-RT worker's Flush/Close calls.
package logfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Writer persists stream frames for one watched variable to a binary file.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	logger *slog.Logger

	disabled bool
}

// Create opens path, writes the log header (spec §6: "watcher"\0,
// variable-name\0, type-name\0, pid, manager id, zero-padded to a 4-byte
// boundary), and returns a Writer ready to Append stream frames.
func Create(path, variable, typeName string, managerID uint64, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("logfile.create: %w", err)
	}
	w := &Writer{f: f, path: path, logger: logger}
	if err := w.writeHeader(variable, typeName, managerID); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(variable, typeName string, managerID uint64) error {
	var buf bytes.Buffer
	buf.WriteString("watcher")
	buf.WriteByte(0)
	buf.WriteString(variable)
	buf.WriteByte(0)
	buf.WriteString(typeName)
	buf.WriteByte(0)
	var num [4 + 8]byte
	binary.LittleEndian.PutUint32(num[0:4], uint32(os.Getpid()))
	binary.LittleEndian.PutUint64(num[4:12], managerID)
	buf.Write(num[:])
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(buf.Bytes()); err != nil {
		w.logger.Error("logfile header write failed", "path", w.path, "err", err)
		w.closeLocked()
		return fmt.Errorf("logfile.header: %w", err)
	}
	return nil
}

// Append writes one stream frame (header + samples, spec §6) to the file.
// Called from the RT thread on every hand-off (spec §5: "the log file
// handle is owned by the RT thread for log() calls"). On failure the
// writer disables itself and the caller is expected to surface a
// LogWriterFailure and return the log channel to NO.
func (w *Writer) Append(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disabled {
		return fmt.Errorf("logfile: %s: writer disabled after earlier failure", w.path)
	}
	if _, err := w.f.Write(frame); err != nil {
		w.logger.Error("logfile append failed", "path", w.path, "err", err)
		w.closeLocked()
		return fmt.Errorf("logfile.append: %w", err)
	}
	return nil
}

// Flush commits buffered data to storage. Called by the non-RT manager
// worker on transition to LAST (spec §4.4, §6: "Flush is requested on
// transition to LAST"), never by the RT thread.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disabled {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("logfile.flush: %w", err)
	}
	return nil
}

// Close finalises the file. Called by the non-RT worker at variable
// destruction (spec §3: "Destruction flushes and closes any active log").
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.disabled {
		return nil
	}
	w.disabled = true
	return w.f.Close()
}

// Path returns the file path this writer was opened against.
func (w *Writer) Path() string { return w.path }
