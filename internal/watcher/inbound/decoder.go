// Package inbound implements the Inbound Frame Decoder (spec §4.7, §6):
// fixed-layout binary frames the host pushes into the runtime, validated
// against a per-buffer-id type table and handed to an application-supplied
// consumer on the transport's non-RT thread.
package inbound

import (
	"encoding/binary"
	"fmt"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
	"github.com/BelaPlatform/watcher-go/internal/watcher/wtype"
)

// HeaderSize is the fixed inbound frame header width (spec §6):
// bufferId(4) + bufferType(4) + bufferLen(4) + reserved(4).
const HeaderSize = 16

// typeTag returns the 4-byte ASCII wire tag for a ValueType. The decoder
// treats this table as the authority for the host's declared element type,
// the same way it treats bufferId as the authority for which variable a
// push targets.
func typeTag(t wtype.ValueType) [4]byte {
	switch t {
	case wtype.TypeChar:
		return [4]byte{'C', 'H', 'A', 'R'}
	case wtype.TypeUint32:
		return [4]byte{'U', 'I', '3', '2'}
	case wtype.TypeInt32:
		return [4]byte{'I', '3', '2', ' '}
	case wtype.TypeFloat32:
		return [4]byte{'F', '3', '2', ' '}
	case wtype.TypeFloat64:
		return [4]byte{'F', '6', '4', ' '}
	default:
		return [4]byte{}
	}
}

// Resolver maps an inbound transport buffer id to the ValueType registered
// for it. Per spec's first Open Question, this implementation decides that
// every variable owns its own inbound buffer id — one-to-one with its
// outbound/transport buffer id (wtype.Handle.ID()) — so a Resolver is just
// "what type did I register buffer id N with"; see DESIGN.md.
type Resolver interface {
	LookupInboundType(bufferID uint32) (wtype.ValueType, bool)
}

// Consumer receives a validated inbound payload: the raw bytes of
// bufferLen values of the buffer's declared type, ready to be pushed into
// a handoff.Ring for the audio thread to drain.
type Consumer func(bufferID uint32, payload []byte)

// Decoder parses inbound binary frames and dispatches validated payloads.
type Decoder struct {
	resolver Resolver
	consume  Consumer
}

// New builds a Decoder. consume is invoked synchronously from Decode, on
// whatever goroutine called Decode (per spec, the transport's thread).
func New(resolver Resolver, consume Consumer) *Decoder {
	return &Decoder{resolver: resolver, consume: consume}
}

// Decode parses and validates one inbound frame (spec §6 layout) and, on
// success, invokes the consumer with the payload slice (a view into data,
// not a copy — callers that retain it past the call must copy).
func (d *Decoder) Decode(data []byte) error {
	if len(data) < HeaderSize {
		return werr.NewProtocolError("inbound.decode", fmt.Errorf("short header: %d bytes", len(data)))
	}
	bufferID := binary.LittleEndian.Uint32(data[0:4])
	var bufferType [4]byte
	copy(bufferType[:], data[4:8])
	bufferLen := binary.LittleEndian.Uint32(data[8:12])
	// data[12:16] is reserved and ignored.

	want, ok := d.resolver.LookupInboundType(bufferID)
	if !ok {
		return werr.NewUnknownVariableError("inbound.decode", fmt.Sprintf("buffer id %d", bufferID))
	}
	if bufferType != typeTag(want) {
		return werr.NewTypeMismatchError("inbound.decode",
			fmt.Errorf("buffer %d: wire type %q does not match registered type %v", bufferID, bufferType, want))
	}

	wantLen := HeaderSize + int(bufferLen)*want.Size()
	if len(data) < wantLen {
		return werr.NewProtocolError("inbound.decode",
			fmt.Errorf("buffer %d: short payload: have %d bytes, want %d", bufferID, len(data), wantLen))
	}

	if d.consume != nil {
		d.consume(bufferID, data[HeaderSize:wantLen])
	}
	return nil
}
