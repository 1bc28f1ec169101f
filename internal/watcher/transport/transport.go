// Package transport implements the GUI/WebSocket transport collaborator
// named out of core scope in spec §1: per-buffer binary sends to the host,
// a JSON control channel delivered on a non-RT thread, and a binary-frame
// callback on the same thread.
//
// The manager only depends on the narrow Transport interface; WSTransport
// is one concrete instantiation, built on gorilla/websocket the way the
// pack's other websocket-fronted services (strawgo-ai's transports package,
// helix's desktop ws_stream) wire an upgrader plus a single guarded
// connection.
package transport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	werr "github.com/BelaPlatform/watcher-go/internal/errors"
)

// Transport is the narrow surface the watcher manager drives. Per spec's
// non-goals ("a single host is assumed; multiple connections merely gate
// whether streaming is transmitted"), there is no per-client fan-out: only
// the most recently connected client receives sends.
type Transport interface {
	// Connected reports whether a host is currently attached.
	Connected() bool
	// SendFrame writes a stream/log hand-off frame for the given transport
	// buffer id. Best-effort: returns an error if no host is connected.
	// WSTransport writes synchronously, so a call lasts as long as the
	// socket write; frame is not retained after the call returns.
	SendFrame(bufferID uint32, frame []byte) error
	// SendMonitor writes a single monitor packet for the given buffer id.
	SendMonitor(bufferID uint32, packet []byte) error
	// SendControl writes a JSON control response to the active connection.
	SendControl(payload []byte) error
	// OnControlMessage registers the callback invoked with each inbound
	// JSON control request, on the transport's own (non-RT) goroutine.
	OnControlMessage(func([]byte))
	// OnBinaryFrame registers the callback invoked with each inbound binary
	// push frame, on the transport's own (non-RT) goroutine.
	OnBinaryFrame(func([]byte))
}

// WSTransport is a gorilla/websocket-backed Transport serving exactly one
// path and, per the single-host assumption, one live connection at a time.
type WSTransport struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	onControl func([]byte)
	onBinary  func([]byte)
}

// New returns a WSTransport accepting connections from any origin (the
// embedded host's GUI is assumed trusted, per spec's "no host
// authentication" non-goal).
func New(logger *slog.Logger) *WSTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSTransport{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// OnControlMessage implements Transport.
func (t *WSTransport) OnControlMessage(fn func([]byte)) { t.onControl = fn }

// OnBinaryFrame implements Transport.
func (t *WSTransport) OnBinaryFrame(fn func([]byte)) { t.onBinary = fn }

// Connected implements Transport.
func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// ServeHTTP upgrades the request and becomes the active connection,
// replacing any previous one (single-host assumption). It blocks reading
// inbound messages until the connection closes, so callers typically run
// it from http.Handle in its own goroutine per connection — which is what
// net/http already gives each request.
func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Error("watcher transport: upgrade failed", "err", err)
		return
	}
	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = conn
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.TextMessage:
			if t.onControl != nil {
				t.onControl(data)
			}
		case websocket.BinaryMessage:
			if t.onBinary != nil {
				t.onBinary(data)
			}
		}
	}
}

// SendFrame implements Transport. bufferID is accepted for interface
// symmetry with the inbound side and for a future multi-stream wire
// envelope; the present wire format (spec §6) is one frame per message, so
// it is not yet encoded on the outbound side.
func (t *WSTransport) SendFrame(bufferID uint32, frame []byte) error {
	return t.send(websocket.BinaryMessage, frame)
}

// SendMonitor implements Transport, using the same binary channel as
// stream frames (spec §9: "monitor and streaming share the buffer id on
// the transport but not the frame buffer").
func (t *WSTransport) SendMonitor(bufferID uint32, packet []byte) error {
	return t.send(websocket.BinaryMessage, packet)
}

// SendControl writes a JSON control response (spec §6 "list"/"started
// logging" replies) to the active connection.
func (t *WSTransport) SendControl(payload []byte) error {
	return t.send(websocket.TextMessage, payload)
}

func (t *WSTransport) send(messageType int, payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return werr.NewTransportUnavailableError("transport.send")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(messageType, payload)
}
