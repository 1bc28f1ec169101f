package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSTransport_SendFrameRoundTrip(t *testing.T) {
	tr := New(nil)
	srv := httptest.NewServer(http.HandlerFunc(tr.ServeHTTP))
	defer srv.Close()

	if tr.Connected() {
		t.Fatalf("should not be connected before dial")
	}
	conn := dial(t, srv)

	// give the server goroutine a moment to register the connection
	deadline := time.Now().Add(time.Second)
	for !tr.Connected() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !tr.Connected() {
		t.Fatalf("expected Connected() after dial")
	}

	if err := tr.SendFrame(1, []byte("frame-data")); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage || string(data) != "frame-data" {
		t.Fatalf("got (%d, %q), want binary frame-data", mt, data)
	}
}

func TestWSTransport_SendWithoutConnectionFails(t *testing.T) {
	tr := New(nil)
	if err := tr.SendFrame(1, []byte("x")); err == nil {
		t.Fatalf("expected TransportUnavailable error with no connection")
	}
}

func TestWSTransport_DispatchesControlAndBinaryCallbacks(t *testing.T) {
	tr := New(nil)
	controlCh := make(chan []byte, 1)
	binaryCh := make(chan []byte, 1)
	tr.OnControlMessage(func(b []byte) { controlCh <- b })
	tr.OnBinaryFrame(func(b []byte) { binaryCh <- b })

	srv := httptest.NewServer(http.HandlerFunc(tr.ServeHTTP))
	defer srv.Close()
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"watcher":[]}`)); err != nil {
		t.Fatalf("write text: %v", err)
	}
	select {
	case got := <-controlCh:
		if string(got) != `{"watcher":[]}` {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for control callback")
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	select {
	case got := <-binaryCh:
		if len(got) != 4 {
			t.Fatalf("got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for binary callback")
	}
}
