package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string, buffer int) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   buffer,
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Just keep the connection open
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 100), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClient_ConnectRefused(t *testing.T) {
	server := mockWSServer(t, func(*websocket.Conn) {})
	url := wsURL(server)
	server.Close()

	client := NewClient(testConfig(url, 10), nil)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestClient_Messages(t *testing.T) {
	testMessages := []string{
		`{"e":"trade","t":1}`,
		`{"e":"trade","t":2}`,
		`{"e":"trade","t":3}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		// Keep connection open
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 100), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var received []string
	timeout := time.After(500 * time.Millisecond)

	for i := 0; i < len(testMessages); i++ {
		select {
		case msg := <-client.Messages():
			received = append(received, string(msg.Data))
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", len(received), len(testMessages))
		}
	}

	for i, want := range testMessages {
		if received[i] != want {
			t.Errorf("message %d: got %q, want %q", i, received[i], want)
		}
	}
}

func TestClient_FullBufferBlocksInsteadOfDropping(t *testing.T) {
	const total = 200

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for i := 0; i < total; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("%d", i))); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 1), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// Let the server get ahead of a single-slot buffer.
	time.Sleep(100 * time.Millisecond)

	timeout := time.After(2 * time.Second)
	for i := 0; i < total; i++ {
		select {
		case msg := <-client.Messages():
			if got := string(msg.Data); got != fmt.Sprintf("%d", i) {
				t.Fatalf("message %d = %q, frames dropped or reordered", i, got)
			}
		case <-timeout:
			t.Fatalf("timeout after %d of %d messages", i, total)
		}
	}
}

func TestClient_CloseDeliversFrameAlreadyRead(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("%d", i))); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 1), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Frame 0 fills the buffer; the reader holds frame 1 while blocked.
	time.Sleep(200 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var frames []string
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				break loop
			}
			frames = append(frames, string(msg.Data))
		case <-timeout:
			t.Fatal("messages channel not closed after Close")
		}
	}

	if len(frames) != 2 || frames[0] != "0" || frames[1] != "1" {
		t.Errorf("frames = %v, want [0 1]", frames)
	}
}

func TestClient_ServerCloseEndsStream(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("last"))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 10), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var frames []string
	timeout := time.After(time.Second)
loop:
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				break loop
			}
			frames = append(frames, string(msg.Data))
		case <-timeout:
			t.Fatal("messages channel not closed after server close")
		}
	}

	if len(frames) != 1 || frames[0] != "last" {
		t.Errorf("frames = %v, want [last]", frames)
	}

	select {
	case err := <-client.Errors():
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("error = %v, want close 1001", err)
		}
	default:
		t.Error("expected an error after server close")
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 100), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// First close should succeed
	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}

	// Second close should be no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := client.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_CloseBeforeConnect(t *testing.T) {
	client := NewClient(testConfig("ws://127.0.0.1:1", 10), nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-client.Messages(); ok {
		t.Error("expected closed messages channel")
	}
}

func TestClient_PingHandler(t *testing.T) {
	pong := make(chan string, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.SetPongHandler(func(data string) error {
			pong <- data
			return nil
		})
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		// Control frames are processed inside ReadMessage.
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(testConfig(wsURL(server), 100), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case data := <-pong:
		if data != "heartbeat" {
			t.Errorf("pong payload = %q, want heartbeat", data)
		}
	case <-time.After(time.Second):
		t.Fatal("no pong received")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	// Server never reads, so our pings go unanswered.
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	cfg := testConfig(wsURL(server), 10)
	cfg.PingTimeout = 100 * time.Millisecond
	client := NewClient(cfg, nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if err != ErrStaleConnection {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection not detected")
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.PingTimeout != 60*time.Second {
		t.Errorf("PingTimeout = %v, want 60s", cfg.PingTimeout)
	}
	if cfg.BufferSize != 64 {
		t.Errorf("BufferSize = %d, want 64", cfg.BufferSize)
	}
}
