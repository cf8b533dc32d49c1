package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full stream URL including the topic
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Deadline for control frames
	BufferSize       int           // Frame channel capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       64,
	}
}
