package connection

import (
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrClosed        = errors.New("connection closed")
	ErrAlreadyClosed = errors.New("already closed")
	ErrSendFailed    = errors.New("send failed")
	ErrHeartbeat     = errors.New("heartbeat failed")
)

// Frame is one raw inbound websocket message.
type Frame struct {
	Data       []byte    // Raw message bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage returned
}

// TransportConfig configures a single websocket.
type TransportConfig struct {
	URL              string        // ws:// or wss:// endpoint, agent segment included
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial handshake limit
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound frame channel buffer
}

// Config configures a Connection.
type Config struct {
	URL    string
	Header http.Header

	ReconnectBaseDelay   time.Duration // First reconnect delay
	ReconnectMaxDelay    time.Duration // Backoff ceiling
	MaxReconnectAttempts int           // Scheduled attempts before connection_failed

	HeartbeatInterval time.Duration // Ping period while connected; 0 disables
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	BufferSize        int // Inbound frames and initial event queue capacity

	SendRetries    int           // Extra attempts for a send while disconnected
	SendRetryDelay time.Duration // Spacing between send attempts
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    16 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1000,
		SendRetries:          3,
		SendRetryDelay:       500 * time.Millisecond,
	}
}

func (c Config) transportConfig() TransportConfig {
	return TransportConfig{
		URL:              c.URL,
		Header:           c.Header,
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}

func (c Config) retryState() RetryState {
	return RetryState{
		MaxAttempts: c.MaxReconnectAttempts,
		BaseDelay:   c.ReconnectBaseDelay,
		MaxDelay:    c.ReconnectMaxDelay,
	}
}
