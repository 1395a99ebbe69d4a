package correlator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/envelope"
)

// Reason explains why a Result is a fallback.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonTimeout    Reason = "timeout"
	ReasonCancelled  Reason = "cancelled"
	ReasonSendFailed Reason = "send_failed"
)

// Conn is the part of a connection the correlator needs.
type Conn interface {
	Send(ctx context.Context, env envelope.Envelope) error
	Subscribe(h bus.Handler) func()
	OnTeardown(f func())
}

// Options configures one request.
type Options struct {
	// Timeout bounds the wait for a response. Zero uses the correlator default.
	Timeout time.Duration

	// Fallback is returned as Result.Data when no response arrives.
	Fallback json.RawMessage
}

// Result is the outcome of a request.
type Result struct {
	CorrelationID string
	Component     string
	Action        string

	Success bool
	Data    json.RawMessage
	Error   string

	// Fallback is true when Data was synthesized locally.
	Fallback bool
	Reason   Reason

	Latency time.Duration
}

// outcome is the metrics label for r.
func (r Result) outcome() string {
	switch {
	case r.Fallback:
		return string(r.Reason)
	case r.Success:
		return "success"
	default:
		return "error"
	}
}
