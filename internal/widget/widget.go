package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/correlator"
	"github.com/rickgao/agentlink/internal/envelope"
)

// ReasonServerError marks placeholder content shown because the agent
// answered with success=false.
const ReasonServerError correlator.Reason = "server_error"

// Requester issues correlated requests.
type Requester interface {
	Request(ctx context.Context, req envelope.DataRequest, opts correlator.Options) *correlator.Future
}

// Subscriber exposes the connection's event stream.
type Subscriber interface {
	Subscribe(h bus.Handler) func()
}

// Payload is what a widget renders.
type Payload struct {
	Data     json.RawMessage
	Fallback bool
	Reason   correlator.Reason
	Error    string
	Latency  time.Duration
}

// Widget fetches data for one UI component.
type Widget struct {
	component string
	requests  Requester
	events    Subscriber
	fallback  FallbackFunc
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Widget.
type Option func(*Widget)

// WithFallback sets the placeholder generator.
func WithFallback(f FallbackFunc) Option {
	return func(w *Widget) {
		if f != nil {
			w.fallback = f
		}
	}
}

// WithTimeout overrides the request timeout for this widget.
func WithTimeout(d time.Duration) Option {
	return func(w *Widget) {
		w.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Widget) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a widget for component.
func New(component string, requests Requester, events Subscriber, opts ...Option) *Widget {
	w := &Widget{
		component: component,
		requests:  requests,
		events:    events,
		fallback:  EmptyFallback,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("widget", component)
	return w
}

// Component returns the component name sent with every request.
func (w *Widget) Component() string { return w.component }

// Fetch requests action with data (any JSON-marshalable value, or nil) and
// waits for the outcome. The only error is ctx ending first or data failing
// to marshal; every other outcome is a Payload, possibly a placeholder.
func (w *Widget) Fetch(ctx context.Context, action string, data any) (Payload, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Payload{}, fmt.Errorf("marshal %s/%s data: %w", w.component, action, err)
		}
		raw = b
	}

	fb := w.fallback(action, raw)
	fut := w.requests.Request(ctx, envelope.DataRequest{
		Component: w.component,
		Action:    action,
		Data:      raw,
	}, correlator.Options{Timeout: w.timeout, Fallback: fb})

	res, err := fut.Wait(ctx)
	if err != nil {
		return Payload{}, err
	}

	p := Payload{
		Data:     res.Data,
		Fallback: res.Fallback,
		Reason:   res.Reason,
		Error:    res.Error,
		Latency:  res.Latency,
	}
	if !res.Fallback && !res.Success {
		w.logger.Warn("agent returned an error, showing placeholder", "action", action, "error", res.Error)
		p.Data = fb
		p.Fallback = true
		p.Reason = ReasonServerError
	}
	if p.Fallback {
		w.logger.Debug("placeholder content", "action", action, "reason", p.Reason)
	}
	return p, nil
}

// Watch calls handler for every data_response addressed to this component,
// whichever widget issued the request. Returns the unsubscribe function.
func (w *Widget) Watch(handler func(resp envelope.DataResponse, correlationID string)) func() {
	return w.events.Subscribe(func(ev bus.Event) {
		if ev.Type != bus.EventMessage || ev.Envelope == nil {
			return
		}
		resp, ok := ev.Envelope.DataResponse()
		if !ok || resp.Component != w.component {
			return
		}
		handler(*resp, ev.Envelope.CorrelationID)
	})
}
