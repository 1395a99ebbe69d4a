package correlator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/envelope"
	"github.com/rickgao/agentlink/internal/metrics"
)

// DefaultTimeout applies when neither Config nor Options set one.
const DefaultTimeout = 10 * time.Second

// Config configures a Correlator.
type Config struct {
	Timeout time.Duration
	Metrics *metrics.Metrics

	// NewID generates correlation ids. Defaults to random UUIDs.
	NewID func() string
}

// Correlator tracks in-flight data requests on one connection.
type Correlator struct {
	conn        Conn
	cfg         Config
	logger      *slog.Logger
	unsubscribe func()

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool
}

type pendingRequest struct {
	id        string
	component string
	action    string
	createdAt time.Time
	timer     *time.Timer
	future    *Future
	fallback  json.RawMessage
}

// New creates a Correlator bound to conn. Pending requests are cancelled
// whenever conn tears down.
func New(conn Conn, cfg Config, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	c := &Correlator{
		conn:    conn,
		cfg:     cfg,
		logger:  logger.With("component", "correlator"),
		pending: make(map[string]*pendingRequest),
	}
	c.unsubscribe = conn.Subscribe(c.handleEvent)
	conn.OnTeardown(c.CancelAll)
	return c
}

// Request sends a data_request and returns a Future for its outcome.
// The Future always resolves: with the response, or with opts.Fallback on
// timeout, send failure or teardown.
func (c *Correlator) Request(ctx context.Context, req envelope.DataRequest, opts Options) *Future {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	id := c.cfg.NewID()
	p := &pendingRequest{
		id:        id,
		component: req.Component,
		action:    req.Action,
		createdAt: time.Now(),
		future:    newFuture(id),
		fallback:  opts.Fallback,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.finish(p, p.fallbackResult(ReasonCancelled, ""))
		return p.future
	}
	c.pending[id] = p
	p.timer = time.AfterFunc(timeout, func() { c.expire(id) })
	c.mu.Unlock()

	c.logger.Debug("data request", "request_id", id, "component", req.Component, "action", req.Action)

	if err := c.conn.Send(ctx, envelope.NewDataRequest(req, id)); err != nil {
		if p := c.take(id); p != nil {
			c.logger.Warn("data request not sent, using fallback", "request_id", id, "error", err)
			c.finish(p, p.fallbackResult(ReasonSendFailed, err.Error()))
		}
	}
	return p.future
}

// Pending returns the number of unresolved requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CancelAll resolves every pending request with its fallback and stops
// their timers.
func (c *Correlator) CancelAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		c.finish(p, p.fallbackResult(ReasonCancelled, ""))
	}
	if len(pending) > 0 {
		c.logger.Info("cancelled pending requests", "count", len(pending))
	}
}

// Close detaches from the connection and cancels everything pending.
// Later requests resolve immediately as cancelled.
func (c *Correlator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	c.CancelAll()
}

func (c *Correlator) handleEvent(ev bus.Event) {
	if ev.Type != bus.EventMessage || ev.Envelope == nil || ev.Envelope.Kind != envelope.KindDataResponse {
		return
	}
	resp, ok := ev.Envelope.DataResponse()
	if !ok {
		return
	}

	id := ev.Envelope.CorrelationID
	p := c.take(id)
	if p == nil {
		c.logger.Debug("ignoring response for unknown or resolved request", "request_id", id)
		return
	}

	c.finish(p, Result{
		Success: resp.Success,
		Data:    resp.Data,
		Error:   resp.Error,
	})
}

func (c *Correlator) expire(id string) {
	p := c.take(id)
	if p == nil {
		return
	}
	c.logger.Warn("data request timed out, using fallback", "request_id", id, "component", p.component)
	c.finish(p, p.fallbackResult(ReasonTimeout, ""))
}

// take removes and returns the pending request for id, stopping its timer.
func (c *Correlator) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}

func (c *Correlator) finish(p *pendingRequest, r Result) {
	r.CorrelationID = p.id
	r.Component = p.component
	r.Action = p.action
	r.Latency = time.Since(p.createdAt)

	if p.future.resolve(r) {
		c.cfg.Metrics.RequestResolved(r.outcome(), r.Latency)
	}
}

func (p *pendingRequest) fallbackResult(reason Reason, errMsg string) Result {
	return Result{
		Data:     p.fallback,
		Error:    errMsg,
		Fallback: true,
		Reason:   reason,
	}
}
