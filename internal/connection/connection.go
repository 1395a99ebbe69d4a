package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/dedup"
	"github.com/rickgao/agentlink/internal/envelope"
	"github.com/rickgao/agentlink/internal/metrics"
)

// Connection manages the websocket to one agent.
// A Connection is bound to a single URL for its whole life; switching agents
// means closing it and creating another.
type Connection struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	factory TransportFactory
	ledger  *dedup.Ledger

	// Event delivery: producers enqueue, one goroutine publishes.
	bus          *bus.Bus
	queue        *bus.GrowableBuffer[bus.Event]
	dispatchDone chan struct{}

	// Collapses concurrent Connect calls into one dial.
	connectGroup singleflight.Group

	mu             sync.Mutex
	state          State
	transport      Transport
	gen            uint64 // bumped whenever the current transport is abandoned
	retry          RetryState
	reconnectTimer *time.Timer
	hb             *heartbeat
	teardown       []func()
	closed         bool
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithTransportFactory replaces the websocket transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Connection) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithLedger sets the dedup ledger, e.g. one already seeded from history.
func WithLedger(l *dedup.Ledger) Option {
	return func(c *Connection) {
		if l != nil {
			c.ledger = l
		}
	}
}

// New creates a disconnected Connection. Call Connect to dial.
func New(cfg Config, opts ...Option) *Connection {
	c := &Connection{
		cfg:          cfg,
		logger:       slog.Default(),
		factory:      NewWSTransport,
		ledger:       dedup.NewLedger(),
		bus:          bus.New(),
		dispatchDone: make(chan struct{}),
		retry:        cfg.retryState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "connection")
	c.queue = bus.NewGrowableBuffer[bus.Event](cfg.BufferSize)

	go c.dispatch()
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ledger returns the dedup ledger.
func (c *Connection) Ledger() *dedup.Ledger {
	return c.ledger
}

// Subscribe registers h for every event. Handlers run one at a time on the
// dispatcher goroutine, in event order.
func (c *Connection) Subscribe(h bus.Handler) func() {
	return c.bus.Subscribe(h)
}

// OnTeardown registers f to run synchronously at the end of Disconnect.
func (c *Connection) OnTeardown(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown = append(c.teardown, f)
}

// Done is closed once Close has been called and every queued event delivered.
func (c *Connection) Done() <-chan struct{} {
	return c.dispatchDone
}

// Connect dials the endpoint. It is a no-op while connecting or connected.
// A pending reconnect is cancelled and replaced by an immediate dial. From
// Disconnected the retry budget starts over.
func (c *Connection) Connect(ctx context.Context) error {
	_, err, _ := c.connectGroup.Do("connect", func() (any, error) {
		return nil, c.connect(ctx)
	})
	return err
}

func (c *Connection) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch c.state {
	case StateConnected, StateConnecting:
		c.mu.Unlock()
		return nil
	case StateReconnecting:
		c.stopReconnectTimerLocked()
	case StateDisconnected:
		c.retry.Reset()
	}

	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

// reconnect runs when the backoff timer for gen fires. A Connect racing with
// it observes StateConnecting and returns without dialing twice.
func (c *Connection) reconnect(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.gen++
	next := c.gen
	attempt := c.retry.Attempt
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.logger.Info("attempting reconnection", "url", c.cfg.URL, "attempt", attempt)

	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout())
	defer cancel()
	c.dial(ctx, next)
}

func (c *Connection) dialTimeout() time.Duration {
	if c.cfg.HandshakeTimeout > 0 {
		return c.cfg.HandshakeTimeout
	}
	return DefaultConfig().HandshakeTimeout
}

func (c *Connection) dial(ctx context.Context, gen uint64) error {
	t := c.factory(c.cfg.transportConfig(), c.logger)
	err := t.Connect(ctx)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		// Disconnected while dialing.
		c.mu.Unlock()
		t.Close()
		return ErrNotConnected
	}

	if err != nil {
		c.mu.Unlock()
		t.Close()
		c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
		c.transportLost(gen, err)
		return fmt.Errorf("connect: %w", err)
	}

	c.transport = t
	c.retry.Reset()
	c.setStateLocked(StateConnected)
	c.hb = startHeartbeat(c.cfg.HeartbeatInterval,
		func() error { return c.ping(t) },
		func(err error) {
			c.logger.Warn("heartbeat failed, forcing reconnect", "error", err)
			c.transportLost(gen, fmt.Errorf("%w: %w", ErrHeartbeat, err))
		},
	)
	c.emitLocked(bus.Event{Type: bus.EventConnect})
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL)

	go c.pump(t, gen)
	return nil
}

// transportLost handles an unclean close of the transport for gen: either
// schedule the next reconnect or give up with connection_failed.
func (c *Connection) transportLost(gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	c.gen++
	t := c.transport
	c.transport = nil
	c.hb.Stop()
	c.hb = nil
	wasConnected := c.state == StateConnected

	if cause != nil {
		c.emitLocked(bus.Event{Type: bus.EventError, Err: cause})
	}

	delay, ok := c.retry.Next()
	if ok {
		c.setStateLocked(StateReconnecting)
		next := c.gen
		c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnect(next) })
		c.metrics.ReconnectAttempt()
	} else {
		c.setStateLocked(StateDisconnected)
	}

	if wasConnected {
		c.emitLocked(bus.Event{Type: bus.EventDisconnect, Err: cause})
	}
	attempt := c.retry.Attempt
	if ok {
		c.emitLocked(bus.Event{Type: bus.EventReconnecting, Attempt: attempt, Delay: delay})
	} else {
		c.emitLocked(bus.Event{Type: bus.EventConnectionFailed, Err: cause, Attempt: attempt})
	}
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}

	if ok {
		c.logger.Warn("reconnect scheduled", "url", c.cfg.URL, "attempt", attempt, "delay", delay)
	} else {
		c.logger.Error("connection failed, giving up", "url", c.cfg.URL, "attempts", attempt, "error", cause)
	}
}

// Disconnect closes the connection on purpose. No reconnect follows, pending
// timers are cancelled and teardown hooks run before it returns.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopReconnectTimerLocked()
	c.hb.Stop()
	c.hb = nil
	t := c.transport
	c.transport = nil
	prev := c.state
	c.setStateLocked(StateDisconnected)
	c.retry.Reset()
	if prev != StateDisconnected {
		c.emitLocked(bus.Event{Type: bus.EventDisconnect, Clean: true})
	}
	hooks := slices.Clone(c.teardown)
	c.mu.Unlock()

	if t != nil {
		t.Close()
	}
	for _, h := range hooks {
		h()
	}

	if prev != StateDisconnected {
		dd := c.ledger.Stats()
		c.logger.Info("disconnected", "url", c.cfg.URL, "from", prev.String(),
			"dedup_entries", dd.Entries, "dedup_suppressed", dd.Suppressed)
	}
}

// Close disconnects and stops event delivery. The Connection cannot be
// reused afterwards.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.queue.Close()
	return nil
}

// Send encodes and writes env. While disconnected it dials on demand and
// retries up to SendRetries times. A send that still fails emits send_failed
// and returns an error wrapping ErrSendFailed.
func (c *Connection) Send(ctx context.Context, env envelope.Envelope) error {
	data, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Kind, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.SendRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying send", "kind", env.Kind, "attempt", attempt, "error", lastErr)
			if err := sleepCtx(ctx, c.cfg.SendRetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		lastErr = c.trySend(ctx, data)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrClosed) {
			break
		}
	}

	c.metrics.SendFailed()
	c.logger.Error("send failed", "kind", env.Kind, "error", lastErr)
	c.emit(bus.Event{Type: bus.EventSendFailed, Envelope: &env, Err: lastErr})
	return fmt.Errorf("%w: %w", ErrSendFailed, lastErr)
}

func (c *Connection) trySend(ctx context.Context, data []byte) error {
	t, gen, err := c.activeTransport()
	if err != nil {
		return err
	}
	if t == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		if t, gen, err = c.activeTransport(); err != nil {
			return err
		}
		if t == nil {
			return ErrNotConnected
		}
	}
	if err := t.Send(data); err != nil {
		// The socket is dead even though no read error has surfaced yet.
		c.logger.Warn("write failed, forcing reconnect", "url", c.cfg.URL, "error", err)
		c.transportLost(gen, fmt.Errorf("write: %w", err))
		return err
	}
	return nil
}

// SendChat sends a user chat message. It assigns a client message id if the
// message has none, records it in the ledger so the server echo is dropped,
// and publishes a local optimistic echo before sending. Returns the id.
func (c *Connection) SendChat(ctx context.Context, msg envelope.ChatMessage) (string, error) {
	if msg.ClientMessageID == "" {
		msg.ClientMessageID = uuid.NewString()
	}
	if msg.Role == "" {
		msg.Role = "user"
	}

	c.ledger.ShouldProcess(msg.ClientMessageID)

	env := envelope.NewChat(msg)
	c.emit(bus.Event{Type: bus.EventMessage, Envelope: &env, Local: true})

	return msg.ClientMessageID, c.Send(ctx, env)
}

func (c *Connection) activeTransport() (Transport, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, 0, ErrClosed
	}
	if c.state != StateConnected {
		return nil, 0, nil
	}
	return c.transport, c.gen, nil
}

func (c *Connection) ping(t Transport) error {
	data, err := envelope.Encode(envelope.NewPing())
	if err != nil {
		return err
	}
	c.logger.Debug("sending ping")
	return t.Send(data)
}

// pump forwards frames from t until it fails or is closed.
func (c *Connection) pump(t Transport, gen uint64) {
	for {
		select {
		case <-t.Done():
			return

		case f := <-t.Messages():
			c.handleFrame(t, gen, f)

		case err := <-t.Errors():
			// Deliver frames that arrived before the failure.
			for drained := false; !drained; {
				select {
				case f := <-t.Messages():
					c.handleFrame(t, gen, f)
				default:
					drained = true
				}
			}
			c.logger.Warn("connection lost", "url", c.cfg.URL, "error", err)
			c.transportLost(gen, err)
			return
		}
	}
}

func (c *Connection) handleFrame(t Transport, gen uint64, f Frame) {
	if !c.isCurrent(gen) {
		return
	}

	env, err := envelope.Decode(f.Data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, envelope.ErrUnknownType) {
			reason = "unknown_type"
		}
		c.metrics.EnvelopeDropped(reason)
		c.logger.Warn("dropping inbound frame", "reason", reason, "error", err)
		return
	}
	c.metrics.EnvelopeReceived(string(env.Kind))

	if !c.ledger.ShouldProcess(env.ClientMessageID) {
		c.metrics.EnvelopeDropped("duplicate")
		c.logger.Debug("duplicate message suppressed", "client_message_id", env.ClientMessageID)
		if env.Kind == envelope.KindChatMessage {
			c.mu.Lock()
			if gen == c.gen {
				c.emitLocked(bus.Event{Type: bus.EventMessage, Envelope: &env, Echo: true})
			}
			c.mu.Unlock()
		}
		return
	}

	if env.Kind == envelope.KindPing {
		if pong, err := envelope.Encode(envelope.Envelope{Kind: envelope.KindPong}); err == nil {
			if err := t.Send(pong); err != nil {
				c.logger.Debug("failed to answer ping", "error", err)
			}
		}
	}

	c.mu.Lock()
	if gen == c.gen {
		c.emitLocked(bus.Event{Type: bus.EventMessage, Envelope: &env})
	}
	c.mu.Unlock()
}

func (c *Connection) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// dispatch publishes queued events until the queue is closed and drained.
func (c *Connection) dispatch() {
	defer close(c.dispatchDone)

	for {
		ev, ok := c.queue.Receive()
		if !ok {
			return
		}
		c.bus.Publish(ev)
	}
}

func (c *Connection) emit(ev bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked(ev)
}

// emitLocked stamps and enqueues ev. Must be called with mu held so events
// are queued in the order the state changed.
func (c *Connection) emitLocked(ev bus.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.State = c.state.String()
	if !c.queue.Send(ev) {
		c.logger.Debug("event dropped after close", "type", ev.Type)
		return
	}
	stats := c.queue.Stats()
	c.metrics.SetEventQueue(stats.Count, stats.HighWater)
}

func (c *Connection) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state change", "from", c.state.String(), "to", s.String())
	c.state = s
	c.metrics.SetConnectionState(int(s))
}

func (c *Connection) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
