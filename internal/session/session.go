package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/agentlink/internal/chat"
	"github.com/rickgao/agentlink/internal/connection"
	"github.com/rickgao/agentlink/internal/correlator"
	"github.com/rickgao/agentlink/internal/envelope"
	"github.com/rickgao/agentlink/internal/metrics"
	"github.com/rickgao/agentlink/internal/widget"
)

// ErrNoAgent is returned by Select for an empty agent id.
var ErrNoAgent = errors.New("agent id required")

// HistoryLoader fetches earlier chat messages for an agent.
type HistoryLoader interface {
	ListMessages(ctx context.Context, agentID string, limit int) ([]envelope.ChatMessage, error)
}

// Session is everything bound to one agent.
type Session struct {
	AgentID  string
	Conn     *connection.Connection
	Requests *correlator.Correlator
	Chat     *chat.Transcript

	closeOnce sync.Once
}

// Widget creates a data widget sharing this session's connection.
func (s *Session) Widget(component string, opts ...widget.Option) *widget.Widget {
	return widget.New(component, s.Requests, s.Conn, opts...)
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Chat.Close()
		s.Requests.Close()
		err = s.Conn.Close()
	})
	return err
}

// Config configures a Manager.
type Config struct {
	// Connection is the template for every agent connection. URL is ignored.
	Connection connection.Config

	// URLFor returns the websocket URL for an agent.
	URLFor func(agentID string) (string, error)

	RequestTimeout time.Duration
	HistoryLimit   int
}

// Manager owns the session for the currently selected agent.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	history   HistoryLoader
	transport connection.TransportFactory

	mu      sync.Mutex
	current *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink shared by every session.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithHistory loads earlier messages into each new transcript.
func WithHistory(h HistoryLoader) Option {
	return func(m *Manager) { m.history = h }
}

// WithTransportFactory replaces the websocket transport for every session.
func WithTransportFactory(f connection.TransportFactory) Option {
	return func(m *Manager) { m.transport = f }
}

// NewManager creates a Manager with no session selected.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Select returns the session for agentID, building and connecting it if the
// agent differs from the current one. A dial failure is not an error: the
// session is returned and keeps reconnecting in the background.
func (m *Manager) Select(ctx context.Context, agentID string) (*Session, error) {
	if agentID == "" {
		return nil, ErrNoAgent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.AgentID == agentID {
		return m.current, nil
	}

	if m.current != nil {
		m.logger.Info("switching agent", "from", m.current.AgentID, "to", agentID)
		m.current.Close()
		m.current = nil
	}

	s, err := m.build(agentID)
	if err != nil {
		return nil, err
	}
	m.current = s

	if m.history != nil {
		msgs, err := m.history.ListMessages(ctx, agentID, m.cfg.HistoryLimit)
		if err != nil {
			m.logger.Warn("failed to load history", "agent", agentID, "error", err)
		} else {
			s.Chat.Load(msgs)
		}
	}

	if err := s.Conn.Connect(ctx); err != nil {
		m.logger.Warn("initial connect failed", "agent", agentID, "error", err)
	}
	return s, nil
}

// Current returns the selected session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the current session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

func (m *Manager) build(agentID string) (*Session, error) {
	logger := m.logger.With("agent", agentID)

	cfg := m.cfg.Connection
	if m.cfg.URLFor != nil {
		url, err := m.cfg.URLFor(agentID)
		if err != nil {
			return nil, fmt.Errorf("endpoint for %s: %w", agentID, err)
		}
		cfg.URL = url
	}

	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithMetrics(m.metrics),
	}
	if m.transport != nil {
		opts = append(opts, connection.WithTransportFactory(m.transport))
	}

	conn := connection.New(cfg, opts...)
	requests := correlator.New(conn, correlator.Config{
		Timeout: m.cfg.RequestTimeout,
		Metrics: m.metrics,
	}, logger)

	return &Session{
		AgentID:  agentID,
		Conn:     conn,
		Requests: requests,
		Chat:     chat.New(conn, agentID, logger),
	}, nil
}
