package connection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/agentlink/internal/bus"
)

// fakeTransport is an in-memory Transport driven by the test.
type fakeTransport struct {
	messages chan Frame
	errors   chan error
	done     chan struct{}

	mu        sync.Mutex
	dialErr   error
	sendErr   error
	sent      []string
	connected bool
	closeOnce sync.Once
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return f.dialErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.connected = false
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.connected {
		return ErrNotConnected
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeTransport) Messages() <-chan Frame { return f.messages }
func (f *fakeTransport) Errors() <-chan error   { return f.errors }
func (f *fakeTransport) Done() <-chan struct{}  { return f.done }

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// deliver simulates an inbound frame.
func (f *fakeTransport) deliver(data string) {
	f.messages <- Frame{Data: []byte(data)}
}

// fail simulates the socket dropping.
func (f *fakeTransport) fail(err error) {
	f.errors <- err
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// fakeNetwork hands out fakeTransports and records every dial.
type fakeNetwork struct {
	mu         sync.Mutex
	dialErr    error
	transports []*fakeTransport
}

func (n *fakeNetwork) factory(cfg TransportConfig, logger *slog.Logger) Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &fakeTransport{
		messages: make(chan Frame, 100),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
		dialErr:  n.dialErr,
	}
	n.transports = append(n.transports, t)
	return t
}

func (n *fakeNetwork) setDialErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialErr = err
}

func (n *fakeNetwork) dials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transports)
}

func (n *fakeNetwork) transport(i int) *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[i]
}

func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[len(n.transports)-1]
}

// recorder collects events delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(ev bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Event(nil), r.events...)
}

func (r *recorder) types() []bus.EventType {
	var out []bus.EventType
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) count(t bus.EventType) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) ofType(t bus.EventType) []bus.Event {
	var out []bus.Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
