package chat

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/dedup"
	"github.com/rickgao/agentlink/internal/envelope"
)

// Notices shown for connection problems.
const (
	NoticeReconnecting     = "Connection lost. Reconnecting…"
	NoticeConnectionFailed = "Connection failed"
	NoticeSendFailed       = "Message could not be sent"
)

// Conn is the part of a connection the transcript needs.
type Conn interface {
	Subscribe(h bus.Handler) func()
	SendChat(ctx context.Context, msg envelope.ChatMessage) (string, error)
	Ledger() *dedup.Ledger
}

// Entry is one chat turn.
type Entry struct {
	ID              string
	ClientMessageID string
	Role            string
	Content         string
	AgentID         string
	ConversationID  string
	CreatedAt       string
	Logs            []string

	// Pending is true for a local echo whose send has not completed.
	Pending bool
	// Failed is true when the send was given up on.
	Failed bool
}

// Status is the connection summary shown next to the transcript.
type Status struct {
	State    string
	Typing   bool
	TypingBy string
	Notice   string
	Attempt  int
}

// Transcript is the chat view model for one agent.
type Transcript struct {
	conn        Conn
	agentID     string
	logger      *slog.Logger
	unsubscribe func()

	mu       sync.Mutex
	entries  []Entry
	status   Status
	orphans  map[string][]string // log lines for messages not seen yet
	outcomes map[string]bool     // send results that arrived before their echo
	onChange []func()
}

// New creates a transcript and subscribes it to conn.
func New(conn Conn, agentID string, logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transcript{
		conn:     conn,
		agentID:  agentID,
		logger:   logger.With("component", "chat", "agent", agentID),
		status:   Status{State: "disconnected"},
		orphans:  make(map[string][]string),
		outcomes: make(map[string]bool),
	}
	t.unsubscribe = conn.Subscribe(t.handle)
	return t
}

// Close stops listening to the connection.
func (t *Transcript) Close() {
	t.unsubscribe()
}

// OnChange registers f to run after every transcript or status change.
func (t *Transcript) OnChange(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, f)
}

// Load replaces the transcript with history and marks its client ids so
// replayed echoes are not appended again.
func (t *Transcript) Load(history []envelope.ChatMessage) {
	var ids []string
	entries := make([]Entry, 0, len(history))
	for _, m := range history {
		entries = append(entries, entryFrom(&m))
		if m.ClientMessageID != "" {
			ids = append(ids, m.ClientMessageID)
		}
	}
	t.conn.Ledger().Mark(ids...)

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	t.changed()
}

// Send posts a user message. The local echo appears through the event stream.
func (t *Transcript) Send(ctx context.Context, text string) (string, error) {
	id, err := t.conn.SendChat(ctx, envelope.ChatMessage{
		Role:    "user",
		Content: text,
		AgentID: t.agentID,
	})
	t.settle(id, err == nil)
	return id, err
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		e.Logs = slices.Clone(e.Logs)
		out[i] = e
	}
	return out
}

// Status returns the current connection summary.
func (t *Transcript) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transcript) handle(ev bus.Event) {
	t.mu.Lock()
	changed := t.apply(ev)
	t.mu.Unlock()

	if changed {
		t.changed()
	}
}

// apply folds ev into the transcript. Must be called with mu held.
func (t *Transcript) apply(ev bus.Event) bool {
	if ev.State != "" {
		t.status.State = ev.State
	}

	switch ev.Type {
	case bus.EventConnect:
		t.status.Notice = ""
		t.status.Attempt = 0
	case bus.EventReconnecting:
		t.status.Notice = NoticeReconnecting
		t.status.Attempt = ev.Attempt
	case bus.EventConnectionFailed:
		t.status.Notice = NoticeConnectionFailed
		t.status.Typing = false
	case bus.EventDisconnect:
		if ev.Clean {
			t.status.Notice = ""
		}
		t.status.Typing = false
	case bus.EventSendFailed:
		if ev.Envelope != nil && ev.Envelope.Kind == envelope.KindChatMessage {
			t.status.Notice = NoticeSendFailed
			t.settleLocked(ev.Envelope.ClientMessageID, false)
		}
	case bus.EventMessage:
		if ev.Envelope == nil {
			return false
		}
		if ev.Echo {
			return t.mergeEcho(ev.Envelope)
		}
		return t.applyEnvelope(ev.Envelope, ev.Local)
	default:
		return false
	}
	return true
}

func (t *Transcript) applyEnvelope(env *envelope.Envelope, local bool) bool {
	switch env.Kind {
	case envelope.KindChatMessage:
		msg, _ := env.Chat()
		t.appendMessage(msg, local)
		return true

	case envelope.KindTyping:
		p, _ := env.Typing()
		t.status.Typing = true
		t.status.TypingBy = p.AgentID
		return true

	case envelope.KindLogUpdate:
		p, _ := env.LogUpdate()
		if i := t.indexByID(p.MessageID); i >= 0 {
			t.entries[i].Logs = append(t.entries[i].Logs, p.Log)
		} else {
			t.orphans[p.MessageID] = append(t.orphans[p.MessageID], p.Log)
		}
		return true

	case envelope.KindError:
		p, _ := env.ServerError()
		t.status.Notice = p.Message
		t.status.Typing = false
		return true
	}
	return false
}

func (t *Transcript) appendMessage(msg *envelope.ChatMessage, local bool) {
	if msg.Role == "assistant" {
		t.status.Typing = false
		t.status.TypingBy = ""
	}

	// A message re-sent under the same server id replaces the earlier copy.
	if i := t.indexByID(msg.ID); i >= 0 {
		logs := t.entries[i].Logs
		t.entries[i] = entryFrom(msg)
		t.entries[i].Logs = append(logs, msg.Logs...)
		return
	}

	e := entryFrom(msg)
	if logs, ok := t.orphans[msg.ID]; ok && msg.ID != "" {
		e.Logs = append(e.Logs, logs...)
		delete(t.orphans, msg.ID)
	}
	if local {
		e.Pending = true
		if ok, seen := t.outcomes[msg.ClientMessageID]; seen {
			delete(t.outcomes, msg.ClientMessageID)
			e.Pending = false
			e.Failed = !ok
		}
	}
	t.entries = append(t.entries, e)
}

// mergeEcho copies the server-assigned fields of an echoed message onto the
// entry with the same client id. Nothing is appended.
func (t *Transcript) mergeEcho(env *envelope.Envelope) bool {
	msg, ok := env.Chat()
	if !ok || msg.ClientMessageID == "" {
		return false
	}
	i := t.indexByClientID(msg.ClientMessageID)
	if i < 0 {
		return false
	}

	e := &t.entries[i]
	if e.ID == "" && msg.ID != "" {
		e.ID = msg.ID
		if logs, ok := t.orphans[msg.ID]; ok {
			e.Logs = append(e.Logs, logs...)
			delete(t.orphans, msg.ID)
		}
	}
	if msg.CreatedAt != "" {
		e.CreatedAt = msg.CreatedAt
	}
	if msg.ConversationID != "" {
		e.ConversationID = msg.ConversationID
	}
	return true
}

func (t *Transcript) settle(clientMessageID string, ok bool) {
	if clientMessageID == "" {
		return
	}
	t.mu.Lock()
	t.settleLocked(clientMessageID, ok)
	t.mu.Unlock()
	t.changed()
}

// settleLocked records a send outcome. The local echo may not have been
// delivered yet, in which case the outcome is applied when it arrives.
func (t *Transcript) settleLocked(clientMessageID string, ok bool) {
	if i := t.indexByClientID(clientMessageID); i >= 0 {
		if t.entries[i].Pending {
			t.entries[i].Pending = false
			t.entries[i].Failed = !ok
		}
		return
	}
	t.outcomes[clientMessageID] = ok
}

func (t *Transcript) indexByClientID(id string) int {
	if id == "" {
		return -1
	}
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].ClientMessageID == id {
			return i
		}
	}
	return -1
}

func (t *Transcript) indexByID(id string) int {
	if id == "" {
		return -1
	}
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Transcript) changed() {
	t.mu.Lock()
	hooks := slices.Clone(t.onChange)
	t.mu.Unlock()
	for _, f := range hooks {
		f()
	}
}

func entryFrom(m *envelope.ChatMessage) Entry {
	return Entry{
		ID:              m.ID,
		ClientMessageID: m.ClientMessageID,
		Role:            m.Role,
		Content:         m.Content,
		AgentID:         m.AgentID,
		ConversationID:  m.ConversationID,
		CreatedAt:       m.CreatedAt,
		Logs:            slices.Clone(m.Logs),
	}
}
