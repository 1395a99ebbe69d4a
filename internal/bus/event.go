package bus

import (
	"time"

	"github.com/rickgao/agentlink/internal/envelope"
)

// EventType identifies what happened on a connection.
type EventType string

const (
	EventConnect          EventType = "connect"
	EventDisconnect       EventType = "disconnect"
	EventReconnecting     EventType = "reconnecting"
	EventConnectionFailed EventType = "connection_failed"
	EventError            EventType = "error"
	EventSendFailed       EventType = "send_failed"
	EventMessage          EventType = "message"
)

// Event is one notification delivered to subscribers.
// Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	// State is the connection state name after the transition.
	State string

	// Envelope is set for EventMessage and EventSendFailed.
	Envelope *envelope.Envelope

	// Err is set for EventError, EventSendFailed and EventConnectionFailed.
	Err error

	// Reconnect scheduling (EventReconnecting).
	Attempt int
	Delay   time.Duration

	// Clean is true when a disconnect was requested by the caller.
	Clean bool

	// Local marks an optimistic echo of an outbound chat message.
	Local bool

	// Echo marks a server copy of a chat message whose client id was
	// already seen. Subscribers may merge it but must not add it again.
	Echo bool

	At time.Time
}

// Handler receives events. Handlers run on the publisher's goroutine.
type Handler func(Event)
