package envelope

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrMalformed          = errors.New("malformed envelope")
	ErrUnknownType        = errors.New("unknown envelope type")
	ErrMissingCorrelation = errors.New("data envelope requires a correlation id")
	ErrPayloadMismatch    = errors.New("payload does not match envelope kind")
)

// Kind is the envelope discriminator. Values are the wire "type" strings.
type Kind string

const (
	KindChatMessage  Kind = "message"
	KindTyping       Kind = "typing"
	KindLogUpdate    Kind = "log_update"
	KindPing         Kind = "ping"
	KindPong         Kind = "pong"
	KindDataRequest  Kind = "data_request"
	KindDataResponse Kind = "data_response"
	KindError        Kind = "error"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindChatMessage, KindTyping, KindLogUpdate, KindPing, KindPong,
		KindDataRequest, KindDataResponse, KindError:
		return true
	}
	return false
}

// Payload is the kind-specific record carried by an Envelope.
// Ping and pong envelopes carry no payload.
type Payload interface {
	kind() Kind
}

// Envelope is the decoded form of one wire frame.
type Envelope struct {
	Kind    Kind
	Payload Payload

	// ClientMessageID is the client-assigned id of a chat message, used for dedup.
	ClientMessageID string

	// CorrelationID links a data_request to its data_response (wire: requestId).
	CorrelationID string

	// Raw holds the original bytes for decoded envelopes. Not serialized.
	Raw json.RawMessage
}

// ChatMessage is one chat turn.
type ChatMessage struct {
	ID              string   `json:"id,omitempty"`
	Role            string   `json:"role,omitempty"` // "user", "assistant", "system"
	Content         string   `json:"content"`
	AgentID         string   `json:"agentId,omitempty"`
	ConversationID  string   `json:"conversationId,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	Logs            []string `json:"logs,omitempty"`
	ClientMessageID string   `json:"clientMessageId,omitempty"`
}

// Typing signals that an agent is composing a reply.
type Typing struct {
	AgentID string `json:"agentId"`
}

// LogUpdate is a log line attached to an in-flight assistant message.
type LogUpdate struct {
	MessageID string `json:"messageId"`
	Log       string `json:"log"`
}

// DataRequest asks the agent to compute data for a UI widget.
type DataRequest struct {
	Component string          `json:"component"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DataResponse answers a DataRequest.
type DataResponse struct {
	Component string          `json:"component"`
	Action    string          `json:"action"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ServerError is a server-reported error.
type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (*ChatMessage) kind() Kind  { return KindChatMessage }
func (*Typing) kind() Kind       { return KindTyping }
func (*LogUpdate) kind() Kind    { return KindLogUpdate }
func (*DataRequest) kind() Kind  { return KindDataRequest }
func (*DataResponse) kind() Kind { return KindDataResponse }
func (*ServerError) kind() Kind  { return KindError }

// Chat returns the chat payload if e is a chat message.
func (e Envelope) Chat() (*ChatMessage, bool) {
	p, ok := e.Payload.(*ChatMessage)
	return p, ok
}

// Typing returns the typing payload if e is a typing indicator.
func (e Envelope) Typing() (*Typing, bool) {
	p, ok := e.Payload.(*Typing)
	return p, ok
}

// LogUpdate returns the log payload if e is a log_update.
func (e Envelope) LogUpdate() (*LogUpdate, bool) {
	p, ok := e.Payload.(*LogUpdate)
	return p, ok
}

// DataRequest returns the request payload if e is a data_request.
func (e Envelope) DataRequest() (*DataRequest, bool) {
	p, ok := e.Payload.(*DataRequest)
	return p, ok
}

// DataResponse returns the response payload if e is a data_response.
func (e Envelope) DataResponse() (*DataResponse, bool) {
	p, ok := e.Payload.(*DataResponse)
	return p, ok
}

// ServerError returns the error payload if e is an error envelope.
func (e Envelope) ServerError() (*ServerError, bool) {
	p, ok := e.Payload.(*ServerError)
	return p, ok
}

// Wire types for JSON parsing

// typeProbe is used for fast type extraction.
type typeProbe struct {
	Type string `json:"type"`
}

type chatWire struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message"`
}

type typingWire struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
}

type logUpdateWire struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Log       string `json:"log"`
}

type pingWire struct {
	Type string `json:"type"`
}

type dataRequestWire struct {
	Type      string          `json:"type"`
	Component string          `json:"component"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId"`
}

type dataResponseWire struct {
	Type      string          `json:"type"`
	Component string          `json:"component"`
	Action    string          `json:"action"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"requestId"`
}

// errorWire accepts either {"error": "..."} or {"message": "..."}.
type errorWire struct {
	Type    string          `json:"type"`
	Error   string          `json:"error,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}
