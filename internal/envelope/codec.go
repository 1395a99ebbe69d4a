package envelope

import (
	"encoding/json"
	"fmt"
)

// Decode parses one wire frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind := Kind(probe.Type)
	if !kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}

	env := Envelope{Kind: kind, Raw: append(json.RawMessage(nil), data...)}

	switch kind {
	case KindChatMessage:
		var wire chatWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: message: %v", ErrMalformed, err)
		}
		if wire.Message == nil {
			return Envelope{}, fmt.Errorf("%w: message: missing body", ErrMalformed)
		}
		env.Payload = wire.Message
		env.ClientMessageID = wire.Message.ClientMessageID

	case KindTyping:
		var wire typingWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: typing: %v", ErrMalformed, err)
		}
		env.Payload = &Typing{AgentID: wire.AgentID}

	case KindLogUpdate:
		var wire logUpdateWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: log_update: %v", ErrMalformed, err)
		}
		env.Payload = &LogUpdate{MessageID: wire.MessageID, Log: wire.Log}

	case KindPing, KindPong:
		// No payload.

	case KindDataRequest:
		var wire dataRequestWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: data_request: %v", ErrMalformed, err)
		}
		env.Payload = &DataRequest{
			Component: wire.Component,
			Action:    wire.Action,
			Data:      wire.Data,
		}
		env.CorrelationID = wire.RequestID

	case KindDataResponse:
		var wire dataResponseWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: data_response: %v", ErrMalformed, err)
		}
		env.Payload = &DataResponse{
			Component: wire.Component,
			Action:    wire.Action,
			Success:   wire.Success,
			Data:      wire.Data,
			Error:     wire.Error,
		}
		env.CorrelationID = wire.RequestID

	case KindError:
		var wire errorWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return Envelope{}, fmt.Errorf("%w: error: %v", ErrMalformed, err)
		}
		msg := wire.Error
		if msg == "" && len(wire.Message) > 0 {
			var s string
			if json.Unmarshal(wire.Message, &s) == nil {
				msg = s
			} else {
				msg = string(wire.Message)
			}
		}
		env.Payload = &ServerError{Message: msg, Code: wire.Code}
	}

	return env, nil
}

// Encode serializes an Envelope to its wire form.
func Encode(env Envelope) ([]byte, error) {
	if !env.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Kind)
	}
	if env.Payload != nil && env.Payload.kind() != env.Kind {
		return nil, fmt.Errorf("%w: kind %s, payload %s", ErrPayloadMismatch, env.Kind, env.Payload.kind())
	}

	var wire any

	switch env.Kind {
	case KindChatMessage:
		msg, _ := env.Payload.(*ChatMessage)
		if msg == nil {
			return nil, fmt.Errorf("%w: message without body", ErrPayloadMismatch)
		}
		out := *msg
		if env.ClientMessageID != "" {
			out.ClientMessageID = env.ClientMessageID
		}
		wire = chatWire{Type: string(env.Kind), Message: &out}

	case KindTyping:
		p, _ := env.Payload.(*Typing)
		if p == nil {
			p = &Typing{}
		}
		wire = typingWire{Type: string(env.Kind), AgentID: p.AgentID}

	case KindLogUpdate:
		p, _ := env.Payload.(*LogUpdate)
		if p == nil {
			p = &LogUpdate{}
		}
		wire = logUpdateWire{Type: string(env.Kind), MessageID: p.MessageID, Log: p.Log}

	case KindPing, KindPong:
		wire = pingWire{Type: string(env.Kind)}

	case KindDataRequest:
		if env.CorrelationID == "" {
			return nil, ErrMissingCorrelation
		}
		p, _ := env.Payload.(*DataRequest)
		if p == nil {
			p = &DataRequest{}
		}
		wire = dataRequestWire{
			Type:      string(env.Kind),
			Component: p.Component,
			Action:    p.Action,
			Data:      p.Data,
			RequestID: env.CorrelationID,
		}

	case KindDataResponse:
		if env.CorrelationID == "" {
			return nil, ErrMissingCorrelation
		}
		p, _ := env.Payload.(*DataResponse)
		if p == nil {
			p = &DataResponse{}
		}
		wire = dataResponseWire{
			Type:      string(env.Kind),
			Component: p.Component,
			Action:    p.Action,
			Success:   p.Success,
			Data:      p.Data,
			Error:     p.Error,
			RequestID: env.CorrelationID,
		}

	case KindError:
		p, _ := env.Payload.(*ServerError)
		if p == nil {
			p = &ServerError{}
		}
		wire = errorWire{Type: string(env.Kind), Error: p.Message, Code: p.Code}
	}

	return json.Marshal(wire)
}

// NewChat builds a chat envelope.
func NewChat(msg ChatMessage) Envelope {
	return Envelope{
		Kind:            KindChatMessage,
		Payload:         &msg,
		ClientMessageID: msg.ClientMessageID,
	}
}

// NewPing builds a liveness probe.
func NewPing() Envelope {
	return Envelope{Kind: KindPing}
}

// NewDataRequest builds a data_request carrying the given correlation id.
func NewDataRequest(req DataRequest, correlationID string) Envelope {
	return Envelope{
		Kind:          KindDataRequest,
		Payload:       &req,
		CorrelationID: correlationID,
	}
}

// NewDataResponse builds a data_response echoing the given correlation id.
func NewDataResponse(resp DataResponse, correlationID string) Envelope {
	return Envelope{
		Kind:          KindDataResponse,
		Payload:       &resp,
		CorrelationID: correlationID,
	}
}
