// Package envelope implements the wire codec for the agent connection.
//
// Every frame on the socket is one JSON object discriminated by its "type" field:
//   - message:       chat turn, either direction
//   - typing:        agent presence indicator (server → client)
//   - log_update:    incremental log line for an in-flight assistant message
//   - ping / pong:   liveness probe and its optional reply
//   - data_request:  widget → server, correlated by requestId
//   - data_response: server → widget, echoes requestId
//   - error:         server-side error report
//
// Decode never panics on bad input: unparseable frames yield ErrMalformed and
// unrecognized types yield ErrUnknownType so the caller can log and drop them.
package envelope
