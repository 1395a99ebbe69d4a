// Package metrics provides Prometheus metrics for the agent connection layer.
//
// Key metrics:
//   - Connection state and reconnect attempts
//   - Inbound envelopes by kind, and drops by reason (malformed, duplicate)
//   - Correlated request outcomes and round-trip latency
//   - Outbound sends that failed after retries
//
// A nil *Metrics is valid and records nothing.
package metrics
