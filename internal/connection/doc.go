// Package connection implements the agent Connection.
//
// A Connection owns one websocket to one agent and:
//   - Tracks its lifecycle as an explicit State machine
//   - Reconnects after unclean closes with capped exponential backoff
//   - Sends application-level pings while connected
//   - Drops duplicate chat messages via the dedup Ledger
//   - Fans every event out to subscribers on a single dispatcher goroutine
//
// Outbound sends while disconnected trigger an on-demand connect and bounded
// retries; a send that still fails is reported as a send_failed event.
package connection
