// Package chat keeps the chat transcript for one agent connection.
//
// A Transcript subscribes to the connection and folds events into entries:
// chat messages append (local echoes first, marked Pending until the send
// completes), typing sets the indicator until the next assistant reply, and
// log_update lines attach to the message they name.
package chat
