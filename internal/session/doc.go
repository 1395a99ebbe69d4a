// Package session binds one agent to its connection, correlator and chat
// transcript, and switches between agents.
//
// Sessions are never reused across agents: selecting a different agent closes
// the current session (reconnect timer cancelled, socket closed, pending
// requests resolved as cancelled) before the next one is built.
package session
