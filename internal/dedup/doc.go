// Package dedup implements the Deduplication Ledger.
//
// The Ledger:
//   - Remembers every client-generated message id seen during a session
//   - Admits the first occurrence of an id and rejects every later one
//   - Never dedups messages without an id (server-originated traffic)
//   - Grows for the session lifetime; only Reset clears it
//
// The same logical user message can arrive twice: once as the local optimistic
// echo and once as the server's authoritative echo. Only the first is processed.
package dedup
