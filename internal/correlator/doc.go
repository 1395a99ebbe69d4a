// Package correlator matches data_response envelopes to the data_request that
// caused them.
//
// Every Request gets a fresh correlation id and a timer. Whichever comes first
// resolves the request:
//   - a data_response carrying the same id
//   - the timer, which yields the caller's fallback
//   - a send failure, which yields the fallback immediately
//   - connection teardown, which cancels every pending request
//
// Resolution is first-writer-wins. Anything arriving after it is ignored.
package correlator
