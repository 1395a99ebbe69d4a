// Package widget implements data widgets: consumers that fetch agent-computed
// data over the shared connection with data_request/data_response pairs.
//
// A Widget never hangs on a missing reply. When the agent is slow, the socket
// is down or the connection is torn down, Fetch returns placeholder content
// produced by the widget's fallback and tagged with "placeholder": true.
package widget
