// Package bus implements the Event Fan-out Bus.
//
// The Bus delivers every published Event to every current subscriber, in
// subscription order, synchronously. Publish takes a snapshot of the subscriber
// list before iterating, so handlers may subscribe, unsubscribe or publish
// again from inside a callback without deadlocking or corrupting iteration.
//
// GrowableBuffer is the unbounded FIFO the connection uses to hand events to
// its single dispatcher goroutine.
package bus
