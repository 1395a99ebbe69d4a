package correlator

import (
	"context"
	"sync"
)

// Future is the pending result of a Request.
type Future struct {
	id   string
	done chan struct{}

	once   sync.Once
	result Result
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the correlation id.
func (f *Future) ID() string { return f.id }

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx ends.
// Cancelling ctx does not cancel the request.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the result and whether the future has resolved.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result{}, false
	}
}

// resolve sets the result. Only the first call has any effect.
func (f *Future) resolve(r Result) bool {
	won := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		won = true
	})
	return won
}
