package connection

import (
	"math"
	"time"
)

// RetryState tracks reconnection attempts for one Connection.
//
// The delay before attempt k (0-based) is min(MaxDelay, BaseDelay * 2^k).
// After MaxAttempts scheduled attempts no further retry is offered.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the wait before attempt k. A zero MaxDelay means no ceiling;
// the result then saturates instead of overflowing.
func (r RetryState) Delay(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	d := r.BaseDelay
	for i := 0; i < k && d > 0; i++ {
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			break
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// Next returns the delay for the next attempt and advances the counter.
// ok is false once MaxAttempts attempts have been scheduled.
func (r *RetryState) Next() (delay time.Duration, ok bool) {
	if r.Attempt >= r.MaxAttempts {
		return 0, false
	}
	delay = r.Delay(r.Attempt)
	r.Attempt++
	return delay, true
}

// Reset clears the attempt counter.
func (r *RetryState) Reset() {
	r.Attempt = 0
}
