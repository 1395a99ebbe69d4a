package connection

import (
	"sync"
	"time"
)

// heartbeat periodically calls ping until stopped or a ping fails.
type heartbeat struct {
	stop chan struct{}
	once sync.Once
}

// startHeartbeat returns nil if interval is not positive.
func startHeartbeat(interval time.Duration, ping func() error, onFail func(error)) *heartbeat {
	if interval <= 0 {
		return nil
	}

	h := &heartbeat{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if err := ping(); err != nil {
					select {
					case <-h.stop:
					default:
						onFail(err)
					}
					return
				}
			}
		}
	}()
	return h
}

// Stop is safe on a nil heartbeat and safe to call more than once.
func (h *heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
}
