package bus

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Bus is a synchronous, in-process event fan-out.
type Bus struct {
	mu   sync.Mutex
	subs *list.List // of *subscription
}

type subscription struct {
	handler Handler
	removed atomic.Bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: list.New()}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(h Handler) func() {
	sub := &subscription{handler: h}

	b.mu.Lock()
	elem := b.subs.PushBack(sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.removed.Store(true)
			b.mu.Lock()
			b.subs.Remove(elem)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber in subscription order and returns
// once all of them have run. A handler unsubscribed by an earlier handler
// during the same Publish is skipped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	snapshot := make([]*subscription, 0, b.subs.Len())
	for e := b.subs.Front(); e != nil; e = e.Next() {
		snapshot = append(snapshot, e.Value.(*subscription))
	}
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.removed.Load() {
			continue
		}
		sub.handler(ev)
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs.Len()
}
