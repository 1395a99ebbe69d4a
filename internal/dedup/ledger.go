package dedup

import "sync"

// Ledger tracks client message ids already processed in this session.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}

	// Stats
	admitted   int64
	suppressed int64
}

// Stats contains ledger statistics.
type Stats struct {
	Entries    int
	Admitted   int64
	Suppressed int64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// ShouldProcess reports whether a message with the given client id should be
// processed. The first call for an id returns true and marks it seen; every
// later call returns false. An empty id always returns true.
func (l *Ledger) ShouldProcess(clientMessageID string) bool {
	if clientMessageID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[clientMessageID]; ok {
		l.suppressed++
		return false
	}
	l.seen[clientMessageID] = struct{}{}
	l.admitted++
	return true
}

// Mark records ids as seen without counting them as admitted.
// Used to seed the ledger from message history.
func (l *Ledger) Mark(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			l.seen[id] = struct{}{}
		}
	}
}

// Seen reports whether id has been recorded, without marking it.
func (l *Ledger) Seen(clientMessageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[clientMessageID]
	return ok
}

// Len returns the number of recorded ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Reset forgets every recorded id.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	l.admitted = 0
	l.suppressed = 0
}

// Stats returns ledger statistics.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Entries:    len(l.seen),
		Admitted:   l.admitted,
		Suppressed: l.suppressed,
	}
}
