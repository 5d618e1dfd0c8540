// Package locks provides keyed mutual exclusion for serializing operations
// on a shared persisted record (a resource's bookings, an escrow record).
package locks

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key. Entries are dropped once the last
// holder unlocks, so the map does not grow with the keyspace.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyed returns a new Keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
