package core

import "sync"

// ownerLocks serializes ingestion per owner. Two concurrent ingests for the
// same owner must not both search before either persists, or a near-duplicate
// pair slips past consolidation. Ingests for different owners touch disjoint
// partitions and proceed in parallel.
//
// Entries are created on demand and removed once uncontended, so the table
// stays bounded by the number of owners with in-flight operations.
type ownerLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{
		entries: make(map[string]*lockEntry),
	}
}

// lock acquires the owner's mutex and returns the release function.
func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	entry, ok := l.entries[owner]
	if !ok {
		entry = &lockEntry{}
		l.entries[owner] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, owner)
		}
		l.mu.Unlock()
	}
}
