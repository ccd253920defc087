// Package page holds the current page snapshot shared between the
// fetcher and the extractor.
package page

import "sync"

// Snapshot is the raw markup of the most recently fetched page together
// with its source URL. Immutable once created.
type Snapshot struct {
	URL  string
	HTML string
}

// Store is a single mutable slot holding at most one snapshot at a time.
// A successful fetch replaces the previous snapshot entirely; readers
// capture the snapshot once and must not re-read mid-operation.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set atomically replaces the current snapshot.
func (s *Store) Set(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Current returns the current snapshot, or nil if no page has been
// fetched yet.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
