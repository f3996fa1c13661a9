package catalog

import "sync/atomic"

// Store is the state handle for the active snapshot. The index, title
// lookup, counts and timestamp live in one Snapshot value and are swapped
// with a single pointer store, so a reader never pairs a new index with a
// stale lookup.
type Store struct {
	active atomic.Pointer[Snapshot]
}

// NewStore returns an empty store; Current is nil until the first Publish.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active snapshot or nil before the first build.
func (s *Store) Current() *Snapshot {
	return s.active.Load()
}

// Publish makes snap active unless a snapshot with the same or a later
// version is already active. It reports whether snap was installed; a false
// return means snap came from a build that finished after a newer one.
func (s *Store) Publish(snap *Snapshot) bool {
	for {
		cur := s.active.Load()
		if cur != nil && snap.Version <= cur.Version {
			return false
		}
		if s.active.CompareAndSwap(cur, snap) {
			return true
		}
	}
}
