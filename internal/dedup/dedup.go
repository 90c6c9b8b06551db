// Package dedup guarantees at-most-one notification per incident identity.
//
// The guarantee maps to a single atomic check-and-set: Store.TryAcquire
// returns true exactly once per key within the retention horizon, under
// arbitrary concurrency. MemoryStore covers the single-process case; an
// external store with conditional writes can implement the same interface
// for multi-process deployments.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultRetention matches the upstream redelivery window: a redelivered
// batch carrying the same event ids arrives well inside this horizon.
const DefaultRetention = 5 * time.Minute

// Store is an idempotency-key store with at-most-one-winner semantics.
type Store interface {
	// TryAcquire atomically records key and reports whether this caller won.
	// At most one call per key returns true within the retention horizon.
	TryAcquire(key string) bool
}

// MemoryStore is an in-process Store: a mutex-guarded map with TTL entries.
type MemoryStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive retention falls back
// to DefaultRetention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

// TryAcquire implements Store.
func (s *MemoryStore) TryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acquiredAt, exists := s.seen[key]; exists {
		if s.now().Sub(acquiredAt) < s.retention {
			return false
		}
	}
	s.seen[key] = s.now()
	return true
}

// Run periodically evicts expired entries until ctx is cancelled. Without it
// the store still behaves correctly but grows unbounded.
func (s *MemoryStore) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	for key, acquiredAt := range s.seen {
		if acquiredAt.Before(cutoff) {
			delete(s.seen, key)
		}
	}
}

// Deduplicator decides whether an incident identity should notify.
type Deduplicator struct {
	store Store
}

// New creates a Deduplicator backed by store.
func New(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// ShouldNotify returns true at most once per identity within the store's
// retention horizon. Safe for concurrent use.
func (d *Deduplicator) ShouldNotify(identity string) bool {
	return d.store.TryAcquire(identity)
}
