// Package cache provides the keyed in-memory stores used for parsed sheets,
// resolved target months and match results.
package cache

import "sync"

// Stats reports cache effectiveness counters
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Store is a mutex-guarded map with explicit invalidation.
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	hits    int64
	misses  int64
}

// New creates an empty Store
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{entries: make(map[K]V)}
}

// Get returns the value stored under key
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries[key]
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return v, ok
}

// Put stores value under key, replacing any previous entry
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

// GetOrCompute returns the cached value for key or stores the result of compute.
// Errors are returned without caching anything.
func (s *Store[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	s.Put(key, v)
	return v, nil
}

// Invalidate removes the entry for key
func (s *Store[K, V]) Invalidate(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidateWhere removes every entry whose key satisfies match and returns how many were removed.
func (s *Store[K, V]) InvalidateWhere(match func(K) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if match(k) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// InvalidateAll empties the store
func (s *Store[K, V]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[K]V)
}

// Stats returns a snapshot of the counters
func (s *Store[K, V]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Entries: len(s.entries), Hits: s.hits, Misses: s.misses}
}
