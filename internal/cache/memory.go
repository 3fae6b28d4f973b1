// Package cache implements the two-tier data cache: an in-process tier with
// per-entry TTLs in front of a persistent Redis tier. Staleness is computed
// at read time from the stored insertion timestamp; there is no background
// eviction. Expired entries are treated as absent and physically removed only
// on invalidation.
package cache

import (
	"path"
	"sync"
	"time"
)

// entry is never mutated in place, only replaced wholesale on Set.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time, maxAge time.Duration) bool {
	age := now.Sub(e.insertedAt)
	if maxAge > 0 {
		return age > maxAge
	}
	return e.ttl > 0 && age > e.ttl
}

// Memory is the in-process cache tier.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process tier using the wall clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-process tier with an injectable clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the value stored under key, honouring the entry's own TTL.
func (m *Memory) Get(key string) (any, bool) {
	return m.GetWithMaxAge(key, 0)
}

// GetWithMaxAge returns the value stored under key if it is younger than
// maxAge. A maxAge of zero falls back to the entry's own TTL; a maxAge longer
// than the TTL deliberately admits stale entries (the degraded-fetch path).
func (m *Memory) GetWithMaxAge(key string, maxAge time.Duration) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.now(), maxAge) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL. A TTL of zero means the
// entry never expires.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, insertedAt: m.now(), ttl: ttl}
}

// Has reports whether a non-expired entry exists for key.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Invalidate removes every entry whose key matches the glob pattern
// (same pattern family Redis SCAN uses) and returns the number removed.
// Removal is synchronous and visible to the caller immediately.
func (m *Memory) Invalidate(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
