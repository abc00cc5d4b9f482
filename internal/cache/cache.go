// Package cache provides a TTL and size bounded in-memory map.
//
// Instances are advisory only: they debounce repeat work and gate sampled
// writes, but correctness never depends on an entry surviving. Eviction
// under pressure may let a suppressed action through early; the store-level
// checks remain the source of truth.
package cache

import (
	"sync"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/metrics"
)

// entry holds a value with its insertion time
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a generic bounded map with TTL-based and size-based eviction.
// The zero value is not usable; create instances with New.
type Cache[V any] struct {
	mu      sync.Mutex
	name    string
	entries map[string]entry[V]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// Stats describes the cache state for observability.
type Stats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
	Oldest  time.Time
	Newest  time.Time
}

// New creates a cache with the given TTL and size bound.
// The name labels the cache's metrics.
func New[V any](name string, ttl time.Duration, maxSize int) *Cache[V] {
	return &Cache[V]{
		name:    name,
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injectable clock for tests.
func NewWithClock[V any](name string, ttl time.Duration, maxSize int, now func() time.Time) *Cache[V] {
	c := New[V](name, ttl, maxSize)
	c.now = now
	return c
}

// Set stores a value. Expired entries are purged first; if the cache is
// still at capacity the entry with the oldest insertion time is evicted.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeExpired(now)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry[V]{value: value, insertedAt: now}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Get returns the value for key if it exists and has not expired.
// An expired entry is dropped and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
		return zero, false
	}

	return e.value, true
}

// Delete removes a key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Len returns the current entry count, including not-yet-purged expired
// entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns size, bounds and insertion-time extremes.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
	}

	for _, e := range c.entries {
		if s.Oldest.IsZero() || e.insertedAt.Before(s.Oldest) {
			s.Oldest = e.insertedAt
		}
		if s.Newest.IsZero() || e.insertedAt.After(s.Newest) {
			s.Newest = e.insertedAt
		}
	}

	return s
}

// purgeExpired removes all expired entries (must be called with lock held)
func (c *Cache[V]) purgeExpired(now time.Time) {
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// evictOldest removes the entry with the oldest insertion time
// (must be called with lock held)
func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.insertedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.insertedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		metrics.CacheEvictions.WithLabelValues(c.name).Inc()
	}
}

// Increment adds delta to an integer-valued cache entry and returns the new
// value, inserting the entry if absent. The insertion time is refreshed only
// on first insert so the TTL still bounds the counter's lifetime.
func Increment(c *Cache[int64], key string, delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if ok && now.Sub(e.insertedAt) > c.ttl {
		ok = false
	}

	if !ok {
		if len(c.entries) >= c.maxSize {
			c.purgeExpired(now)
			if len(c.entries) >= c.maxSize {
				c.evictOldest()
			}
		}
		c.entries[key] = entry[int64]{value: delta, insertedAt: now}
		metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
		return delta
	}

	e.value += delta
	c.entries[key] = e
	return e.value
}
