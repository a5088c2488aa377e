package cache

import (
	"sync"
	"time"
)

// ttlCache is a thread-safe cache with per-entry TTL and lazy eviction.
type ttlCache[V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	items      map[string]Entry[V]
	rec        *recorder
	evictFn    EvictCallback[V]
	now        func() time.Time
}

// NewTTL creates a cache whose entries default to ttl. A non-positive ttl
// falls back to DefaultTTL.
func NewTTL[V any](ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	opts := applyOptions(options...)
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	rec, err := newRecorder(opts.metricsReg, opts.metricsPrefix)
	if err != nil {
		return nil, err
	}

	return &ttlCache[V]{
		defaultTTL: ttl,
		items:      make(map[string]Entry[V]),
		rec:        rec,
		evictFn:    opts.evictCallback,
		now:        opts.clock,
	}, nil
}

// Get retrieves a value by key, evicting it first if it has expired.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	entry, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		c.rec.miss()
		return zero, false
	}

	if !entry.ValidAt(c.now()) {
		delete(c.items, key)
		size := len(c.items)
		c.mu.Unlock()

		c.rec.eviction(size)
		c.rec.miss()
		if c.evictFn != nil {
			c.evictFn(key, entry.Value)
		}
		return zero, false
	}
	c.mu.Unlock()

	c.rec.hit()
	return entry.Value, true
}

// Set stores a value under the default TTL.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	return c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL replaces any existing entry for key wholesale.
func (c *ttlCache[V]) SetWithTTL(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = Entry[V]{
		Key:      key,
		Value:    value,
		StoredAt: c.now(),
		TTL:      ttl,
	}
	size := len(c.items)
	c.mu.Unlock()

	c.rec.set(size)
	return !exists, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.rec.delete(size)
		if c.evictFn != nil {
			c.evictFn(key, entry.Value)
		}
	}
	return exists, nil
}

// DeleteFunc removes every entry whose key matches.
func (c *ttlCache[V]) DeleteFunc(match func(key string) bool) int {
	var removed []Entry[V]

	c.mu.Lock()
	for key, entry := range c.items {
		if match(key) {
			removed = append(removed, entry)
			delete(c.items, key)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	for _, entry := range removed {
		c.rec.delete(size)
		if c.evictFn != nil {
			c.evictFn(entry.Key, entry.Value)
		}
	}
	return len(removed)
}

// Clear removes all entries from the cache.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	old := c.items
	c.items = make(map[string]Entry[V])
	c.mu.Unlock()

	c.rec.resize(0)
	if c.evictFn != nil {
		for key, entry := range old {
			c.evictFn(key, entry.Value)
		}
	}
	return nil
}

// Size returns the number of stored entries, including expired ones not yet
// evicted.
func (c *ttlCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys of valid entries. It never evicts.
func (c *ttlCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.items))
	for key, entry := range c.items {
		if entry.ValidAt(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.rec.stats
}
