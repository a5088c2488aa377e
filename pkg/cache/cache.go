package cache

import (
	"time"

	"github.com/MailerSuite/Final-sub009/errors"
)

// DefaultTTL is used when a caller does not specify one.
const DefaultTTL = 5 * time.Minute

// Cache represents a generic cache interface parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if a valid
	// entry exists. An expired entry is evicted and reported as a miss.
	Get(key string) (V, bool)

	// Set stores a value under the cache's default TTL, replacing any
	// existing entry. Returns true if a new entry was created.
	Set(key string, value V) (bool, error)

	// SetWithTTL stores a value with an explicit TTL. A non-positive ttl
	// falls back to the default.
	SetWithTTL(key string, value V, ttl time.Duration) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// DeleteFunc removes every entry whose key satisfies match and returns
	// the number removed.
	DeleteFunc(match func(key string) bool) int

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the number of stored entries, expired or not.
	Size() int

	// Keys returns the keys of entries that are still valid.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry is removed by expiry, Delete or Clear.
type EvictCallback[V any] func(key string, value V)

// Entry is a point-in-time view of a stored value.
type Entry[V any] struct {
	Key      string
	Value    V
	StoredAt time.Time
	TTL      time.Duration
}

// ExpiresAt returns the instant the entry stops being valid.
func (e Entry[V]) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// ValidAt reports whether now - StoredAt < TTL.
func (e Entry[V]) ValidAt(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// validateKey validates a cache key for basic requirements.
// Returns a classified error if the key is invalid.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
