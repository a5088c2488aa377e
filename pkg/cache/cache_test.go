package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailerSuite/Final-sub009/errors"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, clock *fakeClock, opts ...Option[string]) Cache[string] {
	t.Helper()
	opts = append(opts, WithClock[string](clock.Now))
	c, err := NewTTL[string](ttl, opts...)
	require.NoError(t, err)
	return c
}

func TestTTLCache_BasicOperations(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	created, err := c.Set("key1", "value1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("key1", "value2")
	require.NoError(t, err)
	assert.False(t, created, "overwrite should not report a new entry")

	val, ok := c.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "value2", val)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	deleted, err := c.Delete("key1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("key1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 0, c.Size())
}

func TestTTLCache_EmptyKeyRejected(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	_, err := c.Set("", "v")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = c.Delete("")
	assert.Error(t, err)
}

func TestTTLCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 0, clock)

	_, _ = c.Set("k", "v")
	clock.Advance(DefaultTTL - time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be valid just before the five minute default")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire at exactly the default TTL")
}

func TestTTLCache_ExpiryBoundary(t *testing.T) {
	const ttl = 10 * time.Second
	const epsilon = time.Millisecond

	t.Run("just before TTL is a hit", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(t, ttl, clock)
		_, _ = c.Set("k", "v")

		clock.Advance(ttl - epsilon)
		val, ok := c.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "v", val)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("just after TTL misses and evicts", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(t, ttl, clock)
		_, _ = c.Set("k", "v")

		clock.Advance(ttl + epsilon)
		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Size(), "expired entry should be removed by the read")
		assert.Equal(t, int64(1), c.Stats().Evictions())
	})
}

func TestTTLCache_LazyEviction(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Second, clock)

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	clock.Advance(2 * time.Second)

	// Nothing sweeps in the background; expired entries linger until read.
	assert.Equal(t, 2, c.Size())
	assert.Empty(t, c.Keys())

	_, _ = c.Get("a")
	assert.Equal(t, 1, c.Size())
}

func TestTTLCache_PerEntryTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, time.Minute, clock)

	_, _ = c.SetWithTTL("short", "s", time.Second)
	_, _ = c.Set("long", "l")

	clock.Advance(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok)
}

func TestTTLCache_SetRefreshesStoredAt(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 10*time.Second, clock)

	_, _ = c.Set("k", "v1")
	clock.Advance(8 * time.Second)
	_, _ = c.Set("k", "v2")
	clock.Advance(8 * time.Second)

	val, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", val)
}

func TestTTLCache_DeleteFunc(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	for _, k := range []string{"GET /users", "GET /users?page=2", "GET /campaigns"} {
		_, _ = c.Set(k, k)
	}

	n := c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, "GET /users") })
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"GET /campaigns"}, c.Keys())
}

func TestTTLCache_Clear(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	c := newTestCache(t, time.Minute, newFakeClock(),
		WithEvictionCallback[string](func(key string, _ string) {
			mu.Lock()
			evicted = append(evicted, key)
			mu.Unlock()
		}))

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	require.NoError(t, c.Clear())

	assert.Equal(t, 0, c.Size())
	sort.Strings(evicted)
	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestTTLCache_EvictCallbackOnExpiry(t *testing.T) {
	clock := newFakeClock()
	var gotKey, gotVal string
	c := newTestCache(t, time.Second, clock,
		WithEvictionCallback[string](func(key, value string) {
			gotKey, gotVal = key, value
		}))

	_, _ = c.Set("k", "v")
	clock.Advance(time.Second)
	_, _ = c.Get("k")

	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "v", gotVal)
}

func TestTTLCache_Statistics(t *testing.T) {
	c := newTestCache(t, time.Minute, newFakeClock())

	_, _ = c.Set("k", "v")
	_, _ = c.Get("k")
	_, _ = c.Get("k")
	_, _ = c.Get("nope")
	_, _ = c.Delete("k")

	s := c.Stats().Summary()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Sets)
	assert.Equal(t, int64(1), s.Deletes)
	assert.Equal(t, int64(0), s.Size)
	assert.InDelta(t, 2.0/3.0, s.HitRatio, 0.0001)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c, err := NewTTL[string](time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j%10)
				_, _ = c.Set(key, "v")
				_, _ = c.Get(key)
				if j%7 == 0 {
					_, _ = c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 200)
}
