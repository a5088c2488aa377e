package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConcurrentCallersShareOneInvocation(t *testing.T) {
	reg := New[string]()
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "payload", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	shared := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, s, err := reg.Do(context.Background(), "GET /users", true, fn)
			assert.NoError(t, err)
			results[i], shared[i] = v, s
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining goroutines time to join before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		assert.Equal(t, "payload", results[i])
		assert.True(t, shared[i])
	}
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_SharedFailure(t *testing.T) {
	reg := New[int]()
	boom := errors.New("boom")
	release := make(chan struct{})
	var calls atomic.Int32

	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = reg.Do(context.Background(), "k", true, fn)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}

func TestRegistry_EntryRemovedAfterSettle(t *testing.T) {
	reg := New[int]()
	var calls atomic.Int32
	fn := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	v1, _, err := reg.Do(context.Background(), "k", true, fn)
	require.NoError(t, err)
	v2, _, err := reg.Do(context.Background(), "k", true, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2, "a call after settle must start fresh")
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_DeduplicateFalseBypassesRegistry(t *testing.T) {
	reg := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, shared, err := reg.Do(context.Background(), "k", false, fn)
			assert.NoError(t, err)
			assert.False(t, shared)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, reg.Len())
	close(release)
	wg.Wait()
}

func TestRegistry_AbandonedWaiterDoesNotCancelCall(t *testing.T) {
	reg := New[string]()
	release := make(chan struct{})
	var sawCancel atomic.Bool

	fn := func(ctx context.Context) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
			sawCancel.Store(true)
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := reg.Do(ctx, "k", true, fn)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)
	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	// A second caller still joins the running call and gets its value.
	resCh := make(chan string, 1)
	go func() {
		v, _, _ := reg.Do(context.Background(), "k", true, fn)
		resCh <- v
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	assert.Equal(t, "done", <-resCh)
	assert.False(t, sawCancel.Load())
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)
}

func TestRegistry_DistinctKeysRunIndependently(t *testing.T) {
	reg := New[string]()
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "x", nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, _, _ = reg.Do(context.Background(), k, true, fn)
		}(key)
	}
	wg.Wait()

	assert.Equal(t, int32(3), calls.Load())
}
