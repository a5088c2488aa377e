package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailerSuite/Final-sub009/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.OnRetry = func(_ int, delay time.Duration, _ error) {
		delays = append(delays, delay)
	}

	attempts := 0
	err := Do(context.Background(), cfg, func(_ context.Context, attempt int) error {
		attempts++
		assert.Equal(t, attempts, attempt)
		if attempts < 3 {
			return stderrors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	underlying := stderrors.New("persistent error")

	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context, int) error {
		attempts++
		return underlying
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "must never exceed MaxAttempts")
	assert.True(t, stderrors.Is(err, errors.ErrMaxRetriesExceeded))
	assert.True(t, stderrors.Is(err, underlying))
	assert.Contains(t, err.Error(), "failed after 3 attempts")

	var exhausted *RetriesExhaustedError
	require.True(t, stderrors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestRetry_SingleAttemptPropagatesImmediately(t *testing.T) {
	underlying := stderrors.New("boom")

	attempts := 0
	start := time.Now()
	err := Do(context.Background(), DefaultConfig(), func(context.Context, int) error {
		attempts++
		return underlying
	})

	assert.Same(t, underlying, err)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_DefaultScheduleIsPowersOfTwoSeconds(t *testing.T) {
	cfg := DefaultConfig().WithAttempts(5)

	assert.Equal(t, time.Duration(0), Backoff(cfg, 0))
	assert.Equal(t, 2*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
	assert.Equal(t, 8*time.Second, Backoff(cfg, 3))
	assert.Equal(t, 16*time.Second, Backoff(cfg, 4))
	assert.Equal(t, 60*time.Second, Backoff(cfg, 10), "capped at MaxDelay")
}

func TestRetry_ClassifierStopsNonRetryable(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Classifier = errors.IsTransient

	validation := &errors.HTTPError{Method: "POST", Path: "/campaigns", StatusCode: 422}

	attempts := 0
	err := Do(context.Background(), cfg, func(context.Context, int) error {
		attempts++
		return validation
	})

	assert.Equal(t, 1, attempts)
	assert.Same(t, validation, err)
	assert.False(t, stderrors.Is(err, errors.ErrMaxRetriesExceeded))
}

func TestRetry_NonRetryableMarker(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context, int) error {
		attempts++
		return NonRetryable(stderrors.New("unauthorized"))
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, IsNonRetryable(err))
	assert.Nil(t, NonRetryable(nil))
}

func TestRetry_ContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel() // Cancel during retry
	}()

	attempts := 0
	err := Do(ctx, cfg, func(context.Context, int) error {
		attempts++
		return stderrors.New("error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Equal(t, 1, attempts)
}

func TestRetry_BackoffTiming(t *testing.T) {
	start := time.Now()
	attempts := 0

	_ = Do(context.Background(), fastConfig(4), func(context.Context, int) error {
		attempts++
		return stderrors.New("error")
	})

	elapsed := time.Since(start)

	// Should have delays: 10ms + 20ms + 40ms = 70ms minimum
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, 4, attempts)
}

func TestRetry_JitterStaysWithinBound(t *testing.T) {
	cfg := fastConfig(3)
	cfg.AddJitter = true

	var delays []time.Duration
	cfg.OnRetry = func(_ int, delay time.Duration, _ error) {
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), cfg, func(context.Context, int) error {
		return stderrors.New("error")
	})

	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.Less(t, delays[0], 13*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
	assert.Less(t, delays[1], 25*time.Millisecond)
}

func TestRetry_WithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func(context.Context, int) (string, error) {
		attempts++
		if attempts < 3 {
			return "", stderrors.New("not ready")
		}
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{MaxAttempts: 2, InitialDelay: -1}},
		{"negative max delay", Config{MaxAttempts: 2, MaxDelay: -1}},
		{"negative multiplier", Config{MaxAttempts: 2, Multiplier: -1}},
		{"max below initial", Config{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			err := Do(context.Background(), tt.cfg, func(context.Context, int) error {
				called = true
				return nil
			})
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.False(t, called)
		})
	}
}
