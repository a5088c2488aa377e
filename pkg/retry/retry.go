package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/MailerSuite/Final-sub009/errors"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return stderrors.As(err, &nre)
}

// RetriesExhaustedError is returned once the final attempt has failed.
// It matches errors.ErrMaxRetriesExceeded and unwraps to the last failure.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retry failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports a match against errors.ErrMaxRetriesExceeded.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == errors.ErrMaxRetriesExceeded
}

// Classifier reports whether a failed attempt may be retried.
type Classifier func(err error) bool

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Total attempts including the first (<= 1 means a single attempt)
	InitialDelay time.Duration // Delay before attempt 2
	MaxDelay     time.Duration // Upper bound on any single delay
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	AddJitter    bool          // Add up to 25% randomness on top of each delay

	// Classifier decides which failures are retryable. Nil retries every
	// failure not marked NonRetryable.
	Classifier Classifier

	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a single-attempt config whose backoff, once
// MaxAttempts is raised, waits 2s, 4s, 8s... between attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  1,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		AddJitter:    false,
	}
}

// WithAttempts returns a copy of cfg with MaxAttempts set.
func (cfg Config) WithAttempts(n int) Config {
	cfg.MaxAttempts = n
	return cfg
}

func (cfg Config) normalize() (Config, error) {
	if cfg.InitialDelay < 0 {
		return cfg, errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Do", "InitialDelay cannot be negative")
	}
	if cfg.MaxDelay < 0 {
		return cfg, errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Do", "MaxDelay cannot be negative")
	}
	if cfg.Multiplier < 0 {
		return cfg, errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Do", "Multiplier cannot be negative")
	}
	// Prevent overflow with extremely large multipliers
	if cfg.Multiplier > 1000 {
		cfg.Multiplier = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	def := DefaultConfig()
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Do", "MaxDelay must be >= InitialDelay")
	}
	return cfg, nil
}

// Backoff returns the delay that precedes attempt+1, without jitter.
// Under DefaultConfig this is 2^attempt seconds.
func Backoff(cfg Config, attempt int) time.Duration {
	cfg, err := cfg.normalize()
	if err != nil || attempt < 1 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.Multiplier
		if delay >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Do executes fn with exponential backoff retry. Attempts run sequentially.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) error) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		// Non-retryable failures surface as-is
		if IsNonRetryable(err) || (cfg.Classifier != nil && !cfg.Classifier(err)) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		sleepDuration := Backoff(cfg, attempt)
		if cfg.AddJitter && sleepDuration >= 4 {
			randMu.Lock()
			jitter := time.Duration(randSource.Int63n(int64(sleepDuration / 4)))
			randMu.Unlock()
			sleepDuration += jitter
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, sleepDuration, err)
		}

		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	if cfg.MaxAttempts == 1 {
		return lastErr
	}
	return &RetriesExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		var innerErr error
		result, innerErr = fn(ctx, attempt)
		return innerErr
	})
	return result, err
}
