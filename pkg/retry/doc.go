// Package retry runs an operation up to a bounded number of sequential
// attempts with exponential backoff between them.
//
// DefaultConfig makes a single attempt. Raising MaxAttempts turns on the
// backoff schedule: no delay before attempt 1, then 2s, 4s, 8s... (2^k
// seconds before attempt k+1), capped at MaxDelay. Jitter is off by default
// and adds up to 25% on top of each delay when enabled.
//
//	cfg := retry.DefaultConfig().WithAttempts(3)
//	cfg.Classifier = errors.IsTransient
//	body, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context, attempt int) ([]byte, error) {
//	    return fetch(ctx)
//	})
//
// Only the final failure is surfaced. When more than one attempt was allowed
// it comes back as *RetriesExhaustedError, which matches
// errors.ErrMaxRetriesExceeded and unwraps to the last underlying error. A
// failure the Classifier rejects, or one wrapped with NonRetryable, is
// returned immediately and unchanged.
//
// Context cancellation stops the loop both between attempts and during a
// backoff sleep.
package retry
