// Package errors provides standardized error handling for the console client.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or a rejected request, do not retry) and Fatal (unrecoverable,
// stop and escalate). The request orchestrator and the stream client both use
// the classification to decide whether a failure is worth another attempt.
//
// # HTTP Status Errors
//
// Every non-2xx response surfaces as an *HTTPError. Its class follows the
// status code:
//
//   - 401: Fatal, and errors.Is(err, ErrUnauthorized) holds
//   - 429: Transient, and errors.Is(err, ErrRateLimited) holds
//   - 408 and 5xx: Transient
//   - any other 4xx: Invalid
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the class explicitly:
//
//	errors.WrapTransient(err, "Client", "send", "http round trip")
//	errors.WrapInvalid(err, "Config", "Validate", "base_url is required")
//	errors.WrapFatal(err, "Conn", "run", "reconnect")
//
// The generic Wrap() keeps whatever class the wrapped error already has.
//
// # Integration with errors.As/Is
//
//	var he *errors.HTTPError
//	if errors.As(err, &he) {
//	    log.Printf("status %d from %s", he.StatusCode, he.Path)
//	}
//
//	if errors.Is(err, errors.ErrMaxRetriesExceeded) {
//	    // every attempt failed; err also unwraps to the last failure
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify as
// Transient.
package errors
