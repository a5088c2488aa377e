package apiclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/MailerSuite/Final-sub009/auth"
	"github.com/MailerSuite/Final-sub009/metric"
	"github.com/MailerSuite/Final-sub009/pkg/retry"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenStore sets where the bearer token is read from and cleared on 401.
func WithTokenStore(store auth.Store) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request metrics in registry and exports cache
// statistics under the "api_cache" component.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRateLimit caps outgoing network attempts at rps per second with the
// given burst. Cache hits and shared calls are not limited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCacheTTL sets the default lifetime of cached GET responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithRetryBackoff sets the delay schedule between attempts. With the
// defaults (2s, 60s, 2) attempt k+1 waits 2^k seconds.
func WithRetryBackoff(initial, maxDelay time.Duration, multiplier float64) Option {
	return func(c *Client) {
		c.backoff.InitialDelay = initial
		c.backoff.MaxDelay = maxDelay
		c.backoff.Multiplier = multiplier
	}
}

// WithDefaultRetryAttempts sets the attempt budget for requests that do not
// pass WithRetry.
func WithDefaultRetryAttempts(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.defaultAttempts = n
		}
	}
}

// WithRetryClassifier decides which failures are retried. The default
// retries transport errors and 408, 429 and 5xx responses.
func WithRetryClassifier(classify retry.Classifier) Option {
	return func(c *Client) {
		if classify != nil {
			c.backoff.Classifier = classify
		}
	}
}

// WithUnauthorizedHandler is called once for every 401 response, after the
// stored token has been cleared. Use it to present a login surface.
func WithUnauthorizedHandler(fn UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// RequestOption configures a single logical request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	cache         bool
	cacheTTL      time.Duration
	attempts      int
	dedup         bool
	notifySuccess string
	notifyError   bool
	query         url.Values
	header        http.Header
	retryUnsafe   bool
	invalidate    []string
	refresh       bool
}

func newRequestOptions(opts []RequestOption) *requestOptions {
	ro := &requestOptions{dedup: true}
	for _, opt := range opts {
		if opt != nil {
			opt(ro)
		}
	}
	return ro
}

// WithCache serves GET and HEAD requests from the response cache when a
// fresh entry exists and stores successful responses.
func WithCache() RequestOption {
	return func(ro *requestOptions) { ro.cache = true }
}

// WithCacheTTLOverride caches this response for ttl instead of the client
// default. It implies WithCache.
func WithCacheTTLOverride(ttl time.Duration) RequestOption {
	return func(ro *requestOptions) {
		ro.cache = true
		ro.cacheTTL = ttl
	}
}

// WithRetry sets the total number of attempts; 1 disables retry.
func WithRetry(attempts int) RequestOption {
	return func(ro *requestOptions) { ro.attempts = attempts }
}

// WithoutDeduplication forces an independent network call even when an
// identical request is in flight.
func WithoutDeduplication() RequestOption {
	return func(ro *requestOptions) { ro.dedup = false }
}

// WithNotifyOnSuccess emits a success notification with msg.
func WithNotifyOnSuccess(msg string) RequestOption {
	return func(ro *requestOptions) { ro.notifySuccess = msg }
}

// WithNotifyOnError emits an error notification when the request fails.
func WithNotifyOnError() RequestOption {
	return func(ro *requestOptions) { ro.notifyError = true }
}

// WithQuery adds query parameters. They are part of the request identity.
func WithQuery(q url.Values) RequestOption {
	return func(ro *requestOptions) {
		if ro.query == nil {
			ro.query = url.Values{}
		}
		for k, vs := range q {
			for _, v := range vs {
				ro.query.Add(k, v)
			}
		}
	}
}

// WithHeader adds a request header. It is part of the request identity.
func WithHeader(key, value string) RequestOption {
	return func(ro *requestOptions) {
		if ro.header == nil {
			ro.header = http.Header{}
		}
		ro.header.Add(key, value)
	}
}

// WithRetryUnsafe allows retrying POST and PATCH.
func WithRetryUnsafe() RequestOption {
	return func(ro *requestOptions) { ro.retryUnsafe = true }
}

// WithInvalidate evicts cached GET responses under each path prefix once
// this request succeeds.
func WithInvalidate(prefixes ...string) RequestOption {
	return func(ro *requestOptions) { ro.invalidate = append(ro.invalidate, prefixes...) }
}

// WithRefresh bypasses the cached response and starts a new network call
// instead of joining one already in flight. The result is cached when
// WithCache is also given.
func WithRefresh() RequestOption {
	return func(ro *requestOptions) { ro.refresh = true }
}

// supportedMethod reports whether Request accepts method.
func supportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isIdempotent reports whether repeating method has no additional effect.
func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}
