package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/MailerSuite/Final-sub009/auth"
	"github.com/MailerSuite/Final-sub009/config"
	"github.com/MailerSuite/Final-sub009/errors"
	"github.com/MailerSuite/Final-sub009/metric"
	"github.com/MailerSuite/Final-sub009/pkg/cache"
	"github.com/MailerSuite/Final-sub009/pkg/inflight"
	"github.com/MailerSuite/Final-sub009/pkg/retry"
	"github.com/MailerSuite/Final-sub009/pkg/tlsutil"
)

const (
	// RequestIDHeader carries a fresh identifier on every network attempt.
	RequestIDHeader = "X-Request-ID"

	maxResponseBody = 32 << 20
	maxErrorBody    = 512
	cacheComponent  = "api_cache"
)

// UnauthorizedHandler is invoked after a 401 cleared the stored credential.
type UnauthorizedHandler func(ctx context.Context, err error)

// Client orchestrates API requests: response caching, in-flight
// deduplication, retry with exponential backoff, bearer authentication and
// user notifications. A Client is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     auth.Store
	notifier   Notifier
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	metrics    *metric.Metrics
	tracer     trace.Tracer
	limiter    *rate.Limiter

	cache    cache.Cache[*Response]
	cacheTTL time.Duration
	clock    func() time.Time
	inflight *inflight.Registry[*Response]

	backoff         retry.Config
	defaultAttempts int
	onUnauthorized  UnauthorizedHandler
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "apiclient", "New", "parse base URL "+baseURL)
	}

	backoff := retry.DefaultConfig()
	backoff.Classifier = retryable

	c := &Client{
		baseURL:         u,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		tokens:          auth.NewMemoryStore(""),
		notifier:        NopNotifier{},
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
		cacheTTL:        cache.DefaultTTL,
		inflight:        inflight.New[*Response](),
		backoff:         backoff,
		defaultAttempts: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.backoff.InitialDelay < 0 || c.backoff.MaxDelay < c.backoff.InitialDelay || c.backoff.Multiplier < 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "apiclient", "New", "validate retry backoff")
	}

	c.logger = c.logger.With("component", "apiclient")

	cacheOpts := []cache.Option[*Response]{}
	if c.registry != nil {
		c.metrics = c.registry.CoreMetrics()
		cacheOpts = append(cacheOpts, cache.WithMetrics[*Response](c.registry, cacheComponent))
	}
	if c.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock[*Response](c.clock))
	}
	cacheOpts = append(cacheOpts, cache.WithEvictionCallback[*Response](func(fp string, _ *Response) {
		c.logger.Debug("Cached response evicted", "fingerprint", shortFingerprint(fp))
	}))
	c.cache, err = cache.NewTTL[*Response](c.cacheTTL, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "apiclient", "New", "create response cache")
	}

	return c, nil
}

// NewFromConfig creates a Client from the api and tls sections of cfg.
// Options are applied after the configured values.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "apiclient", "NewFromConfig", "read config")
	}
	api := cfg.API

	hc := &http.Client{Timeout: api.Timeout.Std()}
	if !cfg.TLS.IsZero() {
		tlsCfg, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, errors.Wrap(err, "apiclient", "NewFromConfig", "load TLS config")
		}
		hc.Transport = transportWithTLS(tlsCfg)
	}

	base := []Option{
		WithHTTPClient(hc),
		WithCacheTTL(api.CacheTTL.Std()),
		WithDefaultRetryAttempts(api.RetryAttempts),
		WithRetryBackoff(api.RetryInitialDelay.Std(), api.RetryMaxDelay.Std(), api.RetryMultiplier),
	}
	if api.RateLimit > 0 {
		base = append(base, WithRateLimit(api.RateLimit, api.RateBurst))
	}
	return New(api.BaseURL, append(base, opts...)...)
}

// WithTLS installs a transport using tlsCfg. Apply it after WithHTTPClient.
func WithTLS(tlsCfg *tls.Config) Option {
	return func(c *Client) {
		if tlsCfg == nil {
			return
		}
		hc := *c.httpClient
		hc.Transport = transportWithTLS(tlsCfg)
		c.httpClient = &hc
	}
}

func transportWithTLS(tlsCfg *tls.Config) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return tr
}

// withClock replaces the cache clock. Tests only.
func withClock(now func() time.Time) Option {
	return func(c *Client) { c.clock = now }
}

// call is one logical request after option resolution.
type call struct {
	method   string
	target   *url.URL
	path     string
	header   http.Header
	body     []byte
	attempts int
	short    string
}

// Request issues method against path, relative to the base URL. body is
// encoded as JSON unless it is already []byte or json.RawMessage.
//
// A GET with WithCache is answered from the cache while a fresh entry
// exists. Identical concurrent requests share one network call unless
// WithoutDeduplication is given. Failures classified as transient are
// retried up to the attempt budget; exhausting it returns an error matching
// errors.ErrMaxRetriesExceeded that wraps the last failure.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	method = strings.ToUpper(method)
	if !supportedMethod(method) {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: method %q", errors.ErrInvalidData, method),
			"apiclient", "Request", "check method")
	}
	ro := newRequestOptions(opts)

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	target, relPath, query, err := c.resolve(path, ro.query)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(method, relPath, query, ro.header, payload)
	cacheable := ro.cache && isRead(method)

	ctx, span := c.startSpan(ctx, "apiclient.Request",
		attribute.String("http.method", method),
		attribute.String("http.path", relPath),
	)
	defer span.End()

	if ro.refresh && ro.dedup {
		c.inflight.Forget(fp)
	}
	if cacheable && !ro.refresh {
		cached, ok := c.cache.Get(fp)
		c.recordCacheLookup(ok)
		if ok {
			c.recordRequest(method, "cache")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			setSpanSuccess(span)
			resp := cached.clone()
			resp.FromCache = true
			return resp, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	cl := &call{
		method:   method,
		target:   target,
		path:     relPath,
		header:   ro.header,
		body:     payload,
		attempts: c.attemptsFor(method, ro),
		short:    shortFingerprint(fp),
	}
	result, shared, err := c.inflight.Do(ctx, fp, ro.dedup, func(ctx context.Context) (*Response, error) {
		return c.execute(ctx, cl)
	})
	span.SetAttributes(attribute.Bool("dedup.shared", shared))

	if err != nil {
		err = unwrapNonRetryable(err)
		recordSpanError(span, err)
		c.recordRequest(method, "error")
		c.notifyFailure(ctx, cl, ro, err)
		return nil, err
	}

	if shared {
		c.recordRequest(method, "shared")
		if c.metrics != nil {
			c.metrics.DedupShared.Inc()
		}
	} else {
		c.recordRequest(method, "network")
	}

	if cacheable {
		if _, err := c.cache.SetWithTTL(fp, result.clone(), ro.cacheTTL); err != nil {
			c.logger.Warn("Failed to cache response", "path", relPath, "error", err)
		}
	}
	if !isRead(method) && len(ro.invalidate) > 0 {
		c.Invalidate(ro.invalidate...)
	}
	if ro.notifySuccess != "" {
		c.notify(ctx, Notification{
			Level:      LevelSuccess,
			Message:    ro.notifySuccess,
			Method:     method,
			Path:       relPath,
			StatusCode: result.StatusCode,
		})
	}

	setSpanSuccess(span)
	resp := result.clone()
	resp.Shared = shared
	return resp, nil
}

// execute performs the network attempts for one logical request. It runs
// at most once per fingerprint at a time when deduplication is on.
func (c *Client) execute(ctx context.Context, cl *call) (*Response, error) {
	if c.metrics != nil {
		c.metrics.InFlight.Inc()
		defer c.metrics.InFlight.Dec()
	}

	cfg := c.backoff.WithAttempts(cl.attempts)
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		if c.metrics != nil {
			c.metrics.RecordRetry(cl.method)
		}
		c.logger.Warn("Retrying request",
			"method", cl.method, "path", cl.path, "attempt", attempt,
			"status", errors.StatusCode(err), "fingerprint", cl.short,
			"delay", delay, "error", err)
	}

	return retry.DoWithResult(ctx, cfg, func(ctx context.Context, attempt int) (*Response, error) {
		return c.attempt(ctx, cl, attempt)
	})
}

// attempt performs a single network round trip.
func (c *Client) attempt(ctx context.Context, cl *call, attempt int) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.NonRetryable(errors.Wrap(err, "apiclient", "attempt", "wait for rate limiter"))
		}
	}

	requestID := uuid.NewString()
	ctx, span := c.startSpan(ctx, "apiclient.attempt",
		attribute.Int("attempt", attempt),
		attribute.String("request.id", requestID),
	)
	defer span.End()

	var body io.Reader
	if len(cl.body) > 0 {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, cl.target.String(), body)
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "apiclient", "attempt", "build request"))
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(cl.body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	token, ok, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn("Token lookup failed, sending request without credentials", "error", err)
	} else if ok {
		req.Header.Set("Authorization", auth.BearerHeader(token))
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordRoundTrip(cl.method, time.Since(start))
	}
	if err != nil {
		err = errors.WrapTransient(err, "apiclient", "attempt", "send "+cl.method+" "+cl.path)
		recordSpanError(span, err)
		return nil, err
	}
	defer httpResp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		err = errors.WrapTransient(err, "apiclient", "attempt", "read response body")
		recordSpanError(span, err)
		return nil, err
	}

	c.logger.Debug("Request completed",
		"method", cl.method, "path", cl.path, "attempt", attempt,
		"status", httpResp.StatusCode, "fingerprint", cl.short)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		httpErr := &errors.HTTPError{
			Method:     cl.method,
			Path:       cl.path,
			StatusCode: httpResp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
		}
		recordSpanError(span, httpErr)
		if httpResp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(ctx, httpErr)
			return nil, retry.NonRetryable(httpErr)
		}
		return nil, httpErr
	}

	setSpanSuccess(span)
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
		RequestID:  requestID,
	}, nil
}

func (c *Client) handleUnauthorized(ctx context.Context, err error) {
	if c.metrics != nil {
		c.metrics.Unauthorized.Inc()
	}
	if clearErr := c.tokens.Clear(ctx); clearErr != nil {
		c.logger.Error("Failed to clear stored token", "error", clearErr)
	}
	c.logger.Warn("Request unauthorized, stored token cleared")
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx, err)
	}
}

func (c *Client) notifyFailure(ctx context.Context, cl *call, ro *requestOptions, err error) {
	if ctx.Err() != nil || errors.Is(err, errors.ErrUnauthorized) {
		return
	}
	n := Notification{
		Method:     cl.method,
		Path:       cl.path,
		StatusCode: errors.StatusCode(err),
		Err:        err,
	}
	switch {
	case errors.Is(err, errors.ErrRateLimited):
		n.Level = LevelWarning
		n.Message = "Too many requests, please slow down"
	case ro.notifyError:
		n.Level = LevelError
		n.Message = "Request failed: " + err.Error()
	default:
		return
	}
	c.notify(ctx, n)
}

// Invalidate evicts cached GET and HEAD responses for each path prefix and
// everything below it. "/campaigns" matches "/campaigns", "/campaigns/7" and
// "/campaigns?page=2" but not "/campaigns-archive".
func (c *Client) Invalidate(prefixes ...string) int {
	removed := c.cache.DeleteFunc(func(key string) bool {
		for _, p := range prefixes {
			if underPath(key, http.MethodGet, p) || underPath(key, http.MethodHead, p) {
				return true
			}
		}
		return false
	})
	if removed > 0 {
		c.logger.Debug("Invalidated cached responses", "prefixes", prefixes, "removed", removed)
	}
	return removed
}

// underPath reports whether the fingerprint key is a method request for
// prefix or a path below it.
func underPath(key, method, prefix string) bool {
	if prefix == "" {
		return false
	}
	head := method + " /" + strings.TrimLeft(prefix, "/")
	if !strings.HasPrefix(key, head) {
		return false
	}
	rest := key[len(head):]
	if rest == "" || strings.HasSuffix(head, "/") {
		return true
	}
	switch rest[0] {
	case '/', '?', '#':
		return true
	default:
		return false
	}
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() error {
	return c.cache.Clear()
}

// CacheStats exposes response cache statistics.
func (c *Client) CacheStats() *cache.Statistics {
	return c.cache.Stats()
}

// InFlight reports how many distinct requests currently have a network
// call outstanding.
func (c *Client) InFlight() int {
	return c.inflight.Len()
}

func (c *Client) attemptsFor(method string, ro *requestOptions) int {
	n := c.defaultAttempts
	if ro.attempts > 0 {
		n = ro.attempts
	}
	if !isIdempotent(method) && !ro.retryUnsafe {
		return 1
	}
	return n
}

// resolve joins path onto the base URL and merges query parameters.
func (c *Client) resolve(path string, extra url.Values) (*url.URL, string, url.Values, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, "", nil, errors.WrapInvalid(err, "apiclient", "Request", "parse path "+path)
	}
	relPath := "/" + strings.TrimLeft(rel.Path, "/")

	query := rel.Query()
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	target := *c.baseURL
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + relPath
	target.RawPath = ""
	target.RawQuery = query.Encode()
	target.Fragment = ""
	return &target, relPath, query, nil
}

func (c *Client) recordRequest(method, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordRequest(method, outcome)
	}
}

func (c *Client) recordCacheLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

// retryable retries transport failures, client timeouts included, and
// transient HTTP statuses. Cancellation of the caller's context is handled
// by the retry loop itself.
func retryable(err error) bool {
	var he *errors.HTTPError
	if errors.As(err, &he) {
		return he.Class() == errors.ErrorTransient
	}
	return !errors.IsInvalid(err) && !errors.IsFatal(err)
}

func unwrapNonRetryable(err error) error {
	if nre, ok := err.(*retry.NonRetryableError); ok {
		return nre.Err
	}
	return err
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapInvalid(err, "apiclient", "Request", "encode request body")
		}
		return data, nil
	}
}

func shortFingerprint(fp string) string {
	if i := strings.IndexByte(fp, '#'); i >= 0 && len(fp) > i+9 {
		return fp[:i+9]
	}
	return fp
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
