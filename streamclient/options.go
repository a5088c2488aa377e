package streamclient

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/MailerSuite/Final-sub009/auth"
	"github.com/MailerSuite/Final-sub009/config"
	"github.com/MailerSuite/Final-sub009/errors"
	"github.com/MailerSuite/Final-sub009/metric"
	"github.com/MailerSuite/Final-sub009/pkg/tlsutil"
)

const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultPauseBuffer          = 10000
	DefaultHandshakeTimeout     = 10 * time.Second

	closeGrace = time.Second
	writeWait  = 10 * time.Second
)

// Option configures a Conn.
type Option func(*options)

type options struct {
	name             string
	reconnectDelay   time.Duration
	maxReconnects    int
	pauseBuffer      int
	handshakeTimeout time.Duration
	header           http.Header
	tokens           auth.Store
	logger           *slog.Logger
	registry         *metric.MetricsRegistry
	tlsConfig        *tls.Config
}

func defaultOptions() *options {
	return &options{
		reconnectDelay:   DefaultReconnectDelay,
		maxReconnects:    DefaultMaxReconnectAttempts,
		pauseBuffer:      DefaultPauseBuffer,
		handshakeTimeout: DefaultHandshakeTimeout,
		header:           http.Header{},
		logger:           slog.Default(),
	}
}

// WithName labels the connection in logs, metrics and health. Defaults to
// the URL host and path.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithReconnectDelay sets the fixed delay before each reconnect.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnectDelay = d
		}
	}
}

// WithMaxReconnectAttempts bounds reconnects after an unclean close or a
// failed dial. Zero disables reconnecting.
func WithMaxReconnectAttempts(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxReconnects = n
		}
	}
}

// WithPauseBuffer sets how many events are held while paused. When full the
// oldest buffered event is dropped.
func WithPauseBuffer(capacity int) Option {
	return func(o *options) { o.pauseBuffer = capacity }
}

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithHeader adds a header to the opening handshake.
func WithHeader(key, value string) Option {
	return func(o *options) { o.header.Add(key, value) }
}

// WithTokenStore sends the stored bearer token on every handshake.
func WithTokenStore(store auth.Store) Option {
	return func(o *options) { o.tokens = store }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records stream metrics in registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithTLS sets the TLS configuration for wss:// URLs.
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) { o.tlsConfig = cfg }
}

// OptionsFromConfig translates the stream and tls sections of cfg.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "streamclient", "OptionsFromConfig", "read config")
	}
	s := cfg.Stream
	opts := []Option{
		WithReconnectDelay(s.ReconnectDelay.Std()),
		WithMaxReconnectAttempts(s.MaxReconnectAttempts),
		WithHandshakeTimeout(s.HandshakeTimeout.Std()),
	}
	if s.PauseBuffer > 0 {
		opts = append(opts, WithPauseBuffer(s.PauseBuffer))
	}
	if !cfg.TLS.IsZero() {
		tlsCfg, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, errors.Wrap(err, "streamclient", "OptionsFromConfig", "load TLS config")
		}
		opts = append(opts, WithTLS(tlsCfg))
	}
	return opts, nil
}
