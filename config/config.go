package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MailerSuite/Final-sub009/errors"
	"github.com/MailerSuite/Final-sub009/pkg/tlsutil"
)

// Config represents the complete client configuration.
type Config struct {
	API     APIConfig            `json:"api"`
	Stream  StreamConfig         `json:"stream"`
	Auth    AuthConfig           `json:"auth"`
	TLS     tlsutil.ClientConfig `json:"tls"`
	Log     LogConfig            `json:"log"`
	Metrics MetricsConfig        `json:"metrics"`
}

// APIConfig configures the request orchestrator.
type APIConfig struct {
	BaseURL           string   `json:"base_url,omitempty"`
	Timeout           Duration `json:"timeout"`
	CacheTTL          Duration `json:"cache_ttl"`
	RetryAttempts     int      `json:"retry_attempts"`
	RetryInitialDelay Duration `json:"retry_initial_delay"`
	RetryMaxDelay     Duration `json:"retry_max_delay"`
	RetryMultiplier   float64  `json:"retry_multiplier"`
	RateLimit         float64  `json:"rate_limit,omitempty"` // requests per second, 0 = unlimited
	RateBurst         int      `json:"rate_burst,omitempty"`
}

// StreamConfig configures stream connections.
type StreamConfig struct {
	URL                  string   `json:"url,omitempty"`
	ReconnectDelay       Duration `json:"reconnect_delay"`
	MaxReconnectAttempts int      `json:"max_reconnect_attempts"`
	PauseBuffer          int      `json:"pause_buffer"`
	HandshakeTimeout     Duration `json:"handshake_timeout"`
}

// AuthConfig selects where the bearer token lives.
type AuthConfig struct {
	Token       string   `json:"token,omitempty"` // session token
	TokenFile   string   `json:"token_file,omitempty"`
	RedisAddr   string   `json:"redis_addr,omitempty"`
	RedisPrefix string   `json:"redis_prefix,omitempty"`
	RedisTTL    Duration `json:"redis_ttl,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig configures the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port,omitempty"`
	Path string `json:"path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Timeout:           Duration(30 * time.Second),
			CacheTTL:          Duration(5 * time.Minute),
			RetryAttempts:     1,
			RetryInitialDelay: Duration(2 * time.Second),
			RetryMaxDelay:     Duration(60 * time.Second),
			RetryMultiplier:   2,
		},
		Stream: StreamConfig{
			ReconnectDelay:       Duration(3 * time.Second),
			MaxReconnectAttempts: 5,
			PauseBuffer:          10000,
			HandshakeTimeout:     Duration(10 * time.Second),
		},
		Auth: AuthConfig{
			RedisPrefix: "mailstream:auth",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	var problems []string

	if c.API.BaseURL != "" {
		if err := validateURL(c.API.BaseURL, "http", "https"); err != nil {
			problems = append(problems, "api.base_url: "+err.Error())
		}
	}
	if c.Stream.URL != "" {
		if err := validateURL(c.Stream.URL, "ws", "wss"); err != nil {
			problems = append(problems, "stream.url: "+err.Error())
		}
	}
	if c.API.RetryAttempts < 1 {
		problems = append(problems, "api.retry_attempts must be at least 1")
	}
	if c.API.RetryMultiplier < 1 {
		problems = append(problems, "api.retry_multiplier must be at least 1")
	}
	if c.API.RetryMaxDelay > 0 && c.API.RetryMaxDelay < c.API.RetryInitialDelay {
		problems = append(problems, "api.retry_max_delay must not be below api.retry_initial_delay")
	}
	if c.API.RateLimit < 0 {
		problems = append(problems, "api.rate_limit must not be negative")
	}
	if c.Stream.MaxReconnectAttempts < 0 {
		problems = append(problems, "stream.max_reconnect_attempts must not be negative")
	}
	if c.Stream.PauseBuffer < 1 {
		problems = append(problems, "stream.pause_buffer must be at least 1")
	}
	if c.Stream.ReconnectDelay < 0 {
		problems = append(problems, "stream.reconnect_delay must not be negative")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		problems = append(problems, fmt.Sprintf("metrics.port %d out of range", c.Metrics.Port))
	}
	if c.Metrics.Port > 0 && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, "metrics.path must start with /")
	}
	if err := validateTLSVersion(c.TLS.MinVersion); err != nil {
		problems = append(problems, err.Error())
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		problems = append(problems, "tls.cert_file and tls.key_file must be set together")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not json or text", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "validate configuration")
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %s", u.Scheme, strings.Join(schemes, ", "))
}

func validateTLSVersion(version string) error {
	switch version {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("tls.min_version %q must be 1.2 or 1.3", version)
	}
}

// String returns a JSON representation of the config with secrets masked.
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Auth.Token != "" {
		clone.Auth.Token = "***"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}
