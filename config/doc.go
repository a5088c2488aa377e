// Package config loads client configuration.
//
// A configuration is built in layers: Default(), then each file added with
// AddLayer (JSON or YAML, chosen by extension), then MAILSTREAM_* environment
// variables. Each file is checked against an embedded JSON schema before it is
// merged, so unknown keys and wrongly typed values are rejected with the
// offending field named. Validate then applies semantic checks such as URL
// schemes and retry bounds.
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/mailstream/config.yaml")
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//
// Durations accept either Go duration strings ("3s", "5m") or integer
// nanoseconds.
//
// Environment overrides:
//
//	MAILSTREAM_API_BASE_URL          api.base_url
//	MAILSTREAM_API_TIMEOUT           api.timeout
//	MAILSTREAM_CACHE_TTL             api.cache_ttl
//	MAILSTREAM_RETRY_ATTEMPTS        api.retry_attempts
//	MAILSTREAM_STREAM_URL            stream.url
//	MAILSTREAM_RECONNECT_DELAY       stream.reconnect_delay
//	MAILSTREAM_MAX_RECONNECT_ATTEMPTS stream.max_reconnect_attempts
//	MAILSTREAM_PAUSE_BUFFER          stream.pause_buffer
//	MAILSTREAM_TOKEN                 auth.token
//	MAILSTREAM_TOKEN_FILE            auth.token_file
//	MAILSTREAM_REDIS_ADDR            auth.redis_addr
//	MAILSTREAM_LOG_LEVEL             log.level
//	MAILSTREAM_LOG_FORMAT            log.format
//	MAILSTREAM_METRICS_PORT          metrics.port
package config
