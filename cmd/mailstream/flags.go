package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	MetricsPort     int
	Get             string
	Tail            string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("MAILSTREAM_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: MAILSTREAM_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("MAILSTREAM_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: MAILSTREAM_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MAILSTREAM_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: MAILSTREAM_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MAILSTREAM_LOG_FORMAT", ""),
		"Log format: json, text (env: MAILSTREAM_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("MAILSTREAM_DEBUG", false),
		"Enable debug logging (env: MAILSTREAM_DEBUG)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("MAILSTREAM_METRICS_PORT", 0),
		"Serve Prometheus metrics and /health on this port, 0 to disable (env: MAILSTREAM_METRICS_PORT)")

	fs.StringVar(&cfg.Get, "get", "", "Issue a GET for this API path and print the JSON body")
	fs.StringVar(&cfg.Tail, "tail", "", "Follow this ws:// or wss:// stream and print each event")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MAILSTREAM_SHUTDOWN_TIMEOUT", 5*time.Second),
		"Graceful shutdown timeout (env: MAILSTREAM_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if cfg.ShowHelp {
		fs.SetOutput(os.Stderr)
		printDetailedHelp(fs)
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.Tail != "" && !strings.HasPrefix(cfg.Tail, "ws://") && !strings.HasPrefix(cfg.Tail, "wss://") {
		return fmt.Errorf("tail URL must use ws:// or wss://: %s", cfg.Tail)
	}

	if !cfg.Validate && cfg.Get == "" && cfg.Tail == "" {
		return fmt.Errorf("nothing to do: pass -get, -tail or -validate")
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - MailerSuite API and live stream client

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Fetch campaigns once, using the response cache and bearer token from config
  %s -config=mailstream.yaml -get=/campaigns

  # Follow the live send log; send SIGUSR1 to pause or resume output
  %s -tail=wss://api.example.com/ws/logs -log-format=text

  # Validate configuration only
  %s -config=mailstream.yaml -validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
