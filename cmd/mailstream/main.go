// Package main implements mailstream, a command-line client for the
// MailerSuite API. It fetches API resources through the request
// orchestrator and follows live WebSocket streams.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MailerSuite/Final-sub009/apiclient"
	"github.com/MailerSuite/Final-sub009/auth"
	"github.com/MailerSuite/Final-sub009/config"
	"github.com/MailerSuite/Final-sub009/health"
	"github.com/MailerSuite/Final-sub009/metric"
	"github.com/MailerSuite/Final-sub009/streamclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mailstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// deps are shared by the fetch and tail commands.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor
	tokens   auth.Store
	stdout   io.Writer
}

func run(args []string, stdout io.Writer) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting mailstream", "version", Version, "build_time", BuildTime, "config_path", cliCfg.ConfigPath)

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, closeTokens, err := auth.FromConfig(signalCtx, cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer func() {
		if err := closeTokens(); err != nil {
			logger.Warn("Failed to close token store", "error", err)
		}
	}()

	d := &deps{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(),
		tokens:   tokens,
		stdout:   stdout,
	}

	runCtx, cancel := context.WithCancel(signalCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Port > 0 {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, d.registry)
		server.SetHealthSource(func() health.Status { return d.monitor.AggregateHealth(appName) })
		g.Go(func() error { return server.Start(gctx) })
		logger.Info("Serving metrics", "address", server.Address())
	}

	g.Go(func() error {
		defer cancel()
		if cliCfg.Get != "" {
			if err := fetch(gctx, d, cliCfg.Get); err != nil {
				return err
			}
		}
		if cliCfg.Tail != "" {
			return tail(gctx, d, cliCfg.Tail, cliCfg.ShutdownTimeout)
		}
		return nil
	})

	return g.Wait()
}

// loadConfig merges defaults, the optional config file, environment
// overrides and then command-line flags.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(false)
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if cliCfg.MetricsPort > 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// fetch issues one orchestrated GET and prints the body.
func fetch(ctx context.Context, d *deps, path string) error {
	client, err := apiclient.NewFromConfig(d.cfg,
		apiclient.WithTokenStore(d.tokens),
		apiclient.WithLogger(d.logger),
		apiclient.WithMetrics(d.registry),
		apiclient.WithNotifier(apiclient.NewLogNotifier(d.logger)),
		apiclient.WithUnauthorizedHandler(func(context.Context, error) {
			d.logger.Warn("Session expired; store a new token and retry")
		}),
	)
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}

	resp, err := client.Request(ctx, http.MethodGet, path, nil, apiclient.WithCache(), apiclient.WithNotifyOnError())
	if err != nil {
		d.monitor.Update("api", health.NewUnhealthy("api", err.Error()))
		return fmt.Errorf("GET %s: %w", path, err)
	}
	d.monitor.Update("api", health.NewHealthy("api", fmt.Sprintf("GET %s -> %d", path, resp.StatusCode)))

	return writeBody(d.stdout, resp.Body)
}

// tail follows a stream until it ends, the context is cancelled or the
// reconnect budget runs out.
func tail(ctx context.Context, d *deps, url string, shutdownTimeout time.Duration) error {
	opts, err := streamclient.OptionsFromConfig(d.cfg)
	if err != nil {
		return fmt.Errorf("stream options: %w", err)
	}
	opts = append(opts,
		streamclient.WithTokenStore(d.tokens),
		streamclient.WithLogger(d.logger),
		streamclient.WithMetrics(d.registry),
	)

	conn, err := streamclient.Connect(ctx, url, streamclient.Handlers{
		OnMessage: func(ev streamclient.Event) {
			_, _ = fmt.Fprintf(d.stdout, "%s\n", ev.Data)
		},
		OnStateChange: func(from, to streamclient.State) {
			d.logger.Info("Stream state changed", "from", from.String(), "to", to.String())
		},
	}, opts...)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	d.monitor.Register("stream", conn.Health)
	defer d.monitor.Remove("stream")

	toggle := make(chan os.Signal, 1)
	if len(pauseSignals) > 0 {
		signal.Notify(toggle, pauseSignals...)
		defer signal.Stop(toggle)
	}

	for {
		select {
		case <-toggle:
			if conn.Paused() {
				conn.Resume()
				d.logger.Info("Output resumed")
			} else {
				conn.Pause()
				d.logger.Info("Output paused, buffering events")
			}
		case <-conn.Done():
			if conn.State() == streamclient.StateExhausted {
				return fmt.Errorf("tail %s: %w", url, conn.Err())
			}
			return nil
		case <-ctx.Done():
			if err := conn.Close(); err != nil {
				d.logger.Warn("Close failed", "error", err)
			}
			select {
			case <-conn.Done():
			case <-time.After(shutdownTimeout):
				d.logger.Warn("Stream did not close in time", "timeout", shutdownTimeout)
			}
			return nil
		}
	}
}

// writeBody pretty-prints JSON and writes anything else verbatim.
func writeBody(w io.Writer, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		out.Reset()
		out.Write(body)
	}
	if out.Len() > 0 && out.Bytes()[out.Len()-1] != '\n' {
		out.WriteByte('\n')
	}
	_, err := w.Write(out.Bytes())
	return err
}
