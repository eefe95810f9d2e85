// Command fdalens is the main entry point for the fdalens MCP server,
// which exposes FDA drug safety data (adverse events, labeling, recalls)
// from the openFDA API as MCP tools, resources, and prompts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/fdalens/internal/config"
	"github.com/MrWong99/fdalens/internal/health"
	"github.com/MrWong99/fdalens/internal/observe"
	"github.com/MrWong99/fdalens/internal/server"
	"github.com/MrWong99/fdalens/pkg/openfda"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	logLevel := flag.String("log-level", "", "log verbosity: debug, info, warn, error (overrides config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "fdalens: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "fdalens: %v\n", err)
			}
			return 1
		}
	} else {
		cfg = config.Default()
	}

	if *logLevel != "" {
		lvl := config.LogLevel(*logLevel)
		if !lvl.IsValid() {
			fmt.Fprintf(os.Stderr, "fdalens: invalid --log-level %q (want debug, info, warn, or error)\n", *logLevel)
			return 1
		}
		cfg.Server.LogLevel = lvl
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Logs always go to stderr: in stdio mode stdout carries the MCP stream.
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fdalens starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "fdalens",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── openFDA client ────────────────────────────────────────────────────────
	fdaOpts := []openfda.Option{openfda.WithMetrics(metrics)}
	if cfg.FDA.BaseURL != "" {
		fdaOpts = append(fdaOpts, openfda.WithBaseURL(cfg.FDA.BaseURL))
	}
	if cfg.FDA.APIKey != "" {
		fdaOpts = append(fdaOpts, openfda.WithAPIKey(cfg.FDA.APIKey))
	}
	if cfg.FDA.Timeout > 0 {
		fdaOpts = append(fdaOpts, openfda.WithTimeout(time.Duration(cfg.FDA.Timeout)))
	}
	if cfg.FDA.MaxAttempts > 0 {
		fdaOpts = append(fdaOpts, openfda.WithMaxAttempts(cfg.FDA.MaxAttempts))
	}
	fda := openfda.New(fdaOpts...)

	srv := server.New(fda, server.WithMetrics(metrics))

	// ── Serve ─────────────────────────────────────────────────────────────────
	switch cfg.Server.Transport {
	case config.TransportStreamableHTTP:
		err = serveHTTP(ctx, cfg, srv, fda, metrics)
	default:
		slog.Info("serving MCP over stdio")
		err = srv.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// serveHTTP runs the streamable-HTTP transport together with the health
// and metrics endpoints, shutting down gracefully when ctx is cancelled.
func serveHTTP(ctx context.Context, cfg *config.Config, srv *server.Server, fda *openfda.Client, metrics *observe.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(health.Checker{
		Name:  "openfda",
		Check: fda.Ping,
	}).Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("serving MCP over streamable-http", "listen_addr", cfg.Server.ListenAddr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
