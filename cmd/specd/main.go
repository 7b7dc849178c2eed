// Specd is the product spec daemon.
//
// It serves the conversation API over HTTP, publishes session events to
// NATS when enabled, and exposes Prometheus metrics. In mcp mode it serves
// the same conversation as MCP tools over stdio instead.
//
// Configuration is loaded from ~/.config/specd/config.yaml and SPECD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP daemon
//	specd
//
//	# Serve MCP tools over stdio
//	specd mcp
//
//	# Configure via environment
//	SPECD_SERVER_HTTP_PORT=9191 SPECD_LLM_API_KEY=... specd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/services"
	"github.com/fyrsmithlabs/specd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath = flag.String("config", "", "path to config.yaml (default ~/.config/specd/config.yaml)")

func main() {
	flag.Parse()
	args := flag.Args()

	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "serve", "mcp":
	case "version":
		printVersion()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  specd [-config file]         Start the HTTP daemon\n")
		fmt.Fprintf(os.Stderr, "  specd [-config file] mcp     Serve MCP tools over stdio\n")
		fmt.Fprintf(os.Stderr, "  specd version                Show version information\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if mode == "mcp" {
		err = runStdioServer(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("specd %s: %v", mode, err)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("specd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Startup order:
//  1. Telemetry and logger
//  2. Services (model client, agents, orchestrator, sessions, events)
//  3. Session eviction loop
//  4. HTTP server, shut down gracefully on cancellation
func run(ctx context.Context, cfg *config.Config) error {
	tel, logger, err := initObservability(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting specd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("conversation_model", cfg.LLM.ModelConversation),
		zap.Bool("events", cfg.Events.Enabled))

	if !cfg.LLM.APIKey.IsSet() {
		logger.Warn(ctx, "no llm api key configured, turns will fail until SPECD_LLM_API_KEY is set")
	}

	reg, err := services.Build(cfg, services.Options{Logger: logger, Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer reg.Close()

	go reg.Sessions().Run(ctx)

	srv, err := http.NewServer(reg.Sessions(), logger, &http.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Gatherer: prometheus.DefaultGatherer,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutdown signal received", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// initObservability starts telemetry and builds the logger. In stdio mode
// logs go to stderr.
func initObservability(ctx context.Context, cfg *config.Config, stdio bool) (*telemetry.Telemetry, *logging.Logger, error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid logging config: %w", err)
	}
	if stdio {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return tel, logger, nil
}
