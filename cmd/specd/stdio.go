package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/mcp"
	"github.com/fyrsmithlabs/specd/internal/services"
)

// runStdioServer serves the spec session tools over stdio for MCP clients.
//
// Sessions live in this process only. stdout carries the MCP protocol, so
// every log line goes to stderr.
func runStdioServer(ctx context.Context, cfg *config.Config) error {
	tel, logger, err := initObservability(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting specd in MCP stdio mode", zap.String("version", version))

	reg, err := services.Build(cfg, services.Options{Logger: logger, Registerer: prometheus.NewRegistry()})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer reg.Close()

	go reg.Sessions().Run(ctx)

	server, err := mcp.NewServer(&mcp.Config{
		Name:    "specd",
		Version: version,
		Logger:  logger,
		Metrics: mcp.NewMetrics(logger),
	}, reg.Sessions())
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "specd stdio mode started (%s)\n", version)

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	logger.Info(context.Background(), "stdio MCP server shutdown complete")
	return nil
}
