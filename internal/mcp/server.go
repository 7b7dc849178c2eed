package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/session"
)

// Sessions is the session service behind the tools.
type Sessions interface {
	Create(ctx context.Context) (*session.Snapshot, error)
	Send(ctx context.Context, id, text string, step orchestrator.StepFunc) (*session.TurnResult, error)
	Get(ctx context.Context, id string) (*session.Snapshot, error)
	Spec(ctx context.Context, id string) (string, error)
}

// Server is an MCP server exposing spec sessions as tools.
type Server struct {
	mcp      *mcp.Server
	sessions Sessions
	metrics  *Metrics
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "specd")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. Must not write to stdout, which
	// carries the protocol.
	Logger *logging.Logger

	// Metrics records tool invocations. Defaults to the global meter.
	Metrics *Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "specd",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates an MCP server backed by sessions.
func NewServer(cfg *Config, sessions Sessions) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if cfg.Name == "" {
		cfg.Name = "specd"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(logger)
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.Named("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single client over transport. Used for in-process
// clients and tests.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
