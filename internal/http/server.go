// Package http exposes the session service over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/sanitize"
	"github.com/fyrsmithlabs/specd/internal/session"
)

// SpecFilename is the download name of a finished spec.
const SpecFilename = "product-spec.md"

// Sessions is the session service the API serves.
type Sessions interface {
	Create(ctx context.Context) (*session.Snapshot, error)
	Send(ctx context.Context, id, text string, step orchestrator.StepFunc) (*session.TurnResult, error)
	Get(ctx context.Context, id string) (*session.Snapshot, error)
	Spec(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

// Server provides HTTP endpoints for specd.
type Server struct {
	echo     *echo.Echo
	sessions Sessions
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Gatherer backs GET /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server.
func NewServer(sessions Sessions, logger *logging.Logger, cfg *Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(NewRequestMetrics(logger).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		sessions: sessions,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.handleCreate)
	v1.GET("/sessions/:id", s.handleGet, validSessionID)
	v1.DELETE("/sessions/:id", s.handleDelete, validSessionID)
	v1.POST("/sessions/:id/messages", s.handleMessage, validSessionID)
	v1.GET("/sessions/:id/spec", s.handleSpec, validSessionID)
}

// validSessionID rejects malformed :id parameters before they reach the
// session service.
func validSessionID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := sanitize.ValidateSessionID(c.Param("id")); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
		}
		return next(c)
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCreate(c echo.Context) error {
	snap, err := s.sessions.Create(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse(snap))
}

func (s *Server) handleGet(c echo.Context) error {
	snap, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(snap))
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid message request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.sessions.Send(c.Request().Context(), c.Param("id"), req.Message, nil)
	if err != nil {
		return s.fail(c, err)
	}
	steps := res.Steps
	if steps == nil {
		steps = []string{}
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Reply:         res.Reply,
		Stage:         res.Stage,
		PreviousStage: res.PreviousStage,
		Steps:         steps,
		Skipped:       res.Skipped,
		SpecReady:     res.Spec != "",
		Completeness:  res.Completeness,
	})
}

func (s *Server) handleSpec(c echo.Context) error {
	spec, err := s.sessions.Spec(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", SpecFilename))
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(spec))
}

// fail maps service errors to status codes.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "message field is required"
	case errors.Is(err, session.ErrSpecNotReady):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrCapacity):
		status, msg = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, llm.ErrMissingCredential):
		status, msg = http.StatusServiceUnavailable, "language model credentials are not configured"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "turn timed out"
	default:
		var genErr *llm.GenerationError
		if errors.As(err, &genErr) {
			status, msg = http.StatusBadGateway, "language model request failed, please try again"
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func toSessionResponse(snap *session.Snapshot) SessionResponse {
	st := snap.State
	return SessionResponse{
		ID:                snap.ID,
		Stage:             snap.Stage,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
		UserTurns:         snap.UserTurns,
		Completeness:      snap.Completeness,
		SpecReady:         snap.SpecReady,
		NegotiationRounds: st.NegotiationRounds,
		Messages:          st.Messages,
		Discovery:         st.Discovery,
		Scoping:           st.Scoping,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
