package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/session"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// MockSessions is a mock implementation of Sessions
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Create(ctx context.Context) (*session.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Snapshot), args.Error(1)
}

func (m *MockSessions) Send(ctx context.Context, id, text string, step orchestrator.StepFunc) (*session.TurnResult, error) {
	args := m.Called(ctx, id, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.TurnResult), args.Error(1)
}

func (m *MockSessions) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Snapshot), args.Error(1)
}

func (m *MockSessions) Spec(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockSessions) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func setupTestServer(t *testing.T, sessions Sessions) *Server {
	t.Helper()
	server, err := NewServer(sessions, logging.NewNop(), &Config{Host: "localhost", Port: 9090, Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return server
}

func snapshot(id string, stage workflow.Stage) *session.Snapshot {
	state := workflow.NewConversationState(3)
	state.Stage = stage
	return &session.Snapshot{ID: id, Stage: stage, State: state}
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&MockSessions{}, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
		assert.NotNil(t, server.config.Gatherer)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&MockSessions{}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when sessions is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, &MockSessions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleCreateAndGet(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Create", mock.Anything).Return(snapshot("s-1", workflow.StageDiscovery), nil)
	sessions.On("Get", mock.Anything, "s-1").Return(snapshot("s-1", workflow.StageScoping), nil)
	server := setupTestServer(t, sessions)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "s-1", created.ID)
	assert.Equal(t, workflow.StageDiscovery, created.Stage)

	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, workflow.StageScoping, got.Stage)
}

func TestHandleMessage(t *testing.T) {
	t.Run("returns the reply", func(t *testing.T) {
		sessions := &MockSessions{}
		sessions.On("Send", mock.Anything, "s-1", "an idea").Return(&session.TurnResult{
			Reply:         "Tell me more?",
			Stage:         workflow.StageDiscovery,
			PreviousStage: workflow.StageDiscovery,
		}, nil)
		server := setupTestServer(t, sessions)

		body, _ := json.Marshal(MessageRequest{Message: "an idea"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/messages", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Tell me more?", resp.Reply)
		assert.Equal(t, []string{}, resp.Steps)
		assert.False(t, resp.SpecReady)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		server := setupTestServer(t, &MockSessions{})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/messages", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unknown session", err: session.ErrNotFound, status: http.StatusNotFound},
		{name: "empty message", err: session.ErrEmptyMessage, status: http.StatusBadRequest},
		{name: "capacity", err: session.ErrCapacity, status: http.StatusServiceUnavailable},
		{name: "missing credential", err: &llm.GenerationError{Err: llm.ErrMissingCredential}, status: http.StatusServiceUnavailable},
		{name: "model failure", err: &llm.GenerationError{Err: llm.ErrEmptyResponse}, status: http.StatusBadGateway},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessions{}
			sessions.On("Send", mock.Anything, "s-1", "hi").Return(nil, tt.err)
			server := setupTestServer(t, sessions)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/messages", strings.NewReader(`{"message":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotContains(t, resp.Error, "boom")
		})
	}
}

func TestHandleSpec(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Spec", mock.Anything, "done").Return("# Product Spec: X", nil)
	sessions.On("Spec", mock.Anything, "early").Return("", session.ErrSpecNotReady)
	server := setupTestServer(t, sessions)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/done/spec", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Product Spec: X", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), SpecFilename)

	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/early/spec", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleDelete(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Delete", mock.Anything, "s-1").Return(nil)
	sessions.On("Delete", mock.Anything, "gone").Return(session.ErrNotFound)
	server := setupTestServer(t, sessions)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/gone", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedSessionID(t *testing.T) {
	sessions := &MockSessions{}
	server := setupTestServer(t, sessions)

	for _, target := range []string{
		"/api/v1/sessions/bad.id",
		"/api/v1/sessions/bad.id/spec",
	} {
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	sessions.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "Spec", mock.Anything, mock.Anything)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	session.NewMetrics(reg)
	server, err := NewServer(&MockSessions{}, logging.NewNop(), &Config{Gatherer: reg})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "specd_sessions_active")
}
