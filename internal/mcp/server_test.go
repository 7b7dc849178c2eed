package mcp

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/sanitize"
	"github.com/fyrsmithlabs/specd/internal/session"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// MockSessions is a mock implementation of Sessions
type MockSessions struct {
	mock.Mock
	steps []string
}

func (m *MockSessions) Create(ctx context.Context) (*session.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Snapshot), args.Error(1)
}

func (m *MockSessions) Send(ctx context.Context, id, text string, step orchestrator.StepFunc) (*session.TurnResult, error) {
	for _, s := range m.steps {
		step(s)
	}
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

func newTestServer(t *testing.T, sessions Sessions) *Server {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	s, err := NewServer(&Config{
		Logger:  logging.NewNop(),
		Metrics: newMetrics(mp.Meter(instrumentationName), nil),
	}, sessions)
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("requires sessions", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session service is required")
	})

	t.Run("fills defaults", func(t *testing.T) {
		cfg := &Config{}
		s, err := NewServer(cfg, &MockSessions{})
		require.NoError(t, err)
		assert.Equal(t, "specd", cfg.Name)
		assert.Equal(t, "dev", cfg.Version)
		assert.NotNil(t, s.metrics)
	})
}

func TestServer_Start(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Create", mock.Anything).Return(&session.Snapshot{ID: "sess-1", Stage: workflow.StageDiscovery}, nil)
	s := newTestServer(t, sessions)

	out, err := s.start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, workflow.StageDiscovery, out.Stage)
	assert.Contains(t, out.Hint, toolSend)
	sessions.AssertExpectations(t)
}

func TestServer_StartCapacity(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Create", mock.Anything).Return(nil, session.ErrCapacity)
	s := newTestServer(t, sessions)

	_, err := s.start(context.Background())
	assert.ErrorIs(t, err, session.ErrCapacity)
}

func TestServer_Send(t *testing.T) {
	tests := []struct {
		name    string
		input   sessionSendInput
		wantErr error
		errText string
	}{
		{name: "missing session id", input: sessionSendInput{Message: "hi"}, errText: "session_id is required"},
		{name: "malformed session id", input: sessionSendInput{SessionID: "../etc", Message: "hi"}, wantErr: sanitize.ErrInvalidSessionID},
		{name: "blank message", input: sessionSendInput{SessionID: "sess-1", Message: "  "}, wantErr: session.ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessions{}
			s := newTestServer(t, sessions)

			_, err := s.send(context.Background(), tt.input)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
			sessions.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("handoff reports steps and stage", func(t *testing.T) {
		sessions := &MockSessions{steps: []string{"Analyzing your idea for scope..."}}
		sessions.On("Send", mock.Anything, "sess-1", "yes that's right").Return(&session.TurnResult{
			Reply:         "Great, I'm handing off to the Scoping Agent now.",
			Stage:         workflow.StageScoping,
			PreviousStage: workflow.StageDiscovery,
			Completeness:  workflow.Completeness{Score: 0.875, Filled: 7, Complete: true},
		}, nil)
		s := newTestServer(t, sessions)

		out, err := s.send(context.Background(), sessionSendInput{SessionID: "sess-1", Message: "yes that's right"})
		require.NoError(t, err)
		assert.Equal(t, workflow.StageScoping, out.Stage)
		assert.Equal(t, workflow.StageDiscovery, out.PreviousStage)
		assert.Equal(t, []string{"Analyzing your idea for scope..."}, out.Steps)
		assert.InDelta(t, 0.875, out.Completeness, 1e-9)
		assert.False(t, out.SpecReady)
	})

	t.Run("done marks spec ready", func(t *testing.T) {
		sessions := &MockSessions{}
		sessions.On("Send", mock.Anything, "sess-1", "sounds good").Return(&session.TurnResult{
			Reply:         "Here's your product spec.",
			Stage:         workflow.StageDone,
			PreviousStage: workflow.StageScoping,
			Steps:         []string{"Writing your spec..."},
			Spec:          "# Spec",
		}, nil)
		s := newTestServer(t, sessions)

		out, err := s.send(context.Background(), sessionSendInput{SessionID: "sess-1", Message: "sounds good"})
		require.NoError(t, err)
		assert.True(t, out.SpecReady)
		assert.Equal(t, []string{"Writing your spec..."}, out.Steps)
	})

	t.Run("unknown session", func(t *testing.T) {
		sessions := &MockSessions{}
		sessions.On("Send", mock.Anything, "nope", "hello").Return(nil, session.ErrNotFound)
		s := newTestServer(t, sessions)

		_, err := s.send(context.Background(), sessionSendInput{SessionID: "nope", Message: "hello"})
		assert.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestServer_Status(t *testing.T) {
	state := workflow.NewConversationState(3)
	state.Stage = workflow.StageScoping
	state.Discovery.TargetUser = "freelance illustrators"
	state.Scoping = &workflow.ScopingOutput{CoreUserFlow: "upload, invoice, get paid"}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sessions := &MockSessions{}
	sessions.On("Get", mock.Anything, "sess-1").Return(&session.Snapshot{
		ID:           "sess-1",
		Stage:        workflow.StageScoping,
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Minute),
		UserTurns:    5,
		Completeness: workflow.Completeness{Score: 0.75, Filled: 6, Gaps: []workflow.Field{workflow.FieldWhyNow, workflow.FieldConstraints}},
		State:        state,
	}, nil)
	s := newTestServer(t, sessions)

	out, err := s.status(context.Background(), sessionIDInput{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageScoping, out.Stage)
	assert.Equal(t, 5, out.UserTurns)
	assert.Equal(t, []workflow.Field{workflow.FieldWhyNow, workflow.FieldConstraints}, out.Gaps)
	assert.Equal(t, "2026-03-01T12:00:00Z", out.CreatedAt)
	require.NotNil(t, out.Discovery)
	assert.Equal(t, "freelance illustrators", out.Discovery.TargetUser)
	require.NotNil(t, out.Scoping)
	assert.Equal(t, "upload, invoice, get paid", out.Scoping.CoreUserFlow)
}

func TestServer_Document(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		sessions := &MockSessions{}
		sessions.On("Spec", mock.Anything, "sess-1").Return("", session.ErrSpecNotReady)
		s := newTestServer(t, sessions)

		_, err := s.document(context.Background(), sessionIDInput{SessionID: "sess-1"})
		assert.ErrorIs(t, err, session.ErrSpecNotReady)
	})

	t.Run("ready", func(t *testing.T) {
		sessions := &MockSessions{}
		sessions.On("Spec", mock.Anything, "sess-1").Return("# Invoice Chaser\n", nil)
		s := newTestServer(t, sessions)

		out, err := s.document(context.Background(), sessionIDInput{SessionID: "sess-1"})
		require.NoError(t, err)
		assert.Equal(t, "# Invoice Chaser\n", out.Markdown)
	})
}

func connectClient(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServer_ToolsOverTransport(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("Create", mock.Anything).Return(&session.Snapshot{ID: "sess-1", Stage: workflow.StageDiscovery}, nil)
	sessions.On("Spec", mock.Anything, "sess-1").Return("", session.ErrSpecNotReady)
	cs := connectClient(t, newTestServer(t, sessions))
	ctx := context.Background()

	listed, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{toolDocument, toolSend, toolStart, toolStatus}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: toolStart, Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	structured, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "expected structured output, got %T", res.StructuredContent)
	assert.Equal(t, "sess-1", structured["session_id"])
	assert.Equal(t, "discovery", structured["stage"])

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: toolDocument, Arguments: map[string]any{"session_id": "sess-1"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
