package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/sanitize"
	"github.com/fyrsmithlabs/specd/internal/session"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const (
	toolStart    = "spec_session_start"
	toolSend     = "spec_session_send"
	toolStatus   = "spec_session_status"
	toolDocument = "spec_session_document"
)

type sessionStartInput struct{}

type sessionStartOutput struct {
	SessionID string         `json:"session_id" jsonschema:"Identifier to pass to the other spec_session tools"`
	Stage     workflow.Stage `json:"stage" jsonschema:"Current stage (discovery, scoping, spec, done)"`
	Hint      string         `json:"hint"`
}

type sessionSendInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier from spec_session_start"`
	Message   string `json:"message" jsonschema:"The founder's next message"`
}

type sessionSendOutput struct {
	Reply         string         `json:"reply"`
	Stage         workflow.Stage `json:"stage"`
	PreviousStage workflow.Stage `json:"previous_stage"`
	Steps         []string       `json:"steps,omitempty"`
	Skipped       bool           `json:"skipped"`
	SpecReady     bool           `json:"spec_ready"`
	Completeness  float64        `json:"completeness" jsonschema:"Fraction of discovery fields filled"`
	Redactions    []string       `json:"redactions,omitempty" jsonschema:"Kinds of secrets removed from the message before it was stored"`
}

type sessionIDInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier from spec_session_start"`
}

type sessionStatusOutput struct {
	SessionID    string                     `json:"session_id"`
	Stage        workflow.Stage             `json:"stage"`
	UserTurns    int                        `json:"user_turns"`
	Completeness float64                    `json:"completeness"`
	Gaps         []workflow.Field           `json:"gaps,omitempty" jsonschema:"Discovery fields still empty"`
	SpecReady    bool                       `json:"spec_ready"`
	CreatedAt    string                     `json:"created_at"`
	UpdatedAt    string                     `json:"updated_at"`
	Discovery    *workflow.DiscoverySummary `json:"discovery,omitempty"`
	Scoping      *workflow.ScopingOutput    `json:"scoping,omitempty"`
}

type sessionDocumentOutput struct {
	SessionID string `json:"session_id"`
	Markdown  string `json:"markdown"`
}

const startHint = "Send the founder's idea with spec_session_send. Discovery asks one question per reply; " +
	"keep relaying answers until the stage reaches done, then fetch the spec with spec_session_document."

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolStart,
		Description: "Start a new product spec session. Returns a session_id for the other spec_session tools.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionStartInput) (*mcp.CallToolResult, sessionStartOutput, error) {
		var out sessionStartOutput
		err := s.instrument(ctx, toolStart, func() error {
			var err error
			out, err = s.start(ctx)
			return err
		})
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolSend,
		Description: "Send the founder's next message to a spec session and get the agent's reply. " +
			"Stages advance automatically from discovery to scoping to spec to done.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionSendInput) (*mcp.CallToolResult, sessionSendOutput, error) {
		var out sessionSendOutput
		err := s.instrument(ctx, toolSend, func() error {
			var err error
			out, err = s.send(ctx, args)
			return err
		})
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolStatus,
		Description: "Show a spec session's stage, discovery completeness and what has been extracted so far.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionIDInput) (*mcp.CallToolResult, sessionStatusOutput, error) {
		var out sessionStatusOutput
		err := s.instrument(ctx, toolStatus, func() error {
			var err error
			out, err = s.status(ctx, args)
			return err
		})
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolDocument,
		Description: "Fetch the finished product spec as Markdown. Fails until the session reaches the done stage.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionIDInput) (*mcp.CallToolResult, sessionDocumentOutput, error) {
		var out sessionDocumentOutput
		err := s.instrument(ctx, toolDocument, func() error {
			var err error
			out, err = s.document(ctx, args)
			return err
		})
		return nil, out, err
	})
}

// instrument records metrics around one tool call.
func (s *Server) instrument(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	s.metrics.IncrementActive(ctx, name)
	err := fn()
	s.metrics.DecrementActive(ctx, name)
	s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
	if err != nil {
		s.logger.Warn(ctx, "tool call failed", zap.String("tool", name), zap.Error(err))
	}
	return err
}

func (s *Server) start(ctx context.Context) (sessionStartOutput, error) {
	snap, err := s.sessions.Create(ctx)
	if err != nil {
		return sessionStartOutput{}, fmt.Errorf("start session: %w", err)
	}
	return sessionStartOutput{SessionID: snap.ID, Stage: snap.Stage, Hint: startHint}, nil
}

func (s *Server) send(ctx context.Context, args sessionSendInput) (sessionSendOutput, error) {
	if strings.TrimSpace(args.SessionID) == "" {
		return sessionSendOutput{}, fmt.Errorf("invalid input: session_id is required")
	}
	if err := sanitize.ValidateSessionID(args.SessionID); err != nil {
		return sessionSendOutput{}, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(args.Message) == "" {
		return sessionSendOutput{}, fmt.Errorf("invalid input: %w", session.ErrEmptyMessage)
	}

	var steps []string
	res, err := s.sessions.Send(ctx, args.SessionID, args.Message, func(step string) {
		steps = append(steps, step)
		s.logger.Debug(ctx, "handoff step", zap.String("step", step))
	})
	if err != nil {
		return sessionSendOutput{}, fmt.Errorf("send message: %w", err)
	}
	if len(res.Steps) > 0 {
		steps = res.Steps
	}
	return sessionSendOutput{
		Reply:         res.Reply,
		Stage:         res.Stage,
		PreviousStage: res.PreviousStage,
		Steps:         steps,
		Skipped:       res.Skipped,
		SpecReady:     res.Stage == workflow.StageDone,
		Completeness:  res.Completeness.Score,
		Redactions:    res.Redactions,
	}, nil
}

func (s *Server) status(ctx context.Context, args sessionIDInput) (sessionStatusOutput, error) {
	if err := sanitize.ValidateSessionID(args.SessionID); err != nil {
		return sessionStatusOutput{}, fmt.Errorf("invalid input: %w", err)
	}
	snap, err := s.sessions.Get(ctx, args.SessionID)
	if err != nil {
		return sessionStatusOutput{}, fmt.Errorf("get session: %w", err)
	}
	ctx = logging.WithSessionID(ctx, snap.ID)
	s.logger.Debug(ctx, "session status", zap.String("stage", string(snap.Stage)))

	out := sessionStatusOutput{
		SessionID:    snap.ID,
		Stage:        snap.Stage,
		UserTurns:    snap.UserTurns,
		Completeness: snap.Completeness.Score,
		Gaps:         snap.Completeness.Gaps,
		SpecReady:    snap.SpecReady,
		CreatedAt:    snap.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    snap.UpdatedAt.Format(time.RFC3339),
	}
	if snap.State != nil {
		discovery := snap.State.Discovery
		out.Discovery = &discovery
		out.Scoping = snap.State.Scoping
	}
	return out, nil
}

func (s *Server) document(ctx context.Context, args sessionIDInput) (sessionDocumentOutput, error) {
	if err := sanitize.ValidateSessionID(args.SessionID); err != nil {
		return sessionDocumentOutput{}, fmt.Errorf("invalid input: %w", err)
	}
	spec, err := s.sessions.Spec(ctx, args.SessionID)
	if err != nil {
		return sessionDocumentOutput{}, fmt.Errorf("get spec: %w", err)
	}
	return sessionDocumentOutput{SessionID: args.SessionID, Markdown: spec}, nil
}
