// Package specwriter turns the discovery notes and the agreed scope into a
// phased Markdown product spec. It is a single model call, not a
// conversation, and always finishes the workflow.
package specwriter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/agents"
	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Agent handles the spec stage.
type Agent struct {
	agents.Base
}

// New creates a spec writer.
func New(gen llm.Generator, logger *logging.Logger) *Agent {
	return &Agent{Base: agents.NewBase(gen, logger, "specwriter")}
}

// Stage implements workflow.StageHandler.
func (a *Agent) Stage() workflow.Stage { return workflow.StageSpec }

// Handle writes the spec, stores it on the state and moves to done. The
// returned reply is the document itself.
func (a *Agent) Handle(ctx context.Context, state *workflow.ConversationState, input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		state.Append(workflow.RoleUser, input)
	}
	spec, err := a.Write(ctx, state.Discovery, state.Scoping)
	if err != nil {
		return "", err
	}
	if err := state.Advance(workflow.StageDone); err != nil {
		return "", err
	}
	state.SpecMarkdown = spec
	state.Append(workflow.RoleAssistant, doneLine)
	return spec, nil
}

// Write produces the spec document. Output without any Markdown heading is
// replaced by the template filled from the notes, and so is a model call
// that failed after its retries. A missing credential or a cancelled
// context is still returned as an error.
func (a *Agent) Write(ctx context.Context, d workflow.DiscoverySummary, scope *workflow.ScopingOutput) (string, error) {
	request := fmt.Sprintf(writeRequest, Context(d, scope))
	out, err := a.Generate(ctx, llm.TaskDocument, systemPrompt, llm.User(request))
	if err != nil {
		var genErr *llm.GenerationError
		if errors.Is(err, llm.ErrMissingCredential) || ctx.Err() != nil || !errors.As(err, &genErr) {
			return "", err
		}
		a.Logger.Warn(ctx, "spec generation failed, filling template", zap.Error(err))
		return Fill(d, scope), nil
	}

	out = stripFence(out)
	if !strings.Contains(out, "# ") {
		a.Logger.Warn(ctx, "spec output had no headings, filling template",
			logging.Preview("output", out, 120))
		return Fill(d, scope), nil
	}
	return strings.TrimSpace(out), nil
}

// stripFence removes a ```markdown wrapper around the whole document.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		return t[i+1:]
	}
	return s
}

var _ workflow.StageHandler = (*Agent)(nil)
