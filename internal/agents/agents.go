// Package agents holds the plumbing shared by the stage agents: turning a
// transcript into a model call under a system prompt.
package agents

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/agents"

// Base is embedded by every stage agent.
type Base struct {
	LLM    llm.Generator
	Logger *logging.Logger
	tracer trace.Tracer
}

// NewBase creates a Base. A nil logger discards output.
func NewBase(gen llm.Generator, logger *logging.Logger, name string) Base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return Base{
		LLM:    gen,
		Logger: logger.Named(name),
		tracer: otel.Tracer(instrumentationName),
	}
}

// Converse runs the conversation model over the transcript with system
// prepended.
func (b *Base) Converse(ctx context.Context, system string, messages []workflow.Message) (string, error) {
	return b.Generate(ctx, llm.TaskConversation, system, ToLLM(messages)...)
}

// Generate runs task with an optional system prompt followed by messages.
func (b *Base) Generate(ctx context.Context, task llm.Task, system string, messages ...llm.Message) (string, error) {
	ctx, span := b.tracer.Start(ctx, "agent.generate", trace.WithAttributes(
		attribute.String("llm.task", string(task)),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	full := make([]llm.Message, 0, len(messages)+1)
	if system != "" {
		full = append(full, llm.System(system))
	}
	full = append(full, messages...)

	reply, err := b.LLM.Generate(ctx, task, full)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		b.Logger.Warn(ctx, "model call failed", zap.String("task", string(task)), zap.Error(err))
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.reply_chars", len(reply)))
	return reply, nil
}

// ToLLM converts transcript messages to model messages.
func ToLLM(messages []workflow.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Role == workflow.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// Or returns s, or fallback when s is blank.
func Or(s, fallback string) string {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return s
		}
	}
	return fallback
}
