// Package discovery implements the interview stage: it asks about the idea,
// tracks what has been learned, recaps once enough is known and hands off to
// scoping when the user confirms the recap.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/agents"
	"github.com/fyrsmithlabs/specd/internal/extraction"
	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Agent handles turns while the conversation is in discovery.
type Agent struct {
	agents.Base
	extractor workflow.DiscoveryExtractor
	reviewer  workflow.ReviewClassifier
	settings  workflow.Settings
	shape     *extraction.ShapeDetector
}

// New creates a discovery agent.
func New(gen llm.Generator, extractor workflow.DiscoveryExtractor, reviewer workflow.ReviewClassifier, settings workflow.Settings, logger *logging.Logger) *Agent {
	return &Agent{
		Base:      agents.NewBase(gen, logger, "discovery"),
		extractor: extractor,
		reviewer:  reviewer,
		settings:  settings,
		shape:     extraction.NewShapeDetector(),
	}
}

// Stage implements workflow.StageHandler.
func (a *Agent) Stage() workflow.Stage { return workflow.StageDiscovery }

// Handle records input, updates the summary and produces the next reply.
func (a *Agent) Handle(ctx context.Context, state *workflow.ConversationState, input string) (string, error) {
	state.Append(workflow.RoleUser, input)

	if state.SummaryShown {
		confirmed, err := a.reviewer.ClassifyReview(ctx, input)
		if err != nil {
			return "", err
		}
		if confirmed {
			if err := state.Advance(workflow.StageScoping); err != nil {
				return "", err
			}
			state.Append(workflow.RoleAssistant, handoffReply)
			a.Logger.Info(ctx, "discovery confirmed")
			return handoffReply, nil
		}
		state.SummaryShown = false
		a.Logger.Debug(ctx, "recap revised")
	}

	extracted, err := a.extractor.ExtractDiscovery(ctx, state.Transcript())
	if err != nil {
		return "", err
	}
	state.Discovery = workflow.MergeSummary(state.Discovery, extracted)

	completeness := a.settings.Completeness.Evaluate(state.Discovery)
	a.Logger.Debug(ctx, "discovery progress",
		zap.Float64("score", completeness.Score),
		zap.Int("user_turns", state.UserTurns()),
	)

	if state.UserTurns() >= a.settings.MinDiscoveryTurns && completeness.Complete {
		recap, err := a.Generate(ctx, llm.TaskConversation, recapPrompt,
			llm.User(fmt.Sprintf(recapRequest, state.Transcript())))
		if err != nil {
			return "", err
		}
		recap = ensureConfirmQuestion(recap)
		state.SummaryShown = true
		state.Append(workflow.RoleAssistant, recap)
		return recap, nil
	}

	system := interviewPrompt + gapBlock(completeness.Gaps)
	if len(state.Messages) == 1 {
		system = openingPrompt
	}

	reply, err := a.Converse(ctx, system, state.Messages)
	if err != nil {
		return "", err
	}
	if pattern, ok := a.shape.Detect(reply); ok {
		a.Logger.Info(ctx, "reply looked like a document, retrying", zap.String("pattern", pattern))
		reply, err = a.Converse(ctx, system+documentCorrection, state.Messages)
		if err != nil {
			return "", err
		}
	}

	state.Append(workflow.RoleAssistant, reply)
	return reply, nil
}

func gapBlock(gaps []workflow.Field) string {
	if len(gaps) == 0 {
		return ""
	}
	lines := make([]string, 0, len(gaps)+1)
	lines = append(lines, gapsHeader)
	for _, f := range gaps {
		lines = append(lines, "- "+f.Label()+": not yet discussed")
	}
	return strings.Join(lines, "\n")
}

func ensureConfirmQuestion(recap string) string {
	recap = strings.TrimRight(recap, " \n")
	if strings.HasSuffix(recap, confirmQuestion) {
		return recap
	}
	return recap + "\n\n" + confirmQuestion
}

var _ workflow.StageHandler = (*Agent)(nil)
