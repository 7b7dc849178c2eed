// Package scoping implements the MVP negotiation stage. It researches
// comparable products, proposes a phased, RICE-scored scope and negotiates it
// with the user for a bounded number of pushback rounds.
package scoping

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/agents"
	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const searchSnippetChars = 200

// Agent handles turns while the conversation is in scoping.
type Agent struct {
	agents.Base
	extractor  workflow.ScopingExtractor
	classifier workflow.IntentClassifier
	searcher   workflow.Searcher
	settings   workflow.Settings
}

// New creates a scoping agent.
func New(gen llm.Generator, extractor workflow.ScopingExtractor, classifier workflow.IntentClassifier, searcher workflow.Searcher, settings workflow.Settings, logger *logging.Logger) *Agent {
	return &Agent{
		Base:       agents.NewBase(gen, logger, "scoping"),
		extractor:  extractor,
		classifier: classifier,
		searcher:   searcher,
		settings:   settings,
	}
}

// Stage implements workflow.StageHandler.
func (a *Agent) Stage() workflow.Stage { return workflow.StageScoping }

// Handle makes the opening proposal when no scope exists yet, and otherwise
// negotiates according to the intent of input.
func (a *Agent) Handle(ctx context.Context, state *workflow.ConversationState, input string) (string, error) {
	if state.Scoping == nil {
		if strings.TrimSpace(input) != "" {
			state.Append(workflow.RoleUser, input)
		}
		return a.propose(ctx, state)
	}

	intent, err := a.classifier.ClassifyScopingIntent(ctx, input)
	if err != nil {
		return "", err
	}
	state.Append(workflow.RoleUser, input)
	a.Logger.Debug(ctx, "scoping intent", zap.String("intent", string(intent)))

	switch intent {
	case workflow.IntentAgree:
		return a.agree(state, agreeReply)
	case workflow.IntentQuestion:
		return a.reply(ctx, state, systemPrompt+questionSuffix)
	default:
		state.NegotiationRounds++
		if state.NegotiationExhausted() {
			a.Logger.Info(ctx, "negotiation ceiling reached, conceding",
				zap.Int("rounds", state.NegotiationRounds))
			reply, err := a.Converse(ctx, systemPrompt+concedeSuffix, state.Messages)
			if err != nil {
				return "", err
			}
			return a.agree(state, reply)
		}
		return a.reply(ctx, state, systemPrompt+evaluateSuffix)
	}
}

func (a *Agent) reply(ctx context.Context, state *workflow.ConversationState, system string) (string, error) {
	reply, err := a.Converse(ctx, system, state.Messages)
	if err != nil {
		return "", err
	}
	state.Append(workflow.RoleAssistant, reply)
	return reply, nil
}

func (a *Agent) agree(state *workflow.ConversationState, reply string) (string, error) {
	if err := state.Advance(workflow.StageSpec); err != nil {
		return "", err
	}
	state.ScopeAgreed = true
	state.AwaitingScopeAgreement = false
	state.Append(workflow.RoleAssistant, reply)
	return reply, nil
}

func (a *Agent) propose(ctx context.Context, state *workflow.ConversationState) (string, error) {
	query := SearchQuery(state.Discovery)
	hits := a.searcher.Search(ctx, query, a.settings.SearchMaxResults)
	if limit := a.settings.SearchMaxResults; limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	a.Logger.Info(ctx, "comparable product search", zap.String("query", query), zap.Int("hits", len(hits)))

	proposal, err := a.Generate(ctx, llm.TaskConversation, systemPrompt,
		llm.User(proposalContext(state.Discovery, query, hits)))
	if err != nil {
		return "", err
	}
	state.Append(workflow.RoleAssistant, proposal)
	state.AwaitingScopeAgreement = true

	scope, err := a.extractor.ExtractScoping(ctx, proposal)
	if err != nil {
		return "", err
	}
	if added := scope.ReconcileComparables(hits); added > 0 {
		a.Logger.Debug(ctx, "added search hits to comparables", zap.Int("added", added))
	}
	state.Scoping = &scope
	return proposal, nil
}

// SearchQuery builds the comparable-product query from the discovery notes.
func SearchQuery(d workflow.DiscoverySummary) string {
	return fmt.Sprintf("%s app for %s",
		agents.Or(d.CoreProblem, "product"),
		agents.Or(d.TargetUser, "users"))
}

func proposalContext(d workflow.DiscoverySummary, query string, hits []workflow.SearchResult) string {
	var b strings.Builder
	b.WriteString("Discovery notes:\n")
	fmt.Fprintf(&b, "- Target user: %s\n", agents.Or(d.TargetUser, "TBD"))
	fmt.Fprintf(&b, "- Core problem: %s\n", agents.Or(d.CoreProblem, "TBD"))
	fmt.Fprintf(&b, "- Current alternatives: %s\n", joinOr(d.CurrentAlternatives, "TBD"))
	fmt.Fprintf(&b, "- Feature wishlist: %s\n", joinOr(d.FeatureWishlist, "TBD"))
	fmt.Fprintf(&b, "- Success metric: %s\n", agents.Or(d.SuccessMetric, "TBD"))
	fmt.Fprintf(&b, "- Constraints: %s\n", agents.Or(d.Constraints, "TBD"))

	fmt.Fprintf(&b, "\nComparable products (web search for %q):\n", query)
	if len(hits) == 0 {
		b.WriteString("None found.\n")
	}
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s: %s...\n", h.Title, workflow.Truncate(h.Snippet, searchSnippetChars))
	}

	b.WriteString("\n")
	b.WriteString(proposalInstructions)
	return b.String()
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

var _ workflow.StageHandler = (*Agent)(nil)
