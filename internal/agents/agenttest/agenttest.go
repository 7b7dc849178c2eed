// Package agenttest provides scripted collaborators for exercising the stage
// agents and the orchestrator without a live model.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Call records one request seen by a ScriptedGenerator.
type Call struct {
	Task     llm.Task
	Messages []llm.Message
}

// System returns the system prompt of the call, if any.
func (c Call) System() string {
	if len(c.Messages) > 0 && c.Messages[0].Role == llm.RoleSystem {
		return c.Messages[0].Content
	}
	return ""
}

// ScriptedGenerator replies from a fixed queue and records every call.
// Once the queue is drained it repeats Fallback, or fails when Fallback is
// empty.
type ScriptedGenerator struct {
	mu       sync.Mutex
	replies  []string
	Fallback string
	Err      error
	Calls    []Call
}

// NewScriptedGenerator queues replies in order.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	return &ScriptedGenerator{replies: replies}
}

// Generate implements llm.Generator.
func (g *ScriptedGenerator) Generate(_ context.Context, task llm.Task, messages []llm.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, Call{Task: task, Messages: append([]llm.Message(nil), messages...)})
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.replies) > 0 {
		r := g.replies[0]
		g.replies = g.replies[1:]
		return r, nil
	}
	if g.Fallback != "" {
		return g.Fallback, nil
	}
	return "", fmt.Errorf("scripted generator: no reply queued for call %d", len(g.Calls))
}

// CallCount returns how many calls were made.
func (g *ScriptedGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// MockExtractor mocks every extraction and classification collaborator.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractDiscovery(ctx context.Context, transcript string) (workflow.DiscoverySummary, error) {
	args := m.Called(ctx, transcript)
	return args.Get(0).(workflow.DiscoverySummary), args.Error(1)
}

func (m *MockExtractor) ExtractScoping(ctx context.Context, proposal string) (workflow.ScopingOutput, error) {
	args := m.Called(ctx, proposal)
	return args.Get(0).(workflow.ScopingOutput), args.Error(1)
}

func (m *MockExtractor) ClassifyReview(ctx context.Context, reply string) (bool, error) {
	args := m.Called(ctx, reply)
	return args.Bool(0), args.Error(1)
}

func (m *MockExtractor) ClassifyScopingIntent(ctx context.Context, reply string) (workflow.Intent, error) {
	args := m.Called(ctx, reply)
	return args.Get(0).(workflow.Intent), args.Error(1)
}

// MockSearcher mocks workflow.Searcher.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, maxResults int) []workflow.SearchResult {
	args := m.Called(ctx, query, maxResults)
	if r := args.Get(0); r != nil {
		return r.([]workflow.SearchResult)
	}
	return nil
}

// FullSummary returns a discovery summary with every field filled.
func FullSummary() workflow.DiscoverySummary {
	return workflow.DiscoverySummary{
		TargetUser:          "freelance illustrators",
		CoreProblem:         "chasing late invoices",
		CurrentAlternatives: []string{"spreadsheets", "email reminders"},
		WhyNow:              "more artists are going independent",
		FeatureWishlist:     []string{"automatic reminders", "payment links"},
		SuccessMetric:       "days to payment",
		RevenueModel:        "monthly subscription",
		Constraints:         "solo developer, three months",
	}
}

var (
	_ workflow.DiscoveryExtractor = (*MockExtractor)(nil)
	_ workflow.ScopingExtractor   = (*MockExtractor)(nil)
	_ workflow.ReviewClassifier   = (*MockExtractor)(nil)
	_ workflow.IntentClassifier   = (*MockExtractor)(nil)
	_ workflow.Searcher           = (*MockSearcher)(nil)
	_ llm.Generator               = (*ScriptedGenerator)(nil)
)
