package orchestrator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/agents/agenttest"
	"github.com/fyrsmithlabs/specd/internal/agents/discovery"
	"github.com/fyrsmithlabs/specd/internal/agents/scoping"
	"github.com/fyrsmithlabs/specd/internal/agents/specwriter"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

func TestConversation_DiscoveryToDone(t *testing.T) {
	gen := agenttest.NewScriptedGenerator(
		"Invoicing, nice! Tell me how the idea came about?",
		"Who struggles with this the most?",
		"What do they use today?",
		"- Target user: freelance illustrators\n\nDoes this capture your idea correctly?",
		"Here's how I got here... Shall we go with this scope?",
		"I hear you, but a dashboard is not core to getting paid.",
		"Still, reminders alone prove the idea.",
		"Fair enough, I'll add a simple overview to phase 2. Ready for the spec.",
		"# Product Spec: Invoices\n\n## Problem Statement\nLate payments.",
	)
	ex := &agenttest.MockExtractor{}
	ex.On("ExtractDiscovery", mock.Anything, mock.Anything).Return(agenttest.FullSummary(), nil)
	ex.On("ClassifyReview", mock.Anything, mock.Anything).Return(true, nil)
	ex.On("ExtractScoping", mock.Anything, mock.Anything).Return(workflow.ScopingOutput{
		MVPFeatures: []workflow.Feature{{Name: "Reminders", Priority: workflow.PriorityP0, Phase: 1}},
	}, nil)
	ex.On("ClassifyScopingIntent", mock.Anything, mock.Anything).Return(workflow.IntentPushback, nil)
	search := &agenttest.MockSearcher{}
	search.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]workflow.SearchResult{
		{Title: "Chaser", URL: "https://chaser.io", Snippet: "Automated credit control"},
	})

	settings := workflow.DefaultSettings()
	o := orchestrator.New(nil)
	o.RegisterHandler(discovery.New(gen, ex, ex, settings, nil))
	o.RegisterHandler(scoping.New(gen, ex, ex, search, settings, nil))
	o.RegisterHandler(specwriter.New(gen, nil))
	o.RegisterGate(orchestrator.NewSkipGate())

	state := workflow.NewConversationState(settings.MaxNegotiationRounds)
	turns := []struct {
		input string
		stage workflow.Stage
	}{
		{"I want an app that chases unpaid invoices", workflow.StageDiscovery},
		{"Freelance illustrators keep getting paid late", workflow.StageDiscovery},
		{"Just write the spec", workflow.StageDiscovery},
		{"They use spreadsheets and awkward emails", workflow.StageDiscovery},
		{"Success means getting paid within a week", workflow.StageDiscovery},
		{"Yes, that's right", workflow.StageScoping},
		{"I need a dashboard in the MVP", workflow.StageScoping},
		{"No really, users expect a dashboard", workflow.StageScoping},
		{"I insist on the dashboard", workflow.StageDone},
	}

	var replies []string
	visited := []workflow.Stage{state.Stage}
	for i, turn := range turns {
		result, err := o.Handle(context.Background(), state, turn.input, nil)
		require.NoError(t, err, "turn %d", i)
		from, to := result.PreviousStage.Index(), result.State.Stage.Index()
		require.LessOrEqual(t, from, to, "turn %d moved backwards", i)
		// A handoff can pass through stages within a single turn.
		for _, st := range workflow.AllStages()[from+1 : to+1] {
			visited = append(visited, st)
		}
		state = result.State
		replies = append(replies, result.Reply)
		assert.Equal(t, turn.stage, state.Stage, "turn %d", i)
	}
	assert.Equal(t, workflow.AllStages(), visited)

	assert.Equal(t, "Invoicing, nice! Tell me how the idea came about?", replies[0])
	assert.Equal(t, orchestrator.SkipReply, replies[2])
	assert.True(t, state.SummaryShown)
	assert.True(t, strings.HasSuffix(replies[5], "Here's how I got here... Shall we go with this scope?"))
	assert.Len(t, state.Scoping.ComparableProducts, 1)
	assert.Equal(t, 3, state.NegotiationRounds)
	assert.True(t, state.ScopeAgreed)
	assert.Contains(t, replies[8], orchestrator.HandoffSeparator+"# Product Spec: Invoices")
	assert.Equal(t, "# Product Spec: Invoices\n\n## Problem Statement\nLate payments.", state.SpecMarkdown)

	for _, m := range state.Messages {
		assert.NotEqual(t, "Just write the spec", m.Content)
	}

	final, err := o.Handle(context.Background(), state, "thanks!", nil)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.DoneReply, final.Reply)
}
