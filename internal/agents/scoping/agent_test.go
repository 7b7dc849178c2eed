package scoping

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/agents/agenttest"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

func newAgent(gen *agenttest.ScriptedGenerator, ex *agenttest.MockExtractor, search *agenttest.MockSearcher) *Agent {
	return New(gen, ex, ex, search, workflow.DefaultSettings(), nil)
}

// negotiating returns a state with a proposal already on the table.
func negotiating() *workflow.ConversationState {
	s := workflow.NewConversationState(3)
	s.Stage = workflow.StageScoping
	s.Discovery = agenttest.FullSummary()
	s.Scoping = &workflow.ScopingOutput{
		MVPFeatures: []workflow.Feature{{Name: "Reminders", Priority: workflow.PriorityP0, Phase: 1}},
	}
	s.AwaitingScopeAgreement = true
	s.Append(workflow.RoleAssistant, "Here's how I got here...")
	return s
}

func TestHandle_OpeningProposal(t *testing.T) {
	hits := []workflow.SearchResult{
		{Title: "InvoiceNinja", URL: "https://invoiceninja.com", Snippet: "Free invoicing"},
		{Title: "Chaser", URL: "https://chaser.io", Snippet: "Automated credit control"},
	}
	extracted := workflow.ScopingOutput{
		MVPFeatures:        []workflow.Feature{{Name: "Reminders", Priority: workflow.PriorityP0, Phase: 1}},
		ComparableProducts: []workflow.ComparableProduct{{Name: "InvoiceNinja", URL: "https://invoiceninja.com"}},
	}

	gen := agenttest.NewScriptedGenerator("Here's how I got here... Shall we proceed?")
	ex := &agenttest.MockExtractor{}
	ex.On("ExtractScoping", mock.Anything, "Here's how I got here... Shall we proceed?").Return(extracted, nil)
	search := &agenttest.MockSearcher{}
	search.On("Search", mock.Anything, "chasing late invoices app for freelance illustrators", 5).Return(hits)

	state := workflow.NewConversationState(3)
	state.Stage = workflow.StageScoping
	state.Discovery = agenttest.FullSummary()

	reply, err := newAgent(gen, ex, search).Handle(context.Background(), state, "")
	require.NoError(t, err)

	assert.Equal(t, "Here's how I got here... Shall we proceed?", reply)
	assert.True(t, state.AwaitingScopeAgreement)
	require.NotNil(t, state.Scoping)
	require.Len(t, state.Scoping.ComparableProducts, 2)
	assert.Equal(t, workflow.ComparableProduct{
		Name: "Chaser", URL: "https://chaser.io", Relevance: "Automated credit control",
	}, state.Scoping.ComparableProducts[1])

	require.Len(t, gen.Calls, 1)
	assert.Equal(t, systemPrompt, gen.Calls[0].System())
	prompt := gen.Calls[0].Messages[1].Content
	assert.Contains(t, prompt, "- Target user: freelance illustrators")
	assert.Contains(t, prompt, "- Chaser: Automated credit control...")
	assert.True(t, strings.HasSuffix(prompt, proposalInstructions))

	require.Len(t, state.Messages, 1)
	assert.Equal(t, workflow.RoleAssistant, state.Messages[0].Role)
	search.AssertExpectations(t)
}

func TestHandle_OpeningProposalWithoutSearchHits(t *testing.T) {
	gen := agenttest.NewScriptedGenerator("proposal")
	ex := &agenttest.MockExtractor{}
	ex.On("ExtractScoping", mock.Anything, mock.Anything).Return(workflow.ScopingOutput{}, nil)
	search := &agenttest.MockSearcher{}
	search.On("Search", mock.Anything, "product app for users", 5).Return(nil)

	state := workflow.NewConversationState(3)
	state.Stage = workflow.StageScoping

	_, err := newAgent(gen, ex, search).Handle(context.Background(), state, "")
	require.NoError(t, err)
	assert.Contains(t, gen.Calls[0].Messages[1].Content, "None found.")
	assert.NotNil(t, state.Scoping)
}

func TestHandle_AgreeAdvancesToSpec(t *testing.T) {
	gen := agenttest.NewScriptedGenerator()
	ex := &agenttest.MockExtractor{}
	ex.On("ClassifyScopingIntent", mock.Anything, "looks great").Return(workflow.IntentAgree, nil)

	state := negotiating()
	reply, err := newAgent(gen, ex, &agenttest.MockSearcher{}).Handle(context.Background(), state, "looks great")
	require.NoError(t, err)

	assert.Equal(t, agreeReply, reply)
	assert.Equal(t, workflow.StageSpec, state.Stage)
	assert.True(t, state.ScopeAgreed)
	assert.False(t, state.AwaitingScopeAgreement)
	assert.Zero(t, gen.CallCount())
	assert.Equal(t, "looks great", state.Messages[len(state.Messages)-2].Content)
}

func TestHandle_QuestionDoesNotConsumeRound(t *testing.T) {
	gen := agenttest.NewScriptedGenerator("Phase 1 takes about two weeks. Ready to go?")
	ex := &agenttest.MockExtractor{}
	ex.On("ClassifyScopingIntent", mock.Anything, mock.Anything).Return(workflow.IntentQuestion, nil)

	state := negotiating()
	_, err := newAgent(gen, ex, &agenttest.MockSearcher{}).Handle(context.Background(), state, "how long is phase 1?")
	require.NoError(t, err)

	assert.Zero(t, state.NegotiationRounds)
	assert.Equal(t, workflow.StageScoping, state.Stage)
	assert.Equal(t, systemPrompt+questionSuffix, gen.Calls[0].System())
}

func TestHandle_PushbackConcedesAtCeiling(t *testing.T) {
	gen := agenttest.NewScriptedGenerator("I hear you, but...", "Fair point, however...", "Okay, I'll add it.")
	ex := &agenttest.MockExtractor{}
	ex.On("ClassifyScopingIntent", mock.Anything, mock.Anything).Return(workflow.IntentPushback, nil)

	agent := newAgent(gen, ex, &agenttest.MockSearcher{})
	state := negotiating()

	for round := 1; round <= 2; round++ {
		_, err := agent.Handle(context.Background(), state, "I really need a dashboard")
		require.NoError(t, err)
		assert.Equal(t, round, state.NegotiationRounds)
		assert.Equal(t, workflow.StageScoping, state.Stage)
		assert.Equal(t, systemPrompt+evaluateSuffix, gen.Calls[round-1].System())
	}

	reply, err := agent.Handle(context.Background(), state, "no, a weak argument, but still")
	require.NoError(t, err)
	assert.Equal(t, "Okay, I'll add it.", reply)
	assert.Equal(t, 3, state.NegotiationRounds)
	assert.Equal(t, workflow.StageSpec, state.Stage)
	assert.True(t, state.ScopeAgreed)
	assert.Equal(t, systemPrompt+concedeSuffix, gen.Calls[2].System())
}

func TestHandle_ClassifierFailureFailsTurn(t *testing.T) {
	boom := errors.New("boom")
	ex := &agenttest.MockExtractor{}
	ex.On("ClassifyScopingIntent", mock.Anything, mock.Anything).Return(workflow.Intent(""), boom)

	state := negotiating()
	_, err := newAgent(agenttest.NewScriptedGenerator(), ex, &agenttest.MockSearcher{}).Handle(context.Background(), state, "hmm")
	assert.ErrorIs(t, err, boom)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "product app for users", SearchQuery(workflow.DiscoverySummary{}))
	assert.Equal(t, "late invoices app for users", SearchQuery(workflow.DiscoverySummary{CoreProblem: "late invoices"}))
}
