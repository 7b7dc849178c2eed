package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// MockStageHandler is a mock implementation of workflow.StageHandler
type MockStageHandler struct {
	mock.Mock
	stage workflow.Stage
}

func NewMockStageHandler(stage workflow.Stage) *MockStageHandler {
	return &MockStageHandler{stage: stage}
}

func (m *MockStageHandler) Stage() workflow.Stage {
	return m.stage
}

func (m *MockStageHandler) Handle(ctx context.Context, state *workflow.ConversationState, input string) (string, error) {
	args := m.Called(ctx, state, input)
	return args.String(0), args.Error(1)
}

// advanceTo returns a Run func that records input and moves the state on.
func advanceTo(to workflow.Stage, reply string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		state := args.Get(1).(*workflow.ConversationState)
		state.Append(workflow.RoleUser, args.String(2))
		state.Append(workflow.RoleAssistant, reply)
		state.Stage = to
	}
}

func newState(stage workflow.Stage) *workflow.ConversationState {
	s := workflow.NewConversationState(3)
	s.Stage = stage
	return s
}

func TestHandle_DispatchesToCurrentStage(t *testing.T) {
	discovery := NewMockStageHandler(workflow.StageDiscovery)
	discovery.On("Handle", mock.Anything, mock.Anything, "an idea").
		Run(advanceTo(workflow.StageDiscovery, "tell me more")).
		Return("tell me more", nil)

	o := New(nil)
	o.RegisterHandler(discovery)
	o.RegisterGate(NewSkipGate())

	state := newState(workflow.StageDiscovery)
	result, err := o.Handle(context.Background(), state, "an idea", nil)
	require.NoError(t, err)

	assert.Equal(t, "tell me more", result.Reply)
	assert.False(t, result.Advanced())
	assert.Empty(t, result.Steps)
	assert.Len(t, result.State.Messages, 2)
	assert.Empty(t, state.Messages, "input state must not be mutated")
	discovery.AssertExpectations(t)
}

func TestHandle_HandoffCombinesReplies(t *testing.T) {
	discovery := NewMockStageHandler(workflow.StageDiscovery)
	discovery.On("Handle", mock.Anything, mock.Anything, "yes").
		Run(advanceTo(workflow.StageScoping, "Great, I'm handing off to the Scoping Agent now.")).
		Return("Great, I'm handing off to the Scoping Agent now.", nil)
	scoping := NewMockStageHandler(workflow.StageScoping)
	scoping.On("Handle", mock.Anything, mock.Anything, "").
		Return("Here's how I got here...", nil)

	o := New(nil)
	o.RegisterHandler(discovery)
	o.RegisterHandler(scoping)

	var steps []string
	result, err := o.Handle(context.Background(), newState(workflow.StageDiscovery), "yes", func(s string) {
		steps = append(steps, s)
	})
	require.NoError(t, err)

	assert.Equal(t, handoffNotices[workflow.StageScoping]+HandoffSeparator+"Here's how I got here...", result.Reply)
	assert.NotContains(t, result.Reply, "Great, I'm handing off")
	assert.Equal(t, []string{"Researching comparable products and preparing scope…"}, steps)
	assert.Equal(t, steps, result.Steps)
	assert.Equal(t, workflow.StageScoping, result.State.Stage)
	assert.Equal(t, workflow.StageDiscovery, result.PreviousStage)
	assert.True(t, result.Advanced())
	scoping.AssertExpectations(t)
}

func TestHandle_SpecHandoffFinishes(t *testing.T) {
	scoping := NewMockStageHandler(workflow.StageScoping)
	scoping.On("Handle", mock.Anything, mock.Anything, "agreed").
		Run(advanceTo(workflow.StageSpec, "Sounds good.")).
		Return("Sounds good.", nil)
	spec := NewMockStageHandler(workflow.StageSpec)
	spec.On("Handle", mock.Anything, mock.Anything, "").
		Run(func(args mock.Arguments) {
			s := args.Get(1).(*workflow.ConversationState)
			s.SpecMarkdown = "# Product Spec: X"
			s.Stage = workflow.StageDone
		}).
		Return("# Product Spec: X", nil)

	o := New(nil)
	o.RegisterHandler(scoping)
	o.RegisterHandler(spec)

	result, err := o.Handle(context.Background(), newState(workflow.StageScoping), "agreed", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Reply, "Scope is agreed."))
	assert.True(t, strings.HasSuffix(result.Reply, "# Product Spec: X"))
	assert.Equal(t, workflow.StageDone, result.State.Stage)
	assert.Equal(t, []string{"Writing your phased product spec…"}, result.Steps)
}

func TestHandle_SkipRequestRefused(t *testing.T) {
	tests := []struct {
		name   string
		stage  workflow.Stage
		rounds int
		input  string
	}{
		{name: "discovery", stage: workflow.StageDiscovery, input: "Just write the spec please"},
		{name: "scoping mid negotiation", stage: workflow.StageScoping, rounds: 2, input: "skip to spec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewMockStageHandler(tt.stage)

			o := New(nil)
			o.RegisterHandler(handler)
			o.RegisterGate(NewSkipGate())

			state := newState(tt.stage)
			state.NegotiationRounds = tt.rounds
			result, err := o.Handle(context.Background(), state, tt.input, nil)
			require.NoError(t, err)

			assert.Equal(t, SkipReply, result.Reply)
			assert.True(t, result.Skipped)
			assert.Same(t, state, result.State)
			assert.Equal(t, tt.stage, result.State.Stage)
			assert.Equal(t, tt.rounds, result.State.NegotiationRounds)
			assert.Empty(t, state.Messages)
			handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_DoneStage(t *testing.T) {
	o := New(nil)
	o.RegisterGate(NewSkipGate())

	result, err := o.Handle(context.Background(), newState(workflow.StageDone), "just write the spec", nil)
	require.NoError(t, err)
	assert.Equal(t, DoneReply, result.Reply)
	assert.False(t, result.Skipped)
}

func TestHandle_FailedTurnLeavesStateUntouched(t *testing.T) {
	boom := errors.New("model unavailable")
	discovery := NewMockStageHandler(workflow.StageDiscovery)
	discovery.On("Handle", mock.Anything, mock.Anything, "yes").
		Run(advanceTo(workflow.StageScoping, "handing off")).
		Return("handing off", nil)
	scoping := NewMockStageHandler(workflow.StageScoping)
	scoping.On("Handle", mock.Anything, mock.Anything, "").Return("", boom)

	o := New(nil)
	o.RegisterHandler(discovery)
	o.RegisterHandler(scoping)

	state := newState(workflow.StageDiscovery)
	result, err := o.Handle(context.Background(), state, "yes", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Equal(t, workflow.StageDiscovery, state.Stage)
	assert.Empty(t, state.Messages)
}

func TestHandle_RejectsStageJumps(t *testing.T) {
	rogue := NewMockStageHandler(workflow.StageDiscovery)
	rogue.On("Handle", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*workflow.ConversationState).Stage = workflow.StageSpec
		}).
		Return("jumped", nil)

	o := New(nil)
	o.RegisterHandler(rogue)

	_, err := o.Handle(context.Background(), newState(workflow.StageDiscovery), "hi", nil)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestHandle_MissingHandler(t *testing.T) {
	_, err := New(nil).Handle(context.Background(), newState(workflow.StageScoping), "hi", nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}
