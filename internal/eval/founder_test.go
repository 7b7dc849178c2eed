package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/agents/agenttest"
	"github.com/fyrsmithlabs/specd/internal/llm"
)

func TestFounderPrompt(t *testing.T) {
	prompt := founderPrompt("A nutritionist.", PolicyPivot)
	assert.Contains(t, prompt, "PERSONA:\nA nutritionist.")
	assert.Contains(t, prompt, "message policy = pivot")
	assert.Contains(t, prompt, policyInstructions[PolicyPivot])

	fallback := founderPrompt("", "weird")
	assert.Contains(t, fallback, defaultPersona)
	assert.Contains(t, fallback, "message policy = expansive")
}

func TestFounder_Next(t *testing.T) {
	gen := agenttest.NewScriptedGenerator("  Mostly freelancers in the US.  ")
	f := NewFounder(gen, "A founder.", PolicyExpansive)

	transcript := []Entry{
		{User: "An invoicing tool.", Assistant: "Who is it for?"},
		{User: "Freelancers.", Assistant: "Where are they based?"},
	}
	got, err := f.Next(context.Background(), transcript)
	require.NoError(t, err)
	assert.Equal(t, "Mostly freelancers in the US.", got)

	require.Equal(t, 1, gen.CallCount())
	call := gen.Calls[0]
	assert.Equal(t, llm.TaskExtraction, call.Task)
	require.Len(t, call.Messages, 5)
	assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
	assert.Equal(t, llm.Assistant("An invoicing tool."), call.Messages[1])
	assert.Equal(t, llm.User("Who is it for?"), call.Messages[2])
	assert.Equal(t, llm.Assistant("Freelancers."), call.Messages[3])
	assert.Equal(t, llm.User("Where are they based?"), call.Messages[4])
}

func TestFounder_NextNeedsTranscript(t *testing.T) {
	f := NewFounder(agenttest.NewScriptedGenerator(), "", PolicyMinimal)
	_, err := f.Next(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}
