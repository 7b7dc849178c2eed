package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

func TestBase_Converse(t *testing.T) {
	var gotTask llm.Task
	var got []llm.Message
	gen := llm.GeneratorFunc(func(ctx context.Context, task llm.Task, messages []llm.Message) (string, error) {
		gotTask, got = task, messages
		return "reply", nil
	})
	b := NewBase(gen, nil, "test")

	out, err := b.Converse(context.Background(), "be a PM", []workflow.Message{
		{Role: workflow.RoleUser, Content: "idea"},
		{Role: workflow.RoleAssistant, Content: "tell me more"},
	})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
	assert.Equal(t, llm.TaskConversation, gotTask)
	assert.Equal(t, []llm.Message{
		llm.System("be a PM"),
		llm.User("idea"),
		llm.Assistant("tell me more"),
	}, got)
}

func TestBase_GeneratePropagatesErrors(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Task, []llm.Message) (string, error) {
		return "", llm.ErrMissingCredential
	})
	b := NewBase(gen, nil, "test")
	_, err := b.Generate(context.Background(), llm.TaskDocument, "", llm.User("x"))
	assert.True(t, errors.Is(err, llm.ErrMissingCredential))
}

func TestOr(t *testing.T) {
	assert.Equal(t, "users", Or("  \n", "users"))
	assert.Equal(t, "designers", Or("designers", "users"))
}
