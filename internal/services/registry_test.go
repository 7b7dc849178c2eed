package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/agents/agenttest"
	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/events"
	"github.com/fyrsmithlabs/specd/internal/search"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

func TestBuild(t *testing.T) {
	gen := agenttest.NewScriptedGenerator()
	gen.Fallback = "Invoices, interesting. Who feels this pain the most?"

	reg, err := Build(config.Default(), Options{
		Generator:  gen,
		Searcher:   search.NoOp{},
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	defer reg.Close()

	assert.Same(t, gen, reg.Generator())
	assert.IsType(t, events.Noop{}, reg.Publisher())
	assert.Equal(t, workflow.DefaultSettings().MaxNegotiationRounds, reg.Settings().MaxNegotiationRounds)

	ctx := context.Background()
	snap, err := reg.Sessions().Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageDiscovery, snap.Stage)

	res, err := reg.Sessions().Send(ctx, snap.ID, "An app that chases unpaid invoices", nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageDiscovery, res.Stage)
	assert.NotEmpty(t, res.Reply)
	assert.Positive(t, gen.CallCount())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, Options{})
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Workflow.MandatoryFields = []string{"shoe_size"}
	_, err = Build(cfg, Options{Registerer: prometheus.NewRegistry()})
	assert.ErrorContains(t, err, "workflow")

	cfg = config.Default()
	cfg.LLM.Provider = "carrier-pigeon"
	_, err = Build(cfg, Options{Registerer: prometheus.NewRegistry()})
	assert.ErrorContains(t, err, "llm client")

	cfg = config.Default()
	cfg.Search.Provider = "altavista"
	_, err = Build(cfg, Options{Generator: agenttest.NewScriptedGenerator(), Registerer: prometheus.NewRegistry()})
	assert.ErrorContains(t, err, "search client")
}

func TestNewOrchestrator_RefusesSkips(t *testing.T) {
	o := NewOrchestrator(agenttest.NewScriptedGenerator(), search.NoOp{}, workflow.DefaultSettings(), nil)
	state := workflow.NewConversationState(3)

	res, err := o.Handle(context.Background(), state, "just write the spec please", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, workflow.StageDiscovery, res.State.Stage)
}
