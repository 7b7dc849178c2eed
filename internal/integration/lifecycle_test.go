package integration

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/agents/agenttest"
	"github.com/fyrsmithlabs/specd/internal/client"
	"github.com/fyrsmithlabs/specd/internal/config"
	api "github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/search"
	"github.com/fyrsmithlabs/specd/internal/services"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// TestSessionLifecycle_EndToEnd drives the daemon stack through the HTTP
// client: services, session manager, echo server and client.
func TestSessionLifecycle_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	gen := agenttest.NewScriptedGenerator()
	gen.Fallback = "Got it. Who runs into this problem most often?"

	reg := prometheus.NewRegistry()
	svc, err := services.Build(config.Default(), services.Options{
		Generator:  gen,
		Searcher:   search.NoOp{},
		Registerer: reg,
	})
	require.NoError(t, err)
	defer svc.Close()

	server, err := api.NewServer(svc.Sessions(), logging.NewNop(), &api.Config{Gatherer: reg})
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx := context.Background()
	c := client.New(ts.URL, 0)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	created, err := c.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageDiscovery, created.Stage)

	t.Run("discovery turn", func(t *testing.T) {
		resp, err := c.Send(ctx, created.ID, "I want an app that chases unpaid invoices")
		require.NoError(t, err)
		assert.Equal(t, workflow.StageDiscovery, resp.Stage)
		assert.NotEmpty(t, resp.Reply)
		assert.False(t, resp.SpecReady)
	})

	t.Run("skip request is refused", func(t *testing.T) {
		resp, err := c.Send(ctx, created.ID, "just write the spec")
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Equal(t, workflow.StageDiscovery, resp.Stage)
	})

	t.Run("secrets never reach the transcript", func(t *testing.T) {
		_, err := c.Send(ctx, created.ID, "our key is sk-ant-api03-"+"abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGH")
		require.NoError(t, err)
		got, err := c.GetSession(ctx, created.ID)
		require.NoError(t, err)
		for _, m := range got.Messages {
			assert.NotContains(t, m.Content, "abcdefghijklmnopqrstuvwxyz0123456789")
		}
	})

	t.Run("session view", func(t *testing.T) {
		got, err := c.GetSession(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.GreaterOrEqual(t, got.UserTurns, 2)
		assert.False(t, got.SpecReady)
	})

	t.Run("spec is not ready before done", func(t *testing.T) {
		_, err := c.Spec(ctx, created.ID)
		assert.ErrorIs(t, err, client.ErrSpecNotReady)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.DeleteSession(ctx, created.ID))
		_, err := c.GetSession(ctx, created.ID)
		assert.ErrorIs(t, err, client.ErrNotFound)
	})
}
