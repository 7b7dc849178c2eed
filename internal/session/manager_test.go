package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/events"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/secrets"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// turnerFunc adapts a function to Turner.
type turnerFunc func(ctx context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error)

func (f turnerFunc) Handle(ctx context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error) {
	return f(ctx, state, input, step)
}

// echoTurner appends the exchange and advances when input is "next".
func echoTurner() turnerFunc {
	return func(_ context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error) {
		next := state.Clone()
		next.Append(workflow.RoleUser, input)
		next.Append(workflow.RoleAssistant, "echo: "+input)
		var steps []string
		if input == "next" {
			to, _ := next.Stage.Next()
			next.Stage = to
			if to == workflow.StageDone {
				next.SpecMarkdown = "# Product Spec: X"
			}
			steps = append(steps, "working")
			if step != nil {
				step("working")
			}
		}
		return &orchestrator.TurnResult{Reply: "echo: " + input, State: next, PreviousStage: state.Stage, Steps: steps}, nil
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type fakeRedactor struct{}

func (fakeRedactor) Redact(text string) secrets.Result {
	if text == "my key is sk-secret" {
		return secrets.Result{
			Text:     "my key is [REDACTED:openai-api-key]",
			Findings: []secrets.Finding{{RuleID: "openai-api-key"}},
		}
	}
	return secrets.Result{Text: text}
}

func testConfig() Config {
	return Config{TTL: time.Hour, MaxSessions: 10, Settings: workflow.DefaultSettings()}
}

func TestManager_CreateAndGet(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewManager(testConfig(), echoTurner(), nil, pub, nil, nil)

	snap, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, workflow.StageDiscovery, snap.Stage)
	assert.Equal(t, 3, snap.State.MaxNegotiationRounds)

	got, err := m.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, []events.Kind{events.KindCreated}, pub.kinds())

	_, err = m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Capacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	m := NewManager(cfg, echoTurner(), nil, nil, nil, nil)

	_, err := m.Create(context.Background())
	require.NoError(t, err)
	_, err = m.Create(context.Background())
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestManager_Send(t *testing.T) {
	pub := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := NewManager(testConfig(), echoTurner(), fakeRedactor{}, pub, metrics, nil)
	ctx := context.Background()

	snap, err := m.Create(ctx)
	require.NoError(t, err)

	res, err := m.Send(ctx, snap.ID, "my key is sk-secret", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: my key is [REDACTED:openai-api-key]", res.Reply)
	assert.Equal(t, []string{"openai-api-key"}, res.Redactions)
	assert.Equal(t, workflow.StageDiscovery, res.Stage)

	got, err := m.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "my key is [REDACTED:openai-api-key]", got.State.Messages[0].Content)
	assert.Equal(t, 1, got.UserTurns)

	var steps []string
	res, err = m.Send(ctx, snap.ID, "next", func(s string) { steps = append(steps, s) })
	require.NoError(t, err)
	assert.Equal(t, workflow.StageScoping, res.Stage)
	assert.Equal(t, workflow.StageDiscovery, res.PreviousStage)
	assert.Equal(t, []string{"working"}, steps)

	assert.Equal(t, []events.Kind{events.KindCreated, events.KindTurn, events.KindTurn, events.KindStageChanged}, pub.kinds())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.turns.WithLabelValues("discovery", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("discovery", "scoping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.redactions))
}

func TestManager_SendValidation(t *testing.T) {
	m := NewManager(testConfig(), echoTurner(), nil, nil, nil, nil)
	snap, err := m.Create(context.Background())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), snap.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = m.Send(context.Background(), "missing", "hello", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_FailedTurnKeepsState(t *testing.T) {
	boom := errors.New("model down")
	failing := turnerFunc(func(context.Context, *workflow.ConversationState, string, orchestrator.StepFunc) (*orchestrator.TurnResult, error) {
		return nil, boom
	})
	m := NewManager(testConfig(), failing, nil, nil, nil, nil)
	snap, err := m.Create(context.Background())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), snap.ID, "hello", nil)
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Empty(t, got.State.Messages)
}

func TestManager_Spec(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewManager(testConfig(), echoTurner(), nil, pub, nil, nil)
	ctx := context.Background()
	snap, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = m.Spec(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrSpecNotReady)

	var res *TurnResult
	for i := 0; i < 3; i++ {
		res, err = m.Send(ctx, snap.ID, "next", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, workflow.StageDone, res.Stage)
	assert.Equal(t, "# Product Spec: X", res.Spec)

	spec, err := m.Spec(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Product Spec: X", spec)
	assert.Contains(t, pub.kinds(), events.KindSpecReady)
}

func TestManager_DeleteAndSweep(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewManager(testConfig(), echoTurner(), nil, pub, nil, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	a, err := m.Create(ctx)
	require.NoError(t, err)
	b, err := m.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, a.ID))
	assert.ErrorIs(t, m.Delete(ctx, a.ID), ErrNotFound)
	assert.Contains(t, pub.kinds(), events.KindDeleted)

	now = now.Add(30 * time.Minute)
	assert.Zero(t, m.Sweep())
	now = now.Add(31 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestManager_TurnsOnOneSessionAreSerialized(t *testing.T) {
	var inFlight, maxInFlight int32
	slow := turnerFunc(func(ctx context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return echoTurner()(ctx, state, input, step)
	})
	m := NewManager(testConfig(), slow, nil, nil, nil, nil)
	snap, err := m.Create(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Send(context.Background(), snap.ID, "hello", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	got, err := m.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.Messages, 16)
}

func TestMetrics_NegotiationRounds(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.observeNegotiation(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() != "specd_negotiation_rounds" {
			continue
		}
		found = true
		h := f.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(1), h.GetSampleCount())
		assert.Equal(t, 2.0, h.GetSampleSum())
	}
	assert.True(t, found)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.observeNegotiation(1) })
}
