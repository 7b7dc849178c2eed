// Package session owns conversation state. Each session is an explicitly
// owned record: turns on one session are serialized, while different
// sessions proceed independently.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/events"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/secrets"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrEmptyMessage = errors.New("message is empty")
	ErrSpecNotReady = errors.New("spec is not ready yet")
	ErrCapacity     = errors.New("session limit reached")
)

// Turner runs one user turn against a state. *orchestrator.Orchestrator
// satisfies it.
type Turner interface {
	Handle(ctx context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error)
}

// Config bounds the store.
type Config struct {
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
	Settings      workflow.Settings
}

// ConfigFrom converts the session config section.
func ConfigFrom(c config.SessionConfig, settings workflow.Settings) Config {
	return Config{
		TTL:           c.TTL.Duration(),
		MaxSessions:   c.MaxSessions,
		SweepInterval: c.SweepInterval.Duration(),
		Settings:      settings,
	}
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID           string                      `json:"id"`
	Stage        workflow.Stage              `json:"stage"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	UserTurns    int                         `json:"user_turns"`
	Completeness workflow.Completeness       `json:"completeness"`
	SpecReady    bool                        `json:"spec_ready"`
	State        *workflow.ConversationState `json:"state"`
}

// TurnResult is what a caller gets back from Send.
type TurnResult struct {
	Reply         string                `json:"reply"`
	Stage         workflow.Stage        `json:"stage"`
	PreviousStage workflow.Stage        `json:"previous_stage"`
	Steps         []string              `json:"steps,omitempty"`
	Skipped       bool                  `json:"skipped"`
	Spec          string                `json:"spec,omitempty"`
	Completeness  workflow.Completeness `json:"completeness"`
	Redactions    []string              `json:"redactions,omitempty"`
}

type entry struct {
	mu        sync.Mutex
	id        string
	state     *workflow.ConversationState
	createdAt time.Time
	updatedAt time.Time
}

// Manager holds sessions in memory.
type Manager struct {
	cfg       Config
	turner    Turner
	redactor  secrets.Redactor
	publisher events.Publisher
	metrics   *Metrics
	logger    *logging.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a manager. redactor, publisher and metrics may be nil.
func NewManager(cfg Config, turner Turner, redactor secrets.Redactor, publisher events.Publisher, metrics *Metrics, logger *logging.Logger) *Manager {
	if redactor == nil {
		redactor = secrets.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	return &Manager{
		cfg:       cfg,
		turner:    turner,
		redactor:  redactor,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("session"),
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// Create starts a new conversation in discovery.
func (m *Manager) Create(ctx context.Context) (*Snapshot, error) {
	now := m.now()
	e := &entry{
		id:        uuid.New().String(),
		state:     workflow.NewConversationState(m.cfg.Settings.MaxNegotiationRounds),
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	m.sweepLocked(now)
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrCapacity
	}
	m.sessions[e.id] = e
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.setActive(n)
	ctx = logging.WithSessionID(ctx, e.id)
	m.logger.Info(ctx, "session created")
	m.publish(ctx, events.KindCreated, e.id, e.state.Stage, "")
	return m.snapshot(e), nil
}

// Send runs one user turn. Credentials in text are redacted before the text
// reaches the transcript or any model. A failed turn leaves the session as
// it was.
func (m *Manager) Send(ctx context.Context, id, text string, step orchestrator.StepFunc) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = logging.WithSessionID(ctx, e.id)
	ctx = logging.WithTurnID(ctx, uuid.New().String())

	redaction := m.redactor.Redact(text)
	if redaction.Redacted() {
		m.metrics.observeRedaction()
		m.logger.Warn(ctx, "redacted credentials from user message",
			zap.Strings("rules", redaction.RuleIDs()))
	}

	from := e.state.Stage
	start := m.now()
	res, err := m.turner.Handle(ctx, e.state, redaction.Text, step)
	elapsed := m.now().Sub(start)
	if err != nil {
		m.metrics.observeTurn(string(from), "error", elapsed)
		m.logger.Error(ctx, "turn failed", zap.String("stage", string(from)), zap.Error(err))
		return nil, err
	}

	outcome := "ok"
	if res.Skipped {
		outcome = "skipped"
	}
	m.metrics.observeTurn(string(from), outcome, elapsed)

	e.state = res.State
	e.updatedAt = m.now()
	to := e.state.Stage

	m.publish(ctx, events.KindTurn, e.id, to, from)
	if to != from {
		m.metrics.observeTransition(string(from), string(to))
		if from == workflow.StageScoping {
			m.metrics.observeNegotiation(e.state.NegotiationRounds)
		}
		m.logger.Info(ctx, "stage changed", zap.String("from", string(from)), zap.String("to", string(to)))
		m.publish(ctx, events.KindStageChanged, e.id, to, from)
		if to == workflow.StageDone {
			m.publish(ctx, events.KindSpecReady, e.id, to, from)
		}
	}

	out := &TurnResult{
		Reply:         res.Reply,
		Stage:         to,
		PreviousStage: from,
		Steps:         res.Steps,
		Skipped:       res.Skipped,
		Completeness:  m.cfg.Settings.Completeness.Evaluate(e.state.Discovery),
		Redactions:    redaction.RuleIDs(),
	}
	if to == workflow.StageDone {
		out.Spec = e.state.SpecMarkdown
	}
	return out, nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(_ context.Context, id string) (*Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return m.snapshot(e), nil
}

// Spec returns the finished spec document.
func (m *Manager) Spec(_ context.Context, id string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Stage != workflow.StageDone || e.state.SpecMarkdown == "" {
		return "", ErrSpecNotReady
	}
	return e.state.SpecMarkdown, nil
}

// Delete removes the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.metrics.setActive(n)
	ctx = logging.WithSessionID(ctx, id)
	m.logger.Info(ctx, "session deleted")
	m.publish(ctx, events.KindDeleted, id, e.stage(), "")
	return nil
}

// List returns snapshots of every session, most recently updated first.
func (m *Manager) List(_ context.Context) []*Snapshot {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, m.snapshot(e))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	removed := m.sweepLocked(m.now())
	n := len(m.sessions)
	m.mu.Unlock()
	if removed > 0 {
		m.metrics.setActive(n)
		m.logger.Info(context.Background(), "evicted idle sessions", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps on every SweepInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// sweepLocked must be called with m.mu held. An entry whose lock is held
// is mid-turn and is never evicted.
func (m *Manager) sweepLocked(now time.Time) int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	removed := 0
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		expired := now.Sub(e.updatedAt) > m.cfg.TTL
		e.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// snapshot must be called with e.mu held.
func (m *Manager) snapshot(e *entry) *Snapshot {
	state := e.state.Clone()
	return &Snapshot{
		ID:           e.id,
		Stage:        state.Stage,
		CreatedAt:    e.createdAt,
		UpdatedAt:    e.updatedAt,
		UserTurns:    state.UserTurns(),
		Completeness: m.cfg.Settings.Completeness.Evaluate(state.Discovery),
		SpecReady:    state.Stage == workflow.StageDone && state.SpecMarkdown != "",
		State:        state,
	}
}

func (e *entry) stage() workflow.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Stage
}

func (m *Manager) publish(ctx context.Context, kind events.Kind, id string, stage, previous workflow.Stage) {
	m.publisher.Publish(ctx, events.Event{
		Kind:          kind,
		SessionID:     id,
		Stage:         string(stage),
		PreviousStage: string(previous),
	})
}
