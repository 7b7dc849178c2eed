package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Turner runs one user turn against a conversation state.
type Turner interface {
	Handle(ctx context.Context, state *workflow.ConversationState, input string, step orchestrator.StepFunc) (*orchestrator.TurnResult, error)
}

// Runner drives scenarios through an orchestrator.
type Runner struct {
	turner        Turner
	founderLLM    llm.Generator
	settings      workflow.Settings
	turnDelay     time.Duration
	transcriptDir string
	logger        *logging.Logger
	now           func() time.Time
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Turner Turner
	// FounderLLM powers the simulated founder. Required unless every
	// scenario carries a fixed message script.
	FounderLLM llm.Generator
	Settings   workflow.Settings
	// TurnDelay pauses between simulated turns to stay under provider
	// rate limits.
	TurnDelay time.Duration
	// TranscriptDir, when set, receives one JSON transcript per scenario.
	TranscriptDir string
	Logger        *logging.Logger
}

// NewRunner creates a new scenario runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Turner == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	settings := cfg.Settings
	if settings.MaxNegotiationRounds <= 0 {
		settings = workflow.DefaultSettings()
	}
	return &Runner{
		turner:        cfg.Turner,
		founderLLM:    cfg.FounderLLM,
		settings:      settings,
		turnDelay:     cfg.TurnDelay,
		transcriptDir: cfg.TranscriptDir,
		logger:        logger.Named("eval"),
		now:           time.Now,
	}, nil
}

// RunScenario runs one conversation and checks it. Conversation failures are
// recorded in the transcript; only setup and context errors are returned.
func (r *Runner) RunScenario(ctx context.Context, s *Scenario) (*Result, error) {
	start := r.now()
	r.logger.Info(ctx, "starting scenario",
		zap.String("scenario", s.Name),
		zap.String("policy", string(s.MessagePolicy)),
		zap.Int("max_turns", s.MaxTurns))

	if len(s.Messages) == 0 && r.founderLLM == nil {
		return nil, fmt.Errorf("scenario %q: founder LLM required for simulated conversations", s.Name)
	}

	state := workflow.NewConversationState(r.settings.MaxNegotiationRounds)
	var transcript []Entry
	var err error
	if len(s.Messages) > 0 {
		state, transcript = r.runScripted(ctx, s, state)
	} else {
		state, transcript, err = r.runSimulated(ctx, s, state)
		if err != nil {
			return nil, err
		}
	}

	outcome := summarize(state, transcript)
	res := &Result{
		Scenario:   s.Name,
		Transcript: transcript,
		Outcome:    outcome,
		Assertions: RunAssertions(s.Name, transcript, outcome),
		Duration:   r.now().Sub(start),
	}

	if r.transcriptDir != "" {
		p, err := r.saveTranscript(s.Name, res, start)
		if err != nil {
			r.logger.Warn(ctx, "failed to save transcript", zap.Error(err))
		} else {
			res.TranscriptPath = p
		}
	}

	r.logger.Info(ctx, "scenario finished",
		zap.String("scenario", s.Name),
		zap.String("stage", string(outcome.Stage)),
		zap.Int("turns", outcome.TurnCount),
		zap.Int("passed", res.Passed()),
		zap.Int("assertions", len(res.Assertions)))
	return res, nil
}

// RunScenarios runs scenarios in order. A scenario that fails to start is
// reported with its error and the rest still run.
func (r *Runner) RunScenarios(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for i, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				return results, err
			}
		}
		res, err := r.RunScenario(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			res = &Result{Scenario: s.Name, Error: err.Error()}
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runScripted(ctx context.Context, s *Scenario, state *workflow.ConversationState) (*workflow.ConversationState, []Entry) {
	var transcript []Entry
	for i, msg := range s.Messages {
		if i >= s.MaxTurns {
			break
		}
		var entry Entry
		var done bool
		state, entry, done = r.turn(ctx, state, msg)
		transcript = append(transcript, entry)
		if done {
			break
		}
	}
	return state, transcript
}

func (r *Runner) runSimulated(ctx context.Context, s *Scenario, state *workflow.ConversationState) (*workflow.ConversationState, []Entry, error) {
	founder := NewFounder(r.founderLLM, s.Persona, s.MessagePolicy)
	var transcript []Entry
	msg := s.InitialMessage
	for i := 0; i < s.MaxTurns; i++ {
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				return state, transcript, err
			}
		}
		var entry Entry
		var done bool
		state, entry, done = r.turn(ctx, state, msg)
		transcript = append(transcript, entry)
		if done {
			break
		}

		next, err := founder.Next(ctx, transcript)
		if err != nil {
			if ctx.Err() != nil {
				return state, transcript, ctx.Err()
			}
			transcript = append(transcript, Entry{User: fmt.Sprintf("[SIM ERROR: %v]", err), Stage: state.Stage})
			break
		}
		if next == "" {
			transcript = append(transcript, Entry{User: "[SIMULATED USER RETURNED EMPTY]", Stage: state.Stage})
			break
		}
		msg = next
	}
	return state, transcript, nil
}

// turn runs one message. done is set when the conversation should stop.
func (r *Runner) turn(ctx context.Context, state *workflow.ConversationState, msg string) (*workflow.ConversationState, Entry, bool) {
	res, err := r.turner.Handle(ctx, state, msg, nil)
	if err != nil {
		r.logger.Warn(ctx, "turn failed", zap.Error(err))
		return state, Entry{User: msg, Assistant: fmt.Sprintf("[ERROR: %v]", err), Stage: stageError}, true
	}
	entry := Entry{
		User:      msg,
		Assistant: truncate(res.Reply, maxAssistantChars),
		Stage:     res.State.Stage,
		Through:   through(res.PreviousStage, res.State.Stage),
	}
	return res.State, entry, res.State.Stage == workflow.StageDone
}

func (r *Runner) pause(ctx context.Context) error {
	if r.turnDelay <= 0 {
		return nil
	}
	t := time.NewTimer(r.turnDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) saveTranscript(name string, res *Result, at time.Time) (string, error) {
	if err := os.MkdirAll(r.transcriptDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create transcript dir: %w", err)
	}
	p := filepath.Join(r.transcriptDir, fmt.Sprintf("%s_%s.json", name, at.UTC().Format("20060102_150405")))
	data, err := json.MarshalIndent(struct {
		Scenario   string   `json:"scenario"`
		Transcript []Entry  `json:"transcript"`
		FinalState *Outcome `json:"final_state"`
	}{name, res.Transcript, res.Outcome}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return p, nil
}

func summarize(state *workflow.ConversationState, transcript []Entry) *Outcome {
	return &Outcome{
		Stage:             state.Stage,
		ReachedDone:       state.Stage == workflow.StageDone,
		TurnCount:         len(transcript),
		StagesVisited:     stagesVisited(transcript),
		Discovery:         state.Discovery.Clone(),
		Scoping:           state.Scoping,
		SpecMarkdown:      state.SpecMarkdown,
		NegotiationRounds: state.NegotiationRounds,
	}
}

// through returns the stages from from up to, but excluding, to.
func through(from, to workflow.Stage) []workflow.Stage {
	if from == to || from == "" {
		return nil
	}
	var out []workflow.Stage
	for st := from; st != to; {
		out = append(out, st)
		next, ok := st.Next()
		if !ok {
			return nil
		}
		st = next
	}
	return out
}

// stagesVisited lists stages in order, collapsing consecutive repeats.
// Stages a handoff passed through count as visited.
func stagesVisited(transcript []Entry) []workflow.Stage {
	var seen []workflow.Stage
	add := func(st workflow.Stage) {
		if st != "" && (len(seen) == 0 || seen[len(seen)-1] != st) {
			seen = append(seen, st)
		}
	}
	for _, e := range transcript {
		for _, st := range e.Through {
			add(st)
		}
		add(e.Stage)
	}
	return seen
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// FormatTranscript renders a transcript for human review.
func FormatTranscript(transcript []Entry) string {
	var out string
	for _, e := range transcript {
		out += fmt.Sprintf("User: %s\nAssistant: %s\n[Stage: %s]\n\n", e.User, e.Assistant, e.Stage)
	}
	return out
}
