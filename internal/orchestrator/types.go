package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// ErrNoHandler is returned when no handler is registered for a stage.
var ErrNoHandler = errors.New("no handler registered for stage")

// ViolationType categorizes workflow violations.
type ViolationType string

const (
	// ViolationStageSkipped means the user asked to jump ahead of the
	// current stage.
	ViolationStageSkipped ViolationType = "stage_skipped"
)

// Violation records a gate refusing a turn.
type Violation struct {
	Type        ViolationType  `json:"type"`
	Gate        string         `json:"gate"`
	Stage       workflow.Stage `json:"stage"`
	Description string         `json:"description"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// Gate inspects a turn before it is dispatched. Any violation refuses the
// turn.
type Gate interface {
	// Name returns the gate identifier
	Name() string

	// Check validates the incoming message against the current state
	Check(ctx context.Context, state *workflow.ConversationState, input string) ([]Violation, error)
}

// StepFunc receives progress notices for long-running handoffs.
type StepFunc func(step string)

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	// Reply is what the user sees.
	Reply string `json:"reply"`
	// State is the state after the turn. It is the input state when the
	// turn was refused or the conversation was already done.
	State *workflow.ConversationState `json:"-"`
	// PreviousStage is the stage the turn started in.
	PreviousStage workflow.Stage `json:"previous_stage"`
	// Steps lists the progress notices reported during the turn.
	Steps []string `json:"steps,omitempty"`
	// Skipped is set when a gate refused the turn.
	Skipped    bool        `json:"skipped"`
	Violations []Violation `json:"violations,omitempty"`
}

// Advanced reports whether the turn moved the conversation forward.
func (r *TurnResult) Advanced() bool {
	return r.State != nil && r.State.Stage != r.PreviousStage
}
