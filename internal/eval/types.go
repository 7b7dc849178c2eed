// Package eval runs scripted and simulated founder conversations through the
// orchestrator and checks the outcome against deterministic assertions.
package eval

import (
	"time"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// MessagePolicy selects how the simulated founder behaves.
type MessagePolicy string

const (
	PolicyMinimal   MessagePolicy = "minimal"
	PolicyExpansive MessagePolicy = "expansive"
	PolicyPushback  MessagePolicy = "pushback"
	PolicyPivot     MessagePolicy = "pivot"
)

const (
	// DefaultMaxTurns caps a conversation when the scenario sets no limit.
	DefaultMaxTurns = 30

	defaultPersona        = "You are a founder with a product idea."
	defaultInitialMessage = "I have a product idea."

	// stageError marks a transcript entry whose turn failed.
	stageError workflow.Stage = "error"

	maxAssistantChars = 2000
)

// Scenario describes one evaluated conversation.
type Scenario struct {
	Name          string        `koanf:"name" json:"name"`
	Description   string        `koanf:"description" json:"description,omitempty"`
	Persona       string        `koanf:"persona" json:"persona"`
	MessagePolicy MessagePolicy `koanf:"message_policy" json:"message_policy"`
	// InitialMessage opens a simulated conversation.
	InitialMessage string `koanf:"initial_message" json:"initial_message"`
	// Messages, when set, replace the simulated founder with a fixed script.
	Messages []string `koanf:"messages" json:"messages,omitempty"`
	MaxTurns int      `koanf:"max_turns" json:"max_turns"`
}

// Entry is one user turn and the reply it got.
type Entry struct {
	User      string         `json:"user"`
	Assistant string         `json:"assistant"`
	Stage     workflow.Stage `json:"stage"`
	// Through lists the stages a handoff turn left behind, in order.
	Through []workflow.Stage `json:"through,omitempty"`
}

// Outcome summarizes the final conversation state for assertions.
type Outcome struct {
	Stage             workflow.Stage            `json:"stage"`
	ReachedDone       bool                      `json:"reached_done"`
	TurnCount         int                       `json:"turn_count"`
	StagesVisited     []workflow.Stage          `json:"stages_visited"`
	Discovery         workflow.DiscoverySummary `json:"discovery"`
	Scoping           *workflow.ScopingOutput   `json:"scoping,omitempty"`
	SpecMarkdown      string                    `json:"spec_markdown"`
	NegotiationRounds int                       `json:"negotiation_rounds"`
}

// SpecLength is the length of the generated spec in bytes.
func (o *Outcome) SpecLength() int { return len(o.SpecMarkdown) }

// AssertResult is one pass/fail check.
type AssertResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of running one scenario.
type Result struct {
	Scenario       string         `json:"scenario"`
	Transcript     []Entry        `json:"transcript"`
	Outcome        *Outcome       `json:"outcome,omitempty"`
	Assertions     []AssertResult `json:"assertions"`
	Error          string         `json:"error,omitempty"`
	Duration       time.Duration  `json:"duration"`
	TranscriptPath string         `json:"-"`
}

// Passed counts passing assertions.
func (r *Result) Passed() int {
	n := 0
	for _, a := range r.Assertions {
		if a.Passed {
			n++
		}
	}
	return n
}
