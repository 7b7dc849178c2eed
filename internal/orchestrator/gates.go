package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// DefaultSkipPhrases are the requests treated as attempts to skip ahead.
var DefaultSkipPhrases = []string{
	"just write the spec",
	"skip to spec",
	"skip discovery",
	"skip scoping",
	"skip to the spec",
	"go straight to spec",
	"only need the spec",
	"just give me the spec",
}

// SkipGate refuses messages that ask to jump past the current stage.
type SkipGate struct {
	phrases []string
}

// NewSkipGate creates a skip gate matching phrases case-insensitively, or
// DefaultSkipPhrases when none are given.
func NewSkipGate(phrases ...string) *SkipGate {
	if len(phrases) == 0 {
		phrases = DefaultSkipPhrases
	}
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &SkipGate{phrases: lowered}
}

// Name returns the gate identifier
func (g *SkipGate) Name() string {
	return "skip-prevention"
}

// Check flags input containing a skip phrase. Finished conversations are
// never checked.
func (g *SkipGate) Check(_ context.Context, state *workflow.ConversationState, input string) ([]Violation, error) {
	if state.Stage.Terminal() {
		return nil, nil
	}
	phrase, ok := g.match(input)
	if !ok {
		return nil, nil
	}
	return []Violation{{
		Type:        ViolationStageSkipped,
		Gate:        g.Name(),
		Stage:       state.Stage,
		Description: fmt.Sprintf("asked to skip ahead (%q) during %s", phrase, state.Stage),
		DetectedAt:  time.Now(),
	}}, nil
}

func (g *SkipGate) match(input string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	for _, p := range g.phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}
