package workflow

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/specd/internal/config"
)

// StageHandler owns the conversational logic of one stage. Handle mutates
// the state it is given and returns the assistant reply. input is empty when
// the orchestrator invokes the handler for its opening turn after a handoff.
type StageHandler interface {
	Stage() Stage
	Handle(ctx context.Context, state *ConversationState, input string) (string, error)
}

// Intent is the classified reaction to a scope proposal.
type Intent string

const (
	IntentAgree    Intent = "AGREE"
	IntentPushback Intent = "PUSHBACK"
	IntentQuestion Intent = "QUESTION"
)

// DiscoveryExtractor turns a transcript into summary fields. Malformed model
// output yields an empty summary, not an error.
type DiscoveryExtractor interface {
	ExtractDiscovery(ctx context.Context, transcript string) (DiscoverySummary, error)
}

// ScopingExtractor turns a scope proposal into structured output. Malformed
// model output yields an empty ScopingOutput, not an error.
type ScopingExtractor interface {
	ExtractScoping(ctx context.Context, proposal string) (ScopingOutput, error)
}

// ReviewClassifier decides whether the user confirmed the discovery recap.
// Ambiguous replies are not confirmations.
type ReviewClassifier interface {
	ClassifyReview(ctx context.Context, reply string) (bool, error)
}

// IntentClassifier classifies a reply to the scope proposal. Ambiguous
// replies are pushback.
type IntentClassifier interface {
	ClassifyScopingIntent(ctx context.Context, reply string) (Intent, error)
}

// Searcher finds comparable products. It returns an empty list on failure.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []SearchResult
}

// Settings are the tunable limits of the state machine.
type Settings struct {
	Completeness         CompletenessPolicy
	MinDiscoveryTurns    int
	MaxNegotiationRounds int
	SearchMaxResults     int
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		Completeness:         DefaultCompletenessPolicy(),
		MinDiscoveryTurns:    4,
		MaxNegotiationRounds: 3,
		SearchMaxResults:     5,
	}
}

// SettingsFromConfig validates and converts the workflow config section.
func SettingsFromConfig(c config.WorkflowConfig) (Settings, error) {
	mandatory, err := ParseFields(c.MandatoryFields)
	if err != nil {
		return Settings{}, fmt.Errorf("mandatory_fields: %w", err)
	}
	return Settings{
		Completeness: CompletenessPolicy{
			Threshold: c.CompletenessThreshold,
			Mandatory: mandatory,
		},
		MinDiscoveryTurns:    c.MinDiscoveryTurns,
		MaxNegotiationRounds: c.MaxNegotiationRounds,
		SearchMaxResults:     c.SearchMaxResults,
	}, nil
}
