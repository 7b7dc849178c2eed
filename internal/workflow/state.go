package workflow

import (
	"fmt"
	"strings"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the single mutable aggregate for one session.
type ConversationState struct {
	Stage    Stage     `json:"stage"`
	Messages []Message `json:"messages"`

	Discovery DiscoverySummary `json:"discovery"`
	Scoping   *ScopingOutput   `json:"scoping,omitempty"`

	NegotiationRounds    int `json:"negotiation_rounds"`
	MaxNegotiationRounds int `json:"max_negotiation_rounds"`

	SpecMarkdown string `json:"spec_markdown,omitempty"`

	// SummaryShown is set while the discovery recap awaits confirmation.
	SummaryShown bool `json:"summary_shown"`
	// AwaitingScopeAgreement is set while the scope proposal awaits a reply.
	AwaitingScopeAgreement bool `json:"awaiting_scope_agreement"`
	ScopeAgreed            bool `json:"scope_agreed"`
}

// NewConversationState creates the state for a fresh session.
func NewConversationState(maxNegotiationRounds int) *ConversationState {
	return &ConversationState{
		Stage:                StageDiscovery,
		MaxNegotiationRounds: maxNegotiationRounds,
	}
}

// Clone returns a deep copy.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.Discovery = s.Discovery.Clone()
	if s.Scoping != nil {
		c.Scoping = s.Scoping.Clone()
	}
	return &c
}

// Append adds a message to the transcript.
func (s *ConversationState) Append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// UserTurns counts user messages in the transcript.
func (s *ConversationState) UserTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Transcript renders the messages as "role: content" lines.
func (s *ConversationState) Transcript() string {
	lines := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Advance moves the state to the next stage. It refuses anything other than
// a single forward step.
func (s *ConversationState) Advance(to Stage) error {
	next, ok := s.Stage.Next()
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, to)
	}
	s.Stage = to
	return nil
}

// NegotiationExhausted reports whether the round ceiling has been reached.
func (s *ConversationState) NegotiationExhausted() bool {
	return s.NegotiationRounds >= s.MaxNegotiationRounds
}
