package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/llm"
)

var policyInstructions = map[MessagePolicy]string{
	PolicyMinimal: "Reply with one or two words unless the PM explicitly asks for more. " +
		"Only expand when the PM probes (e.g. 'can you be more specific?'). " +
		"Stay in character as a founder who gives minimal answers.",
	PolicyExpansive: "Give full, detailed answers when asked. Accept scope proposals and summaries " +
		"readily. Confirm quickly. Stay in character as a founder with a clear idea " +
		"who is cooperative.",
	PolicyPushback: "When the PM proposes cutting features, push back. Argue that certain features " +
		"(e.g. social feed, admin panel) are core or essential. Want to see the agent " +
		"evaluate your argument and either concede or hold firm. Stay in character.",
	PolicyPivot: "Start with the initial idea. After about 3-4 exchanges, shift to a related but " +
		"different idea (e.g. nutritionists instead of gym trainers, or B2B for gym owners). " +
		"Stay in character as a founder who changes their mind mid-conversation.",
}

// ErrEmptyTranscript is returned when the founder is asked to speak before
// any exchange happened.
var ErrEmptyTranscript = errors.New("transcript must contain at least one exchange")

// Founder is an LLM roleplaying the founder side of a conversation.
type Founder struct {
	gen    llm.Generator
	system string
}

// NewFounder creates a simulated founder for a persona and policy.
func NewFounder(gen llm.Generator, persona string, policy MessagePolicy) *Founder {
	return &Founder{gen: gen, system: founderPrompt(persona, policy)}
}

func founderPrompt(persona string, policy MessagePolicy) string {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	instruction, ok := policyInstructions[policy]
	if !ok {
		policy = PolicyExpansive
		instruction = policyInstructions[PolicyExpansive]
	}
	return "You are roleplaying as a founder in a product discovery conversation with an AI PM. " +
		"Your goal is to stay in character and respond as this founder would.\n\n" +
		"PERSONA:\n" + strings.TrimSpace(persona) + "\n\n" +
		fmt.Sprintf("BEHAVIOR (message policy = %s):\n", policy) + instruction + "\n\n" +
		"Respond with ONLY the founder's next message, with no labels and no meta-commentary. " +
		"One short paragraph or a few sentences max unless the policy says to be very brief."
}

// founderMessages flips roles: the founder's own prior messages are the
// assistant turns and the PM's replies are the user turns.
func founderMessages(system string, transcript []Entry) []llm.Message {
	msgs := make([]llm.Message, 0, 1+2*len(transcript))
	msgs = append(msgs, llm.System(system))
	for _, e := range transcript {
		msgs = append(msgs, llm.Assistant(e.User), llm.User(e.Assistant))
	}
	return msgs
}

// Next generates the founder's next message.
func (f *Founder) Next(ctx context.Context, transcript []Entry) (string, error) {
	if len(transcript) == 0 {
		return "", ErrEmptyTranscript
	}
	reply, err := f.gen.Generate(ctx, llm.TaskExtraction, founderMessages(f.system, transcript))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
