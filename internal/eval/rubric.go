package eval

import "strings"

// Dimension is one rubric axis scored 1 to 5.
type Dimension struct {
	Name        string
	Description string
}

const (
	MinScore = 1
	MaxScore = 5
)

// Rubric lists the dimensions a reviewer scores each transcript on.
var Rubric = []Dimension{
	{
		Name: "discovery_depth",
		Description: "Right questions asked; vague answers probed; key areas (target user, problem, " +
			"alternatives, success metric, etc.) covered. 1=missed most, 5=thorough and probing.",
	},
	{
		Name: "conversation_naturalness",
		Description: "Human PM feel vs. form feel. One question at a time, references previous answers, " +
			"warm and conversational. 1=robotic/form-like, 5=feels like a real PM.",
	},
	{
		Name: "scoping_quality",
		Description: "Correct P0s; justified cuts; MVP buildable in 2-4 weeks; one core user flow identified; " +
			"social/dashboards/admin not P0. 1=poor scope, 5=clear, justified MVP.",
	},
	{
		Name: "spec_accuracy",
		Description: "Spec matches discussion; no hallucinations; TBD where unknown. " +
			"1=wrong or hallucinated, 5=accurate and complete.",
	},
	{
		Name: "argue_back_quality",
		Description: "Evaluates pushback on strength/impact/core-ness; concedes or holds firm with reasoning; " +
			"graceful after max rounds. 1=ignores or caves blindly, 5=nuanced evaluation.",
	},
}

// RubricText renders the rubric for a human or model reviewer.
func RubricText() string {
	var b strings.Builder
	b.WriteString("Scoring rubric (1-5 per dimension):\n\n")
	for _, d := range Rubric {
		b.WriteString("- " + d.Name + ": " + d.Description + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
