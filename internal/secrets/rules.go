package secrets

import "regexp"

// Rule is a local detection rule applied alongside gitleaks.
type Rule struct {
	ID          string
	Description string
	Pattern     string
}

// DefaultRules covers model and search provider keys that show up in
// product conversations.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "groq-api-key", Description: "Groq API Key", Pattern: `gsk_[A-Za-z0-9]{20,}`},
		{ID: "anthropic-api-key", Description: "Anthropic API Key", Pattern: `sk-ant-[A-Za-z0-9_\-]{20,}`},
		{ID: "openai-api-key", Description: "OpenAI API Key", Pattern: `sk-(?:proj-)?[A-Za-z0-9_\-]{32,}`},
		{ID: "jina-api-key", Description: "Jina API Key", Pattern: `jina_[A-Za-z0-9]{20,}`},
		{ID: "github-token", Description: "GitHub Token", Pattern: `gh[pousr]_[A-Za-z0-9]{36}`},
		{ID: "aws-access-key-id", Description: "AWS Access Key ID", Pattern: `(?:AKIA|ASIA)[A-Z0-9]{16}`},
		{ID: "private-key", Description: "Private Key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY-----`},
		{ID: "generic-api-key", Description: "Generic API Key assignment", Pattern: `(?i)(?:api[_-]?key|secret|password)\s*[:=]\s*['"]?[A-Za-z0-9_\-/+]{16,}['"]?`},
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, &ruleError{id: r.ID, err: err}
		}
		out = append(out, compiledRule{Rule: r, re: re})
	}
	return out, nil
}

type ruleError struct {
	id  string
	err error
}

func (e *ruleError) Error() string {
	return "rule " + e.id + ": " + ErrInvalidRegex.Error() + ": " + e.err.Error()
}

func (e *ruleError) Unwrap() error { return ErrInvalidRegex }
