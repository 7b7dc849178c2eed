package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"

	"github.com/fyrsmithlabs/specd/internal/config"
)

// Finding describes one redacted secret. The secret itself is never kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// Result is the outcome of redacting one text.
type Result struct {
	Text     string    `json:"text"`
	Findings []Finding `json:"findings,omitempty"`
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool { return len(r.Findings) > 0 }

// RuleIDs returns the distinct rule IDs that matched, sorted.
func (r Result) RuleIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Redactor replaces secrets in text with [REDACTED:rule-id] markers.
type Redactor interface {
	Redact(text string) Result
}

// Noop leaves text untouched.
type Noop struct{}

// Redact returns text unchanged.
func (Noop) Redact(text string) Result { return Result{Text: text} }

// Scanner is the gitleaks-backed Redactor.
type Scanner struct {
	// gitleaks detectors accumulate findings internally.
	mu        sync.Mutex
	detector  *detect.Detector
	rules     []compiledRule
	allowlist *compiledAllowlist
}

// New creates the Redactor selected by cfg.
func New(cfg config.SecretsConfig) (Redactor, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	allow, err := LoadAllowlist(cfg.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	return NewScanner(allow, DefaultRules())
}

// NewScanner builds a scanner from the gitleaks default configuration plus
// the given local rules.
func NewScanner(allow *Allowlist, rules []Rule) (*Scanner, error) {
	compiledAllow, err := allow.compile()
	if err != nil {
		return nil, err
	}
	compiledRules, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if allow != nil && (len(allow.Regexes) > 0 || len(allow.StopWords) > 0) {
		applyAllowlist(&detector.Config, compiledAllow, allow.StopWords)
	}
	return &Scanner{detector: detector, rules: compiledRules, allowlist: compiledAllow}, nil
}

func applyAllowlist(cfg *gitleaksConfig.Config, allow *compiledAllowlist, stopWords []string) {
	global := &gitleaksConfig.Allowlist{Description: "specd allowlist"}
	for _, re := range allow.regexes {
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, stopWords...)
	cfg.Allowlists = append(cfg.Allowlists, global)
}

type span struct {
	start, end int
	ruleID     string
	desc       string
}

// Redact implements Redactor.
func (s *Scanner) Redact(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}

	var spans []span
	for _, r := range s.rules {
		for _, m := range r.re.FindAllStringIndex(text, -1) {
			if s.allowlist.allows(text[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{start: m[0], end: m[1], ruleID: r.ID, desc: r.Description})
		}
	}

	s.mu.Lock()
	leaks := s.detector.DetectString(text)
	s.mu.Unlock()
	for _, f := range leaks {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" || s.allowlist.allows(secret) {
			continue
		}
		for offset := 0; ; {
			i := strings.Index(text[offset:], secret)
			if i < 0 {
				break
			}
			start := offset + i
			spans = append(spans, span{start: start, end: start + len(secret), ruleID: f.RuleID, desc: f.Description})
			offset = start + len(secret)
		}
	}

	if len(spans) == 0 {
		return Result{Text: text}
	}
	merged := mergeSpans(spans)

	var sb strings.Builder
	findings := make([]Finding, 0, len(merged))
	last := 0
	for _, sp := range merged {
		sb.WriteString(text[last:sp.start])
		sb.WriteString("[REDACTED:" + sp.ruleID + "]")
		last = sp.end
		findings = append(findings, Finding{RuleID: sp.ruleID, Description: sp.desc, Start: sp.start, End: sp.end})
	}
	sb.WriteString(text[last:])
	return Result{Text: sb.String(), Findings: findings}
}

// mergeSpans sorts spans and folds overlapping ones into the first.
func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start < last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var (
	_ Redactor = (*Scanner)(nil)
	_ Redactor = Noop{}
)
