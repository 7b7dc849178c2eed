package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunMetadata describes an eval run in the report header.
type RunMetadata struct {
	Timestamp time.Time
	// Models maps task names to the model that served them.
	Models map[string]string
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func modelsLine(models map[string]string) string {
	if len(models) == 0 {
		return "unavailable"
	}
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+models[k])
	}
	return strings.Join(parts, ", ")
}

func assertionRows(results []AssertResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		line := fmt.Sprintf("- [%s] `%s`", mark, r.Name)
		if !r.Passed && r.Detail != "" {
			line += ": " + r.Detail
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Checklist renders one scenario's assertions as plain text.
func Checklist(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Assertions: %s [%d/%d passed] ---\n", res.Scenario, res.Passed(), len(res.Assertions))
	if res.Error != "" {
		fmt.Fprintf(&b, "  ERROR: %s\n", res.Error)
	}
	for _, r := range res.Assertions {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %s", mark, r.Name)
		if !r.Passed && r.Detail != "" {
			fmt.Fprintf(&b, "  (%s)", r.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderReport renders the Markdown report for a run.
func RenderReport(results []*Result, meta RunMetadata) string {
	human := meta.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")
	var lines []string

	lines = append(lines,
		"# Eval Report: "+human,
		"",
		"## Run Metadata",
		"",
		"- **Models:** "+modelsLine(meta.Models),
		fmt.Sprintf("- **Scenarios run:** %d", len(results)),
		"- **Timestamp:** "+human,
		"",
		"## Summary",
		"",
		"| Scenario | Assertions | Turns | Reached Done | Spec Length | Transcript |",
		"|---|---|---|---|---|---|",
	)

	totalPassed, totalChecks := 0, 0
	for _, r := range results {
		if r.Error != "" || r.Outcome == nil {
			lines = append(lines, fmt.Sprintf("| %s | ERROR | - | - | - | - |", r.Scenario))
			continue
		}
		passed := r.Passed()
		totalPassed += passed
		totalChecks += len(r.Assertions)
		link := "-"
		if r.TranscriptPath != "" {
			name := filepath.Base(r.TranscriptPath)
			link = fmt.Sprintf("[transcript](%s)", name)
		}
		lines = append(lines, fmt.Sprintf("| %s | %d/%d | %d | %s | %d | %s |",
			r.Scenario, passed, len(r.Assertions), r.Outcome.TurnCount,
			yesNo(r.Outcome.ReachedDone), r.Outcome.SpecLength(), link))
	}
	lines = append(lines,
		fmt.Sprintf("| **Total** | **%d/%d** | | | | |", totalPassed, totalChecks),
		"",
		"## Deterministic Assertions",
		"",
		"> Programmatic pass/fail checks on the transcript and final state.",
		"> Each check is either universal (all scenarios) or scenario-specific.",
		"",
	)

	for _, r := range results {
		lines = append(lines, fmt.Sprintf("### %s (%d/%d passed)", r.Scenario, r.Passed(), len(r.Assertions)), "")
		switch {
		case r.Error != "":
			lines = append(lines, "> **ERROR:** "+r.Error)
		case len(r.Assertions) > 0:
			lines = append(lines, assertionRows(r.Assertions))
		default:
			lines = append(lines, "> No assertions recorded.")
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"## Rubric",
		"",
		"Score each transcript by hand on the dimensions below.",
		"",
		"```",
		RubricText(),
		"```",
		"",
	)
	return strings.Join(lines, "\n")
}

// WriteReport writes eval_<timestamp>.md into dir and returns its path.
func WriteReport(dir string, results []*Result, meta RunMetadata) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	p := filepath.Join(dir, fmt.Sprintf("eval_%s.md", meta.Timestamp.UTC().Format("20060102_150405")))
	if err := os.WriteFile(p, []byte(RenderReport(results, meta)), 0o600); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return p, nil
}
