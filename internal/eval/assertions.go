package eval

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

var (
	// socialKeywords must not appear in any P0 feature.
	socialKeywords = []string{"social", "analytics", "admin", "dashboard"}

	// specHeaders are the section prefixes a usable spec is expected to have.
	specHeaders = []string{"## problem", "## mvp", "## core", "## user", "## feature", "## open"}

	requiredStages = []workflow.Stage{workflow.StageDiscovery, workflow.StageScoping, workflow.StageSpec}
)

const (
	minFilledFields     = 6
	minDiscoveryTurns   = 4
	maxSpecTBDs         = 3
	targetUserProbeLen  = 40
	multiQuestionMarks  = 2
	overScoperMinCuts   = 3
	clearThinkerMaxTurn = 15
	pivoterMinTurns     = 6
	vagueMinDiscovery   = 5
)

type assertion func(transcript []Entry, o *Outcome) AssertResult

func check(name string, passed bool, detail string) AssertResult {
	if passed {
		detail = ""
	}
	return AssertResult{Name: name, Passed: passed, Detail: detail}
}

// RunAssertions runs the universal checks plus any specific to scenario.
func RunAssertions(scenario string, transcript []Entry, o *Outcome) []AssertResult {
	results := UniversalAssertions(transcript, o)
	if fn, ok := scenarioAssertions[scenario]; ok {
		results = append(results, fn(transcript, o))
	}
	return results
}

// UniversalAssertions runs the checks every scenario must pass.
func UniversalAssertions(transcript []Entry, o *Outcome) []AssertResult {
	checks := []assertion{
		reachedDone, reachedScoping, specGenerated, allStagesVisited, noErrors,
		targetUserExtracted, coreProblemExtracted, discoveryCompleteness, minDiscovery, noMultiQuestion,
		hasP0Features, hasCutFeatures, hasComparables, socialNotP0, hasCoreUserFlow,
		specMentionsTargetUser, specHasSections, specFewTBD,
	}
	out := make([]AssertResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, c(transcript, o))
	}
	return out
}

func turnsInStage(transcript []Entry, st workflow.Stage) int {
	n := 0
	for _, e := range transcript {
		if e.Stage == st {
			n++
		}
	}
	return n
}

func scoping(o *Outcome) workflow.ScopingOutput {
	if o.Scoping == nil {
		return workflow.ScopingOutput{}
	}
	return *o.Scoping
}

func p0Features(o *Outcome) []workflow.Feature {
	var out []workflow.Feature
	for _, f := range scoping(o).MVPFeatures {
		if f.Priority == workflow.PriorityP0 {
			out = append(out, f)
		}
	}
	return out
}

func reachedDone(_ []Entry, o *Outcome) AssertResult {
	return check("reached_done", o.ReachedDone, fmt.Sprintf("final stage was '%s'", o.Stage))
}

func reachedScoping(_ []Entry, o *Outcome) AssertResult {
	ok := false
	for _, st := range o.StagesVisited {
		if st == workflow.StageScoping {
			ok = true
		}
	}
	return check("reached_scoping", ok, fmt.Sprintf("stages seen: %v", o.StagesVisited))
}

func specGenerated(_ []Entry, o *Outcome) AssertResult {
	return check("spec_generated", o.SpecLength() > 0, "spec markdown is empty")
}

func allStagesVisited(_ []Entry, o *Outcome) AssertResult {
	last := -1
	ok := true
	for _, want := range requiredStages {
		idx := -1
		for i, st := range o.StagesVisited {
			if st == want {
				idx = i
				break
			}
		}
		if idx < 0 || idx < last {
			ok = false
			break
		}
		last = idx
	}
	return check("all_phases_visited", ok, fmt.Sprintf("stages seen: %v", o.StagesVisited))
}

func noErrors(transcript []Entry, _ *Outcome) AssertResult {
	for _, e := range transcript {
		if e.Stage == stageError || strings.Contains(e.Assistant, "[ERROR") {
			return check("no_errors", false, "at least one turn has stage=error or [ERROR in assistant text")
		}
	}
	return check("no_errors", true, "")
}

func targetUserExtracted(_ []Entry, o *Outcome) AssertResult {
	return check("target_user_extracted", o.Discovery.Filled(workflow.FieldTargetUser), "discovery target_user is empty")
}

func coreProblemExtracted(_ []Entry, o *Outcome) AssertResult {
	return check("core_problem_extracted", o.Discovery.Filled(workflow.FieldCoreProblem), "discovery core_problem is empty")
}

func discoveryCompleteness(_ []Entry, o *Outcome) AssertResult {
	filled := 0
	fields := workflow.AllFields()
	for _, f := range fields {
		if o.Discovery.Filled(f) {
			filled++
		}
	}
	return check("discovery_completeness", filled >= minFilledFields,
		fmt.Sprintf("%d/%d fields filled, need >= %d", filled, len(fields), minFilledFields))
}

func minDiscovery(transcript []Entry, _ *Outcome) AssertResult {
	n := turnsInStage(transcript, workflow.StageDiscovery)
	return check("min_discovery_turns", n >= minDiscoveryTurns,
		fmt.Sprintf("only %d discovery turn(s), need >= %d", n, minDiscoveryTurns))
}

func noMultiQuestion(transcript []Entry, _ *Outcome) AssertResult {
	var violations []int
	for i, e := range transcript {
		if e.Stage == workflow.StageDiscovery && strings.Count(e.Assistant, "?") >= multiQuestionMarks {
			violations = append(violations, i)
		}
	}
	return check("no_multi_question", len(violations) == 0,
		fmt.Sprintf("turns %v each contain 2+ '?' (may be asking multiple questions)", violations))
}

func hasP0Features(_ []Entry, o *Outcome) AssertResult {
	return check("has_p0_features", len(p0Features(o)) > 0, "no P0 features in scoping output")
}

func hasCutFeatures(_ []Entry, o *Outcome) AssertResult {
	return check("has_cut_features", len(scoping(o).CutFeatures) >= 1, "scoping cut nothing")
}

func hasComparables(_ []Entry, o *Outcome) AssertResult {
	return check("has_comparable_products", len(scoping(o).ComparableProducts) >= 1, "no comparable products recorded")
}

func socialNotP0(_ []Entry, o *Outcome) AssertResult {
	var violations []string
	for _, f := range p0Features(o) {
		text := strings.ToLower(f.Name + " " + f.Description)
		for _, kw := range socialKeywords {
			if strings.Contains(text, kw) {
				violations = append(violations, f.Name)
				break
			}
		}
	}
	return check("social_not_p0", len(violations) == 0,
		fmt.Sprintf("P0 feature(s) contain social/analytics/admin/dashboard: %v", violations))
}

func hasCoreUserFlow(_ []Entry, o *Outcome) AssertResult {
	return check("has_core_user_flow", strings.TrimSpace(scoping(o).CoreUserFlow) != "", "core user flow is empty")
}

func specMentionsTargetUser(_ []Entry, o *Outcome) AssertResult {
	target := strings.ToLower(strings.TrimSpace(o.Discovery.TargetUser))
	if target == "" || strings.TrimSpace(o.SpecMarkdown) == "" {
		return check("spec_mentions_target_user", false, "skipped, target user or spec is empty")
	}
	if len(target) > targetUserProbeLen {
		target = target[:targetUserProbeLen]
	}
	return check("spec_mentions_target_user", strings.Contains(strings.ToLower(o.SpecMarkdown), target),
		fmt.Sprintf("spec does not contain target user %q", target))
}

func specHasSections(_ []Entry, o *Outcome) AssertResult {
	lower := strings.ToLower(o.SpecMarkdown)
	matched := 0
	for _, h := range specHeaders {
		if strings.Contains(lower, h) {
			matched++
		}
	}
	return check("spec_has_sections", matched >= 2,
		fmt.Sprintf("only %d expected section header(s) found, need >= 2", matched))
}

func specFewTBD(_ []Entry, o *Outcome) AssertResult {
	n := strings.Count(strings.ToUpper(o.SpecMarkdown), "TBD")
	return check("spec_few_tbd", n <= maxSpecTBDs, fmt.Sprintf("%d TBD(s) in spec, expected <= %d", n, maxSpecTBDs))
}

var scenarioAssertions = map[string]assertion{
	"over_scoper": func(_ []Entry, o *Outcome) AssertResult {
		n := len(scoping(o).CutFeatures)
		return check("features_cut", n >= overScoperMinCuts,
			fmt.Sprintf("only %d feature(s) cut, expected >= %d", n, overScoperMinCuts))
	},
	"clear_thinker": func(_ []Entry, o *Outcome) AssertResult {
		return check("finished_efficiently", o.TurnCount <= clearThinkerMaxTurn,
			fmt.Sprintf("took %d turns, expected <= %d", o.TurnCount, clearThinkerMaxTurn))
	},
	"arguer": func(_ []Entry, o *Outcome) AssertResult {
		return check("negotiation_rounds_nonzero", o.NegotiationRounds > 0,
			"no pushback was registered by scoping")
	},
	"pivoter": func(_ []Entry, o *Outcome) AssertResult {
		return check("handled_pivot", o.TurnCount >= pivoterMinTurns,
			fmt.Sprintf("only %d turns, expected >= %d to handle a pivot", o.TurnCount, pivoterMinTurns))
	},
	"vague_founder": func(transcript []Entry, _ *Outcome) AssertResult {
		n := turnsInStage(transcript, workflow.StageDiscovery)
		return check("probed_vague_answers", n >= vagueMinDiscovery,
			fmt.Sprintf("only %d discovery turn(s), expected >= %d", n, vagueMinDiscovery))
	},
}
