package specwriter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/agents"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const (
	productNameChars    = 50
	defaultPhaseWeeks   = "1-2 weeks"
	defaultProductTitle = "Product"
)

// Fill renders Template from the discovery notes and the agreed scope
// without a model call. Scope may be nil.
func Fill(d workflow.DiscoverySummary, scope *workflow.ScopingOutput) string {
	values := map[string]string{
		"product_name":             workflow.Truncate(agents.Or(d.CoreProblem, defaultProductTitle), productNameChars),
		"problem_statement":        agents.Or(d.CoreProblem, TBD),
		"target_user_persona":      agents.Or(d.TargetUser, TBD),
		"comparable_products":      TBD,
		"cut_features":             TBD,
		"rice_summary":             RICESummary(scope),
		"open_questions_risks":     TBD,
		"technical_considerations": TBD,
	}
	if scope != nil {
		var comps, cuts []string
		for _, c := range scope.ComparableProducts {
			comps = append(comps, fmt.Sprintf("- %s: %s", c.Name, c.Relevance))
		}
		for _, c := range scope.CutFeatures {
			cuts = append(cuts, fmt.Sprintf("- %s: %s", c.Name, c.Reason))
		}
		if len(comps) > 0 {
			values["comparable_products"] = strings.Join(comps, "\n")
		}
		if len(cuts) > 0 {
			values["cut_features"] = strings.Join(cuts, "\n")
		}
	}
	for n := 1; n <= 3; n++ {
		p := phaseSection(scope, n)
		prefix := "phase_" + strconv.Itoa(n) + "_"
		values[prefix+"name"] = p.name
		values[prefix+"weeks"] = p.weeks
		values[prefix+"goal"] = p.goal
		values[prefix+"features"] = p.features
		values[prefix+"flow"] = p.flow
		values[prefix+"screens"] = p.screens
	}

	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(Template))
}

type phase struct {
	name, weeks, goal, features, flow, screens string
}

// phaseSection works out what the plan says about phase n. Without a
// matching implementation phase it falls back to the features tagged with n.
func phaseSection(scope *workflow.ScopingOutput, n int) phase {
	out := phase{
		name:     "Phase " + strconv.Itoa(n),
		weeks:    defaultPhaseWeeks,
		goal:     TBD,
		features: TBD,
		flow:     TBD,
		screens:  TBD,
	}
	if scope == nil {
		return out
	}

	p, ok := scope.Phase(n)
	if !ok {
		if lines := featureLines(scope.FeaturesInPhase(n)); lines != "" {
			out.features = lines
		}
		return out
	}

	out.name = p.Name
	out.weeks = p.EstimatedWeeks
	out.goal = agents.Or(p.Goal, TBD)

	listed := make(map[string]bool, len(p.Features))
	for _, name := range p.Features {
		listed[name] = true
	}
	var matched []workflow.Feature
	for _, f := range scope.MVPFeatures {
		if listed[f.Name] || f.Phase == n {
			matched = append(matched, f)
		}
	}
	switch {
	case len(matched) > 0:
		out.features = featureLines(matched)
	case len(p.Features) > 0:
		out.features = bullets(p.Features)
	}

	screens := scope.KeyScreens
	switch n {
	case 1:
		if scope.CoreUserFlow != "" {
			out.flow = scope.CoreUserFlow
		}
		if len(screens) > 0 {
			out.screens = bullets(screens)
		}
	case 2:
		if len(screens) > 0 {
			out.screens = bullets(screens[len(screens)/2:])
		}
	}
	return out
}

func featureLines(features []workflow.Feature) string {
	lines := make([]string, len(features))
	for i, f := range features {
		lines[i] = fmt.Sprintf("- %s: %s", f.Name, f.Description)
	}
	return strings.Join(lines, "\n")
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, s := range items {
		lines[i] = "- " + s
	}
	return strings.Join(lines, "\n")
}

// RICESummary lists the RICE inputs and score of every MVP feature that
// carries a score or a reach estimate.
func RICESummary(scope *workflow.ScopingOutput) string {
	if scope == nil {
		return TBD
	}
	var lines []string
	for _, f := range scope.MVPFeatures {
		r := f.RICE
		if r.Score == nil && r.Reach == nil {
			continue
		}
		parts := []string{f.Name}
		if r.Reach != nil {
			parts = append(parts, "Reach: "+strconv.Itoa(*r.Reach))
		}
		if r.Impact != nil {
			parts = append(parts, "Impact: "+formatFloat(*r.Impact))
		}
		if r.Confidence != nil {
			parts = append(parts, "Confidence: "+formatFloat(*r.Confidence))
		}
		if r.Effort != nil {
			parts = append(parts, "Effort: "+formatFloat(*r.Effort)+" person-weeks")
		}
		if r.Score != nil {
			parts = append(parts, fmt.Sprintf("RICE score: %.2f", *r.Score))
		}
		lines = append(lines, strings.Join(parts, " — "))
	}
	if len(lines) == 0 {
		return TBD
	}
	return strings.Join(lines, "\n")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Context renders the notes the model writes the spec from.
func Context(d workflow.DiscoverySummary, scope *workflow.ScopingOutput) string {
	lines := []string{
		"## Discovery",
		"Target user: " + agents.Or(d.TargetUser, "TBD"),
		"Core problem: " + agents.Or(d.CoreProblem, "TBD"),
		"Alternatives: " + joinOr(d.CurrentAlternatives),
		"Why now: " + agents.Or(d.WhyNow, "TBD"),
		"Feature wishlist: " + joinOr(d.FeatureWishlist),
		"Success metric: " + agents.Or(d.SuccessMetric, "TBD"),
		"Revenue model: " + agents.Or(d.RevenueModel, "TBD"),
		"Constraints: " + agents.Or(d.Constraints, "TBD"),
		"",
	}
	if scope != nil {
		lines = append(lines, "## Scoping", "MVP features (with phase and RICE when available):")
		for _, f := range scope.MVPFeatures {
			rice := ""
			if f.RICE.Score != nil {
				rice = fmt.Sprintf(" [RICE: %.2f]", *f.RICE.Score)
			}
			lines = append(lines, fmt.Sprintf("  - [%s] Phase %d: %s: %s%s", f.Priority, f.Phase, f.Name, f.Description, rice))
		}
		lines = append(lines, "Cut features:")
		for _, c := range scope.CutFeatures {
			lines = append(lines, fmt.Sprintf("  - %s: %s", c.Name, c.Reason))
		}
		lines = append(lines,
			"Core user flow: "+agents.Or(scope.CoreUserFlow, "TBD"),
			"Rationale: "+agents.Or(scope.Rationale, "TBD"),
		)
		if len(scope.KeyScreens) > 0 {
			lines = append(lines, "Key screens:")
			for _, s := range scope.KeyScreens {
				lines = append(lines, "  - "+s)
			}
		}
		if len(scope.ImplementationPhases) > 0 {
			lines = append(lines, "Implementation phases:")
			for _, p := range scope.ImplementationPhases {
				lines = append(lines, fmt.Sprintf("  - Phase %d: %s (%s) — %s", p.Number, p.Name, p.EstimatedWeeks, p.Goal))
				for _, name := range p.Features {
					lines = append(lines, "    - "+name)
				}
			}
		}
	}
	lines = append(lines, "", "Template to follow:", Template)
	return strings.Join(lines, "\n")
}

func joinOr(items []string) string {
	if len(items) == 0 {
		return "TBD"
	}
	return strings.Join(items, ", ")
}
