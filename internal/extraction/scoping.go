package extraction

import "github.com/fyrsmithlabs/specd/internal/workflow"

const defaultEstimatedWeeks = "1-2 weeks"

// ScopingFromRaw coerces a decoded scoping object. Entries missing their
// required fields are dropped rather than failing the whole extraction.
func ScopingFromRaw(raw map[string]any) workflow.ScopingOutput {
	var out workflow.ScopingOutput
	if raw == nil {
		return out
	}

	for _, f := range asObjects(raw["mvp_features"]) {
		name := asString(f["name"])
		priority := workflow.Priority(asString(f["priority"]))
		if name == "" || !priority.Valid() {
			continue
		}
		phase, ok := asPhase(f["phase"])
		if !ok {
			phase = 1
		}
		rice := workflow.RICE{
			Reach:      intPtr(f["rice_reach"]),
			Impact:     floatPtr(f["rice_impact"]),
			Confidence: floatPtr(f["rice_confidence"]),
			Effort:     floatPtr(f["rice_effort"]),
			Score:      floatPtr(f["rice_score"]),
		}
		out.MVPFeatures = append(out.MVPFeatures, workflow.Feature{
			Name:        name,
			Description: asString(f["description"]),
			Priority:    priority,
			Phase:       phase,
			RICE:        rice.Snapshot(),
		})
	}

	for _, f := range asObjects(raw["cut_features"]) {
		if name := asString(f["name"]); name != "" {
			out.CutFeatures = append(out.CutFeatures, workflow.CutFeature{
				Name:   name,
				Reason: asString(f["reason_cut"]),
			})
		}
	}

	for _, c := range asObjects(raw["comparable_products"]) {
		if name := asString(c["name"]); name != "" {
			out.ComparableProducts = append(out.ComparableProducts, workflow.ComparableProduct{
				Name:      name,
				URL:       asString(c["url"]),
				Relevance: asString(c["relevance"]),
			})
		}
	}

	out.CoreUserFlow = asString(raw["core_user_flow"])
	out.Rationale = asString(raw["scope_rationale"])
	out.KeyScreens = asStrings(raw["key_screens"])

	for _, p := range asObjects(raw["implementation_phases"]) {
		number, ok := asPhase(p["phase_number"])
		name := asString(p["name"])
		if !ok || name == "" {
			continue
		}
		weeks := asString(p["estimated_weeks"])
		if weeks == "" {
			weeks = defaultEstimatedWeeks
		}
		out.ImplementationPhases = append(out.ImplementationPhases, workflow.ImplementationPhase{
			Number:         number,
			Name:           name,
			Goal:           asString(p["goal"]),
			EstimatedWeeks: weeks,
			Features:       asStrings(p["features"]),
		})
	}

	return out
}
