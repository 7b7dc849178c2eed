package workflow

// Completeness is the result of scoring a DiscoverySummary.
type Completeness struct {
	Score    float64 `json:"score"`
	Filled   int     `json:"filled"`
	Gaps     []Field `json:"gaps"`
	Complete bool    `json:"complete"`
}

// CompletenessPolicy decides when discovery has learned enough.
type CompletenessPolicy struct {
	Threshold float64
	Mandatory []Field
}

// DefaultCompletenessPolicy requires three quarters of the fields, including
// the target user and the core problem.
func DefaultCompletenessPolicy() CompletenessPolicy {
	return CompletenessPolicy{
		Threshold: 0.75,
		Mandatory: []Field{FieldTargetUser, FieldCoreProblem},
	}
}

// Evaluate scores the summary. Gaps are listed in field order. A summary is
// complete only when the score meets the threshold and every mandatory field
// is filled on its own.
func (p CompletenessPolicy) Evaluate(d DiscoverySummary) Completeness {
	var c Completeness
	for _, f := range allFields {
		if d.Filled(f) {
			c.Filled++
		} else {
			c.Gaps = append(c.Gaps, f)
		}
	}
	c.Score = float64(c.Filled) / float64(len(allFields))

	mandatoryMet := true
	for _, f := range p.Mandatory {
		if !d.Filled(f) {
			mandatoryMet = false
			break
		}
	}
	c.Complete = c.Score >= p.Threshold && mandatoryMet
	return c
}
