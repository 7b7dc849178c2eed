package workflow

import (
	"math"
	"strings"
)

// Priority ranks an MVP feature.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// Valid reports whether p is P0, P1 or P2.
func (p Priority) Valid() bool {
	return p == PriorityP0 || p == PriorityP1 || p == PriorityP2
}

// RICE holds the optional prioritisation components of a feature.
// Score is a snapshot taken at extraction time; editing a component does not
// recompute it.
type RICE struct {
	Reach      *int     `json:"reach,omitempty"`
	Impact     *float64 `json:"impact,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Effort     *float64 `json:"effort,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// Compute returns reach × impact × confidence / effort when all four
// components are present, effort is positive and the result is finite.
func (r RICE) Compute() (float64, bool) {
	if r.Reach == nil || r.Impact == nil || r.Confidence == nil || r.Effort == nil || *r.Effort <= 0 {
		return 0, false
	}
	score := float64(*r.Reach) * *r.Impact * *r.Confidence / *r.Effort
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return score, true
}

// Snapshot fills Score from the components when they are complete.
func (r RICE) Snapshot() RICE {
	if score, ok := r.Compute(); ok {
		r.Score = &score
	}
	return r
}

// Empty reports whether no component or score is present.
func (r RICE) Empty() bool {
	return r.Reach == nil && r.Impact == nil && r.Confidence == nil && r.Effort == nil && r.Score == nil
}

func (r RICE) clone() RICE {
	return RICE{
		Reach:      clonePtr(r.Reach),
		Impact:     clonePtr(r.Impact),
		Confidence: clonePtr(r.Confidence),
		Effort:     clonePtr(r.Effort),
		Score:      clonePtr(r.Score),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Feature is one proposed MVP feature.
type Feature struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	// Phase is the build phase, 1 to 3.
	Phase int  `json:"phase"`
	RICE  RICE `json:"rice"`
}

// CutFeature is a feature deliberately left out of the MVP.
type CutFeature struct {
	Name   string `json:"name"`
	Reason string `json:"reason_cut"`
}

// ComparableProduct is an existing product cited while scoping.
type ComparableProduct struct {
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Relevance string `json:"relevance"`
}

// ImplementationPhase groups features into an independently buildable step.
type ImplementationPhase struct {
	Number         int      `json:"phase_number"`
	Name           string   `json:"name"`
	Goal           string   `json:"goal"`
	EstimatedWeeks string   `json:"estimated_weeks"`
	Features       []string `json:"features"`
}

// ScopingOutput is the structured form of the agreed MVP scope.
type ScopingOutput struct {
	MVPFeatures          []Feature             `json:"mvp_features"`
	CutFeatures          []CutFeature          `json:"cut_features"`
	ComparableProducts   []ComparableProduct   `json:"comparable_products"`
	CoreUserFlow         string                `json:"core_user_flow,omitempty"`
	Rationale            string                `json:"scope_rationale,omitempty"`
	KeyScreens           []string              `json:"key_screens"`
	ImplementationPhases []ImplementationPhase `json:"implementation_phases"`
}

// Clone returns a deep copy.
func (o *ScopingOutput) Clone() *ScopingOutput {
	if o == nil {
		return nil
	}
	c := *o
	c.MVPFeatures = make([]Feature, len(o.MVPFeatures))
	for i, f := range o.MVPFeatures {
		f.RICE = f.RICE.clone()
		c.MVPFeatures[i] = f
	}
	c.CutFeatures = append([]CutFeature(nil), o.CutFeatures...)
	c.ComparableProducts = append([]ComparableProduct(nil), o.ComparableProducts...)
	c.KeyScreens = cloneStrings(o.KeyScreens)
	c.ImplementationPhases = make([]ImplementationPhase, len(o.ImplementationPhases))
	for i, p := range o.ImplementationPhases {
		p.Features = cloneStrings(p.Features)
		c.ImplementationPhases[i] = p
	}
	return &c
}

// FeaturesInPhase returns the MVP features assigned to phase n.
func (o *ScopingOutput) FeaturesInPhase(n int) []Feature {
	var out []Feature
	for _, f := range o.MVPFeatures {
		if f.Phase == n {
			out = append(out, f)
		}
	}
	return out
}

// Phase returns the implementation phase numbered n.
func (o *ScopingOutput) Phase(n int) (ImplementationPhase, bool) {
	for _, p := range o.ImplementationPhases {
		if p.Number == n {
			return p, true
		}
	}
	return ImplementationPhase{}, false
}

// SearchResult is one hit from the comparable-product search.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ReconcileComparables appends every search hit the extracted proposal did
// not already cite, matching on name or on URL when one is present. It
// returns the number of products added.
func (o *ScopingOutput) ReconcileComparables(hits []SearchResult) int {
	names := make(map[string]bool, len(o.ComparableProducts))
	urls := make(map[string]bool, len(o.ComparableProducts))
	for _, c := range o.ComparableProducts {
		names[c.Name] = true
		if c.URL != "" {
			urls[c.URL] = true
		}
	}

	added := 0
	for _, h := range hits {
		name := strings.TrimSpace(h.Title)
		if name == "" {
			name = "Unknown"
		}
		if names[name] || (h.URL != "" && urls[h.URL]) {
			continue
		}
		relevance := strings.TrimSpace(Truncate(h.Snippet, 300))
		if relevance == "" {
			relevance = "From web search"
		}
		o.ComparableProducts = append(o.ComparableProducts, ComparableProduct{
			Name:      name,
			URL:       h.URL,
			Relevance: relevance,
		})
		names[name] = true
		if h.URL != "" {
			urls[h.URL] = true
		}
		added++
	}
	return added
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
