package workflow

import (
	"fmt"
	"strings"
)

// DiscoverySummary accumulates what discovery has learned about the idea.
type DiscoverySummary struct {
	TargetUser          string   `json:"target_user,omitempty"`
	CoreProblem         string   `json:"core_problem,omitempty"`
	CurrentAlternatives []string `json:"current_alternatives,omitempty"`
	WhyNow              string   `json:"why_now,omitempty"`
	FeatureWishlist     []string `json:"feature_wishlist,omitempty"`
	SuccessMetric       string   `json:"success_metric,omitempty"`
	RevenueModel        string   `json:"revenue_model,omitempty"`
	Constraints         string   `json:"constraints,omitempty"`
}

// Field names one discovery summary field.
type Field string

const (
	FieldTargetUser          Field = "target_user"
	FieldCoreProblem         Field = "core_problem"
	FieldCurrentAlternatives Field = "current_alternatives"
	FieldWhyNow              Field = "why_now"
	FieldFeatureWishlist     Field = "feature_wishlist"
	FieldSuccessMetric       Field = "success_metric"
	FieldRevenueModel        Field = "revenue_model"
	FieldConstraints         Field = "constraints"
)

var allFields = []Field{
	FieldTargetUser,
	FieldCoreProblem,
	FieldCurrentAlternatives,
	FieldWhyNow,
	FieldFeatureWishlist,
	FieldSuccessMetric,
	FieldRevenueModel,
	FieldConstraints,
}

var fieldLabels = map[Field]string{
	FieldTargetUser:          "target user / persona",
	FieldCoreProblem:         "core problem / pain points",
	FieldCurrentAlternatives: "current alternatives",
	FieldWhyNow:              "why now",
	FieldFeatureWishlist:     "feature vision / wishlist",
	FieldSuccessMetric:       "success metric",
	FieldRevenueModel:        "revenue model",
	FieldConstraints:         "constraints",
}

// AllFields returns the eight summary fields in interview order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// Label returns the human-readable name used when prompting for gaps.
func (f Field) Label() string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// IsList reports whether the field holds an ordered list.
func (f Field) IsList() bool {
	return f == FieldCurrentAlternatives || f == FieldFeatureWishlist
}

// Valid reports whether f names a summary field.
func (f Field) Valid() bool {
	_, ok := fieldLabels[f]
	return ok
}

// ParseFields converts field names, rejecting unknown ones.
func ParseFields(names []string) ([]Field, error) {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		f := Field(strings.TrimSpace(n))
		if !f.Valid() {
			return nil, fmt.Errorf("unknown discovery field %q", n)
		}
		out = append(out, f)
	}
	return out, nil
}

// Scalar returns the value of a scalar field.
func (d *DiscoverySummary) Scalar(f Field) string {
	if p := d.scalarPtr(f); p != nil {
		return *p
	}
	return ""
}

// List returns the value of a list field.
func (d *DiscoverySummary) List(f Field) []string {
	if p := d.listPtr(f); p != nil {
		return *p
	}
	return nil
}

// Filled reports whether a field holds a non-blank string or a non-empty list.
func (d *DiscoverySummary) Filled(f Field) bool {
	if f.IsList() {
		return len(d.List(f)) > 0
	}
	return strings.TrimSpace(d.Scalar(f)) != ""
}

// Clone returns a deep copy.
func (d DiscoverySummary) Clone() DiscoverySummary {
	c := d
	c.CurrentAlternatives = cloneStrings(d.CurrentAlternatives)
	c.FeatureWishlist = cloneStrings(d.FeatureWishlist)
	return c
}

func (d *DiscoverySummary) scalarPtr(f Field) *string {
	switch f {
	case FieldTargetUser:
		return &d.TargetUser
	case FieldCoreProblem:
		return &d.CoreProblem
	case FieldWhyNow:
		return &d.WhyNow
	case FieldSuccessMetric:
		return &d.SuccessMetric
	case FieldRevenueModel:
		return &d.RevenueModel
	case FieldConstraints:
		return &d.Constraints
	}
	return nil
}

func (d *DiscoverySummary) listPtr(f Field) *[]string {
	switch f {
	case FieldCurrentAlternatives:
		return &d.CurrentAlternatives
	case FieldFeatureWishlist:
		return &d.FeatureWishlist
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
