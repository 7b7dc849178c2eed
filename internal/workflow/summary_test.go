package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSummary() DiscoverySummary {
	return DiscoverySummary{
		TargetUser:          "freelance designers",
		CoreProblem:         "chasing late invoices",
		CurrentAlternatives: []string{"spreadsheets", "FreshBooks"},
		WhyNow:              "open banking APIs",
		FeatureWishlist:     []string{"reminders", "bank sync"},
		SuccessMetric:       "days sales outstanding",
		RevenueModel:        "subscription",
		Constraints:         "two developers",
	}
}

func TestEvaluate(t *testing.T) {
	policy := DefaultCompletenessPolicy()

	t.Run("empty summary", func(t *testing.T) {
		c := policy.Evaluate(DiscoverySummary{})
		assert.Zero(t, c.Score)
		assert.Equal(t, AllFields(), c.Gaps)
		assert.False(t, c.Complete)
	})

	t.Run("full summary", func(t *testing.T) {
		c := policy.Evaluate(fullSummary())
		assert.Equal(t, 1.0, c.Score)
		assert.Empty(t, c.Gaps)
		assert.True(t, c.Complete)
	})

	t.Run("six of eight with mandatory fields", func(t *testing.T) {
		d := fullSummary()
		d.WhyNow = ""
		d.Constraints = "  "
		c := policy.Evaluate(d)
		assert.Equal(t, 0.75, c.Score)
		assert.Equal(t, []Field{FieldWhyNow, FieldConstraints}, c.Gaps)
		assert.True(t, c.Complete)
	})

	t.Run("high score without mandatory field", func(t *testing.T) {
		d := fullSummary()
		d.CoreProblem = ""
		c := policy.Evaluate(d)
		assert.Equal(t, 0.875, c.Score)
		assert.False(t, c.Complete)
	})

	t.Run("empty list is a gap", func(t *testing.T) {
		d := fullSummary()
		d.FeatureWishlist = []string{}
		c := policy.Evaluate(d)
		assert.Contains(t, c.Gaps, FieldFeatureWishlist)
	})
}

func TestMergeSummary(t *testing.T) {
	current := DiscoverySummary{
		TargetUser:      "designers",
		FeatureWishlist: []string{"reminders"},
	}

	t.Run("empty extraction is a no-op", func(t *testing.T) {
		assert.Equal(t, current, MergeSummary(current, DiscoverySummary{}))
	})

	t.Run("blank scalars do not erase", func(t *testing.T) {
		out := MergeSummary(current, DiscoverySummary{TargetUser: "   ", CoreProblem: "late invoices"})
		assert.Equal(t, "designers", out.TargetUser)
		assert.Equal(t, "late invoices", out.CoreProblem)
	})

	t.Run("non-empty list replaces", func(t *testing.T) {
		out := MergeSummary(current, DiscoverySummary{FeatureWishlist: []string{" bank sync ", "", "export"}})
		assert.Equal(t, []string{"bank sync", "export"}, out.FeatureWishlist)
	})

	t.Run("idempotent", func(t *testing.T) {
		extracted := DiscoverySummary{CoreProblem: " cash flow ", CurrentAlternatives: []string{"email"}}
		once := MergeSummary(current, extracted)
		twice := MergeSummary(once, extracted)
		assert.Equal(t, once, twice)
	})

	t.Run("does not alias inputs", func(t *testing.T) {
		out := MergeSummary(current, DiscoverySummary{})
		out.FeatureWishlist[0] = "changed"
		assert.Equal(t, "reminders", current.FeatureWishlist[0])
	})
}

func TestSummaryFromRaw(t *testing.T) {
	raw := map[string]any{
		"target_user":          []any{"designers", "illustrators"},
		"core_problem":         " late invoices ",
		"current_alternatives": "spreadsheets",
		"feature_wishlist":     []any{"reminders", nil, 3.0, map[string]any{"x": 1}, " "},
		"success_metric":       42.0,
		"revenue_model":        map[string]any{"type": "saas"},
		"unknown":              "ignored",
	}
	d := SummaryFromRaw(raw)

	assert.Equal(t, "designers, illustrators", d.TargetUser)
	assert.Equal(t, "late invoices", d.CoreProblem)
	assert.Nil(t, d.CurrentAlternatives)
	assert.Equal(t, []string{"reminders", "3"}, d.FeatureWishlist)
	assert.Equal(t, "42", d.SuccessMetric)
	assert.Empty(t, d.RevenueModel)

	assert.Equal(t, DiscoverySummary{}, SummaryFromRaw(nil))
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields([]string{"target_user", " core_problem "})
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldTargetUser, FieldCoreProblem}, fields)

	_, err = ParseFields([]string{"budget"})
	assert.Error(t, err)
}
