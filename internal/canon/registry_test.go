package canon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/canon"
)

func revenueRegistry() *canon.Registry {
	r := canon.New()
	r.Register(canon.Definition{
		Name:       "Revenue",
		Category:   "income_statement",
		Sign:       canon.SignPositive,
		Alternates: []string{"Total Revenue", "Net Sales", "Sales"},
	})
	return r
}

func TestStandardize_ExactCanonicalMatch(t *testing.T) {
	r := revenueRegistry()
	res := r.Standardize("Revenue")
	assert.Equal(t, "Revenue", res.Canonical)
	assert.Equal(t, canon.ConfidenceExact, res.Confidence)
	assert.Equal(t, canon.Category("income_statement"), res.Category)
}

func TestStandardize_ExactAlternateMatchIsCaseInsensitive(t *testing.T) {
	r := revenueRegistry()
	res := r.Standardize("net sales")
	assert.Equal(t, "Revenue", res.Canonical)
	assert.Equal(t, canon.ConfidenceExact, res.Confidence)
}

func TestStandardize_PatternMatchFallsBackToClassification(t *testing.T) {
	r := revenueRegistry()
	res := r.Standardize("Revenue_Q1")
	assert.Equal(t, "Revenue_Q1", res.Canonical)
	assert.Equal(t, canon.ConfidencePattern, res.Confidence)
	assert.Equal(t, canon.ClassSubNode, res.Classification)
}

func TestStandardize_FormulaConventionPattern(t *testing.T) {
	r := canon.New()
	res := r.Standardize("Gross_Margin")
	assert.Equal(t, canon.ConfidencePattern, res.Confidence)
	assert.Equal(t, canon.ClassFormula, res.Classification)
}

func TestStandardize_UnknownNameIsCustomWithZeroConfidence(t *testing.T) {
	r := canon.New()
	res := r.Standardize("SomeWeirdLineItem")
	assert.Equal(t, canon.ConfidenceNone, res.Confidence)
	assert.Equal(t, canon.ClassCustom, res.Classification)
}

func TestLookup_ReturnsDefinitionForAlternate(t *testing.T) {
	r := revenueRegistry()
	def, ok := r.Lookup("Sales")
	require.True(t, ok)
	assert.Equal(t, "Revenue", def.Name)
}

func TestLookup_MissingNameNotFound(t *testing.T) {
	r := revenueRegistry()
	_, ok := r.Lookup("NotRegistered")
	assert.False(t, ok)
}

func TestValidateBatch_TalliesCategoriesAndAmbiguousNames(t *testing.T) {
	r := revenueRegistry()
	report := r.ValidateBatch([]string{"Revenue", "Revenue_Q1", "NetSales_margin", "Mystery"})

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.CategoryCounts["income_statement"])
	assert.ElementsMatch(t, []string{"Mystery", "NetSales_margin", "Revenue_Q1"}, report.Ambiguous)
}

func TestRegister_LaterRegistrationOverwritesCanonicalDefinition(t *testing.T) {
	r := canon.New()
	r.Register(canon.Definition{Name: "COGS", Category: "income_statement"})
	r.Register(canon.Definition{Name: "COGS", Category: "cost_of_revenue"})

	def, ok := r.Lookup("COGS")
	require.True(t, ok)
	assert.Equal(t, canon.Category("cost_of_revenue"), def.Category)
}
