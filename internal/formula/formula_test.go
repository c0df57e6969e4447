package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/formula"
)

func TestParseAndEval_Precedence(t *testing.T) {
	expr, err := formula.Parse("revenue - cogs - opex")
	require.NoError(t, err)

	got, err := formula.Eval(expr, map[string]float64{
		"revenue": 1000, "cogs": 400, "opex": 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, got)
}

func TestParseAndEval_PowAndParens(t *testing.T) {
	expr, err := formula.Parse("(a + b) * 2 ** 2")
	require.NoError(t, err)

	got, err := formula.Eval(expr, map[string]float64{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)
}

func TestParseAndEval_WhitelistedFunctions(t *testing.T) {
	expr, err := formula.Parse("max(a, min(b, 10))")
	require.NoError(t, err)

	got, err := formula.Eval(expr, map[string]float64{"a": 3, "b": 20})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}

func TestParseAndEval_Comparisons(t *testing.T) {
	expr, err := formula.Parse("a > b")
	require.NoError(t, err)

	got, err := formula.Eval(expr, map[string]float64{"a": 5, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestEval_UnboundVariable(t *testing.T) {
	expr, err := formula.Parse("revenue - cogs")
	require.NoError(t, err)

	_, err = formula.Eval(expr, map[string]float64{"revenue": 1})
	require.Error(t, err)
	var unbound *formula.UnboundVariableError
	assert.ErrorAs(t, err, &unbound)
	assert.Equal(t, "cogs", unbound.Name)
}

func TestParse_RejectsUnknownFunction(t *testing.T) {
	_, err := formula.Parse("eval(a)")
	assert.Error(t, err)
}

func TestCollectIdentifiers(t *testing.T) {
	expr, err := formula.Parse("revenue - cogs - opex + revenue")
	require.NoError(t, err)
	assert.Equal(t, []string{"revenue", "cogs", "opex"}, formula.CollectIdentifiers(expr))
}
