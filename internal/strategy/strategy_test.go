package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/formula"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

func TestSubtraction_Basic(t *testing.T) {
	reg := strategy.NewRegistry()
	s, err := reg.Get(strategy.KeySubtraction)
	require.NoError(t, err)

	got, err := s.Evaluate([]strategy.Value{strategy.Present(1000), strategy.Present(400)}, strategy.Options{})
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.Number)
	assert.False(t, got.Missing)
}

func TestDivision_ByZero_ErrorPolicy(t *testing.T) {
	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyDivision)

	_, err := s.Evaluate([]strategy.Value{strategy.Present(10), strategy.Present(0)}, strategy.Options{
		DivisionPolicy: engineconfig.DivisionPolicyError,
	})
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindDivisionByZero, ee.Kind)
}

func TestDivision_ByZero_PropagateNaNPolicy(t *testing.T) {
	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyDivision)

	got, err := s.Evaluate([]strategy.Value{strategy.Present(10), strategy.Present(0)}, strategy.Options{
		DivisionPolicy: engineconfig.DivisionPolicyPropagateNaN,
	})
	require.NoError(t, err)
	assert.True(t, got.Missing)
}

func TestWeightedAverage_ZeroTotalWeight(t *testing.T) {
	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyWeightedAvg)

	got, err := s.Evaluate([]strategy.Value{
		strategy.Present(10), strategy.Present(0),
		strategy.Present(20), strategy.Present(0),
	}, strategy.Options{})
	require.NoError(t, err)
	assert.True(t, got.Missing, "zero total weight must be missing, not an error")
}

func TestWeightedAverage_Basic(t *testing.T) {
	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyWeightedAvg)

	got, err := s.Evaluate([]strategy.Value{
		strategy.Present(10), strategy.Present(1),
		strategy.Present(20), strategy.Present(3),
	}, strategy.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 17.5, got.Number, 1e-9)
}

func TestAnyMissingPropagates(t *testing.T) {
	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyAddition)

	got, err := s.Evaluate([]strategy.Value{strategy.Present(1), strategy.MissingValue}, strategy.Options{})
	require.NoError(t, err)
	assert.True(t, got.Missing)
}

func TestFormulaStrategy_BindsPositionalInputs(t *testing.T) {
	expr, err := formula.Parse("input_0 / input_1")
	require.NoError(t, err)

	reg := strategy.NewRegistry()
	s, _ := reg.Get(strategy.KeyFormula)

	got, err := s.Evaluate([]strategy.Value{strategy.Present(400), strategy.Present(200)}, strategy.Options{
		Formula:  expr,
		VarNames: strategy.DefaultVarNames(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Number)
}

func TestRegistry_DuplicateRegistrationAfterFreeze(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Freeze()

	err := reg.Register(fakeStrategy{})
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindDuplicateRegistration, ee.Kind)
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	reg := strategy.NewRegistry()
	_, err := reg.Get("does-not-exist")
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindUnknownStrategy, ee.Kind)
}

type fakeStrategy struct{}

func (fakeStrategy) Key() string { return "fake" }
func (fakeStrategy) Evaluate([]strategy.Value, strategy.Options) (strategy.Value, error) {
	return strategy.Value{}, nil
}
