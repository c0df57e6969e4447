package forecast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/forecast"
)

func TestFixedGrowth(t *testing.T) {
	reg := forecast.NewRegistry()
	s, err := reg.Get(forecast.KeyFixedGrowth)
	require.NoError(t, err)

	got, err := s.Project(forecast.Context{
		BaseValue:    1100,
		HorizonIndex: 1,
		Params:       map[string]any{"rate": 0.05},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1155.0, got, 1e-9)

	got, err = s.Project(forecast.Context{
		BaseValue:    1100,
		HorizonIndex: 2,
		Params:       map[string]any{"rate": 0.05},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1212.75, got, 1e-6)
}

func TestFixedGrowth_AtBaseIsIdentity(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyFixedGrowth)

	got, err := s.Project(forecast.Context{
		BaseValue:    1100,
		HorizonIndex: 0,
		Params:       map[string]any{"rate": 0.05},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1100.0, got, 1e-9)
}

func TestCurve_CompoundsPerPeriodRates(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyCurve)

	got, err := s.Project(forecast.Context{
		BaseValue:    100,
		HorizonIndex: 2,
		Params:       map[string]any{"rates": []float64{0.1, 0.2}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 132.0, got, 1e-9)
}

func TestCurve_HorizonBeyondRates(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyCurve)

	_, err := s.Project(forecast.Context{
		BaseValue:    100,
		HorizonIndex: 3,
		Params:       map[string]any{"rates": []float64{0.1, 0.2}},
	})
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindInvalidHorizon, ee.Kind)
}

func TestHistoricalAverageGrowth_Mean(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyHistoricalAverageGrowth)

	got, err := s.Project(forecast.Context{
		BaseValue:    300,
		HorizonIndex: 1,
		History:      []float64{100, 200, 300},
		Params:       map[string]any{"aggregation": forecast.AggregationMean},
	})
	require.NoError(t, err)
	assert.InDelta(t, 525.0, got, 1e-9)
}

func TestAverageValue_Median(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyAverageValue)

	got, err := s.Project(forecast.Context{
		History: []float64{10, 20, 30},
		Params:  map[string]any{"aggregation": forecast.AggregationMedian},
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)
}

func TestStatistical_Deterministic(t *testing.T) {
	reg := forecast.NewRegistry()
	s, _ := reg.Get(forecast.KeyStatistical)

	ctx := forecast.Context{
		BaseValue:    100,
		HorizonIndex: 1,
		Params:       map[string]any{"mean": 0.05, "stdev": 0.01},
		Rand:         forecast.NewRand(42),
	}
	got1, err := s.Project(ctx)
	require.NoError(t, err)

	ctx.Rand = forecast.NewRand(42)
	got2, err := s.Project(ctx)
	require.NoError(t, err)

	assert.Equal(t, got1, got2, "same seed must reproduce the same sample")
}

func TestCustomStrategy_Registration(t *testing.T) {
	reg := forecast.NewRegistry()
	require.NoError(t, reg.Register(forecast.NewCustomStrategy("double", func(ctx forecast.Context) (float64, error) {
		return ctx.BaseValue * 2, nil
	})))

	s, err := reg.Get("double")
	require.NoError(t, err)
	got, err := s.Project(forecast.Context{BaseValue: 50})
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)
}

func TestRegistry_FreezeRejectsLateRegistration(t *testing.T) {
	reg := forecast.NewRegistry()
	reg.Freeze()

	err := reg.Register(forecast.NewCustomStrategy("late", func(forecast.Context) (float64, error) { return 0, nil }))
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindDuplicateRegistration, ee.Kind)
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	reg := forecast.NewRegistry()
	_, err := reg.Get("does-not-exist")
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindUnknownForecastStrategy, ee.Kind)
}
