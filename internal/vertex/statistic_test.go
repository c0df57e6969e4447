package vertex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

type fakeResolver struct {
	values  map[string]map[period.Period]strategy.Value
	periods *period.Sequence
}

func (f fakeResolver) Value(name string, p period.Period) (strategy.Value, error) {
	byPeriod, ok := f.values[name]
	if !ok {
		return strategy.MissingValue, nil
	}
	v, ok := byPeriod[p]
	if !ok {
		return strategy.MissingValue, nil
	}
	return v, nil
}

func (f fakeResolver) Periods() *period.Sequence { return f.periods }

func TestStatistic_Mean(t *testing.T) {
	seq := period.NewSequence("2024", "2025", "2026")
	r := fakeResolver{periods: seq, values: map[string]map[period.Period]strategy.Value{
		"revenue": {
			"2024": strategy.Present(100),
			"2025": strategy.Present(200),
			"2026": strategy.Present(300),
		},
	}}

	v := vertex.NewStatistic("revenue_avg", "revenue", []period.Period{"2024", "2025", "2026"}, vertex.StatMean, nil)
	got, err := v.Evaluate(r, "2026", vertex.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.Number)
}

func TestStatistic_YoY(t *testing.T) {
	seq := period.NewSequence("2025", "2026")
	r := fakeResolver{periods: seq, values: map[string]map[period.Period]strategy.Value{
		"revenue": {
			"2025": strategy.Present(100),
			"2026": strategy.Present(120),
		},
	}}

	v := vertex.NewStatistic("revenue_yoy", "revenue", []period.Period{"2025", "2026"}, vertex.StatYoY, nil)
	got, err := v.Evaluate(r, "2026", vertex.EvalContext{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got.Number, 1e-9)
}

func TestStatistic_YoY_ZeroPrior(t *testing.T) {
	seq := period.NewSequence("2025", "2026")
	r := fakeResolver{periods: seq, values: map[string]map[period.Period]strategy.Value{
		"revenue": {
			"2025": strategy.Present(0),
			"2026": strategy.Present(120),
		},
	}}

	v := vertex.NewStatistic("revenue_yoy", "revenue", []period.Period{"2025", "2026"}, vertex.StatYoY, nil)
	_, err := v.Evaluate(r, "2026", vertex.EvalContext{})
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindDivisionByZero, ee.Kind)
}

func TestStatistic_MissingSamplePropagates(t *testing.T) {
	seq := period.NewSequence("2024", "2025")
	r := fakeResolver{periods: seq, values: map[string]map[period.Period]strategy.Value{
		"revenue": {
			"2025": strategy.Present(200),
		},
	}}

	v := vertex.NewStatistic("revenue_avg", "revenue", []period.Period{"2024", "2025"}, vertex.StatMean, nil)
	got, err := v.Evaluate(r, "2025", vertex.EvalContext{})
	require.NoError(t, err)
	assert.True(t, got.Missing)
}

func TestStatistic_CustomRegistration(t *testing.T) {
	reg := vertex.NewStatRegistry()
	require.NoError(t, reg.Register("range", func(values []float64) (float64, error) {
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return max - min, nil
	}))

	seq := period.NewSequence("2024", "2025")
	r := fakeResolver{periods: seq, values: map[string]map[period.Period]strategy.Value{
		"revenue": {
			"2024": strategy.Present(100),
			"2025": strategy.Present(250),
		},
	}}

	v := vertex.NewStatistic("revenue_range", "revenue", []period.Period{"2024", "2025"}, "range", reg)
	got, err := v.Evaluate(r, "2025", vertex.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Number)
}
