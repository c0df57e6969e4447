package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nholding/fin-model-engine/internal/engerr"
)

const (
	KeyFixedGrowth             = "fixed-growth"
	KeyCurve                   = "curve"
	KeyStatistical             = "statistical"
	KeyHistoricalAverageGrowth = "historical-average-growth"
	KeyAverageValue            = "average-value"
)

func paramFloat(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, engerr.New(engerr.KindInvalidHorizon, "forecast strategy missing required parameter %q", key)
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, engerr.New(engerr.KindInvalidHorizon, "forecast strategy parameter %q must be a number, got %T", key, raw)
	}
	return v, nil
}

func paramRates(params map[string]any, key string) ([]float64, error) {
	raw, ok := params[key]
	if !ok {
		return nil, engerr.New(engerr.KindInvalidHorizon, "forecast strategy missing required parameter %q", key)
	}
	rates, ok := raw.([]float64)
	if !ok {
		return nil, engerr.New(engerr.KindInvalidHorizon, "forecast strategy parameter %q must be a []float64, got %T", key, raw)
	}
	return rates, nil
}

func paramAggregation(params map[string]any, key string) (Aggregation, error) {
	raw, ok := params[key]
	if !ok {
		return AggregationMean, nil
	}
	agg, ok := raw.(Aggregation)
	if !ok {
		if s, ok := raw.(string); ok {
			agg = Aggregation(s)
		} else {
			return "", engerr.New(engerr.KindInvalidHorizon, "forecast strategy parameter %q must be an Aggregation, got %T", key, raw)
		}
	}
	if agg != AggregationMean && agg != AggregationMedian {
		return "", engerr.New(engerr.KindInvalidHorizon, "unknown aggregation %q", agg)
	}
	return agg, nil
}

// fixedGrowthStrategy: v_base * (1+r)^k (spec §4.7).
type fixedGrowthStrategy struct{}

func (fixedGrowthStrategy) Key() string { return KeyFixedGrowth }

func (fixedGrowthStrategy) Project(ctx Context) (float64, error) {
	rate, err := paramFloat(ctx.Params, "rate")
	if err != nil {
		return 0, err
	}
	if ctx.HorizonIndex < 0 {
		return 0, engerr.New(engerr.KindInvalidHorizon, "horizon index %d precedes the base period", ctx.HorizonIndex)
	}
	return ctx.BaseValue * math.Pow(1+rate, float64(ctx.HorizonIndex)), nil
}

// curveStrategy: period k -> v_base * Π(1+r_j) for j in [1,k] (spec §4.7).
type curveStrategy struct{}

func (curveStrategy) Key() string { return KeyCurve }

func (curveStrategy) Project(ctx Context) (float64, error) {
	rates, err := paramRates(ctx.Params, "rates")
	if err != nil {
		return 0, err
	}
	if ctx.HorizonIndex < 1 || ctx.HorizonIndex > len(rates) {
		return 0, engerr.New(engerr.KindInvalidHorizon,
			"curve forecast has %d declared rate(s) but horizon index is %d", len(rates), ctx.HorizonIndex)
	}
	value := ctx.BaseValue
	for _, r := range rates[:ctx.HorizonIndex] {
		value *= 1 + r
	}
	return value, nil
}

// statisticalStrategy samples a growth rate from a normal distribution
// parameterized by "mean"/"stdev" params and compounds it like fixed-growth
// (spec §4.7, "sample a growth rate from distribution per call"). Sampling
// is seedable via ctx.Rand for deterministic reruns.
type statisticalStrategy struct{}

func (statisticalStrategy) Key() string { return KeyStatistical }

func (statisticalStrategy) Project(ctx Context) (float64, error) {
	mean, err := paramFloat(ctx.Params, "mean")
	if err != nil {
		return 0, err
	}
	stdev, err := paramFloat(ctx.Params, "stdev")
	if err != nil {
		return 0, err
	}
	if ctx.Rand == nil {
		return 0, engerr.New(engerr.KindInvalidHorizon, "statistical forecast requires a seeded random source")
	}
	dist := distuv.Normal{Mu: mean, Sigma: stdev, Src: ctx.Rand}
	rate := dist.Rand()
	return ctx.BaseValue * math.Pow(1+rate, float64(ctx.HorizonIndex)), nil
}

func periodOverPeriodGrowth(history []float64) []float64 {
	if len(history) < 2 {
		return nil
	}
	growth := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1]
		if prev == 0 {
			continue
		}
		growth = append(growth, (history[i]-prev)/prev)
	}
	return growth
}

func aggregate(values []float64, agg Aggregation) (float64, error) {
	if len(values) == 0 {
		return 0, engerr.New(engerr.KindInvalidHorizon, "cannot aggregate an empty history")
	}
	switch agg {
	case AggregationMedian:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid], nil
		}
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	default:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	}
}

// historicalAverageGrowthStrategy computes the average period-over-period
// growth across ctx.History and projects it forward like fixed-growth
// (spec §4.7).
type historicalAverageGrowthStrategy struct{}

func (historicalAverageGrowthStrategy) Key() string { return KeyHistoricalAverageGrowth }

func (historicalAverageGrowthStrategy) Project(ctx Context) (float64, error) {
	agg, err := paramAggregation(ctx.Params, "aggregation")
	if err != nil {
		return 0, err
	}
	growth := periodOverPeriodGrowth(ctx.History)
	if len(growth) == 0 {
		return 0, engerr.New(engerr.KindInvalidHorizon, "historical-average-growth requires at least two historical samples")
	}
	rate, err := aggregate(growth, agg)
	if err != nil {
		return 0, err
	}
	return ctx.BaseValue * math.Pow(1+rate, float64(ctx.HorizonIndex)), nil
}

// averageValueStrategy projects the historical aggregate as a constant,
// ignoring the horizon (spec §4.7).
type averageValueStrategy struct{}

func (averageValueStrategy) Key() string { return KeyAverageValue }

func (averageValueStrategy) Project(ctx Context) (float64, error) {
	agg, err := paramAggregation(ctx.Params, "aggregation")
	if err != nil {
		return 0, err
	}
	return aggregate(ctx.History, agg)
}
