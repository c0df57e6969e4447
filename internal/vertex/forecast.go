package vertex

import (
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/forecast"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// Forecast wraps a historical base vertex and a base period; for a query
// period within the declared horizon it synthesizes a value via a
// registered forecast.Strategy, and for a query period within the base
// vertex's historical coverage it delegates unchanged (spec §3.2, §4.7).
type Forecast struct {
	name        string
	base        string
	basePeriod  period.Period
	horizon     []period.Period
	horizonSet  map[period.Period]struct{}
	strategyKey string
	params      map[string]any
	rand        forecast.RandSource
	registry    *forecast.Registry
}

// NewForecast builds a Forecast vertex. registry may be nil to use the
// shared forecast.Default(); rnd may be nil unless strategyKey requires
// sampling ("statistical").
func NewForecast(name, base string, basePeriod period.Period, horizon []period.Period, strategyKey string, params map[string]any, rnd forecast.RandSource, registry *forecast.Registry) *Forecast {
	if registry == nil {
		registry = forecast.Default()
	}
	set := make(map[period.Period]struct{}, len(horizon))
	for _, p := range horizon {
		set[p] = struct{}{}
	}
	return &Forecast{
		name: name, base: base, basePeriod: basePeriod, horizon: horizon, horizonSet: set,
		strategyKey: strategyKey, params: params, rand: rnd, registry: registry,
	}
}

func (f *Forecast) Name() string { return f.name }
func (f *Forecast) Kind() Kind   { return KindForecast }

// Dependencies reports only the base vertex (spec §4.7, "must report their
// declared dependencies as {base vertex}").
func (f *Forecast) Dependencies() []string { return []string{f.base} }

func (f *Forecast) Base() string              { return f.base }
func (f *Forecast) BasePeriod() period.Period { return f.basePeriod }
func (f *Forecast) Horizon() []period.Period  { return f.horizon }
func (f *Forecast) StrategyKey() string       { return f.strategyKey }
func (f *Forecast) Params() map[string]any    { return f.params }

func (f *Forecast) Evaluate(r Resolver, p period.Period, _ EvalContext) (strategy.Value, error) {
	seq := r.Periods()
	baseOrd, ok := seq.Ordinal(f.basePeriod)
	if !ok {
		return strategy.Value{}, engerr.New(engerr.KindInvalidPeriod,
			"forecast %q base period %q is not declared in the graph", f.name, f.basePeriod)
	}

	pOrd, inSeq := seq.Ordinal(p)
	if inSeq && pOrd <= baseOrd {
		return r.Value(f.base, p)
	}

	if _, inHorizon := f.horizonSet[p]; !inHorizon {
		return strategy.Value{}, engerr.New(engerr.KindInvalidPeriod,
			"forecast %q has no horizon entry for period %q", f.name, p)
	}
	if !inSeq {
		return strategy.Value{}, engerr.New(engerr.KindInvalidPeriod,
			"forecast %q horizon period %q is not declared in the graph's period sequence", f.name, p)
	}

	baseVal, err := r.Value(f.base, f.basePeriod)
	if err != nil {
		return strategy.Value{}, err
	}
	if baseVal.Missing {
		return strategy.MissingValue, nil
	}

	history := make([]float64, 0, baseOrd+1)
	for _, hp := range seq.All()[:baseOrd+1] {
		v, err := r.Value(f.base, hp)
		if err != nil {
			return strategy.Value{}, err
		}
		if v.Missing {
			continue
		}
		history = append(history, v.Number)
	}

	horizonIndex := pOrd - baseOrd

	strat, err := f.registry.Get(f.strategyKey)
	if err != nil {
		return strategy.Value{}, err
	}

	result, err := strat.Project(forecast.Context{
		BaseValue:    baseVal.Number,
		BasePeriod:   f.basePeriod,
		TargetPeriod: p,
		HorizonIndex: horizonIndex,
		History:      history,
		Params:       f.params,
		Rand:         f.rand,
	})
	if err != nil {
		return strategy.Value{}, err
	}
	return strategy.Present(result), nil
}
