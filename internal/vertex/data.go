package vertex

import (
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// Data is a leaf vertex storing a period -> scalar mapping (spec §3.2). A
// period absent from Values is "missing", not an error.
type Data struct {
	name   string
	Values map[period.Period]float64
}

// NewData constructs a Data vertex. values may be nil; use SetValue to
// populate it incrementally.
func NewData(name string, values map[period.Period]float64) *Data {
	if values == nil {
		values = make(map[period.Period]float64)
	}
	return &Data{name: name, Values: values}
}

func (d *Data) Name() string           { return d.name }
func (d *Data) Kind() Kind             { return KindData }
func (d *Data) Dependencies() []string { return nil }

// SetValue sets (or overwrites) the scalar for p. Data vertices are the
// only variant mutable after creation (spec §3.2, "Lifecycle").
func (d *Data) SetValue(p period.Period, v float64) {
	d.Values[p] = v
}

// UnsetValue removes p's scalar, if any, reverting it to missing.
func (d *Data) UnsetValue(p period.Period) {
	delete(d.Values, p)
}

func (d *Data) Evaluate(_ Resolver, p period.Period, _ EvalContext) (strategy.Value, error) {
	v, ok := d.Values[p]
	if !ok {
		return strategy.MissingValue, nil
	}
	return strategy.Present(v), nil
}
