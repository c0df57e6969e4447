// Package vertex implements the Vertex variants (spec §3.2): Data, Formula,
// Metric, Statistic, Forecast. Each obeys the uniform contract
// `value(period) -> number | missing`, dispatched by the engine rather than
// by vertex-side reflection — spec §9's "Polymorphic vertices" note asks for
// a tagged-variant representation with a single evaluate(engine, period)
// dispatch rather than an inheritance hierarchy, which is what Evaluate
// below gives every variant.
package vertex

import (
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// Kind tags which variant a Vertex is.
type Kind string

const (
	KindData      Kind = "data"
	KindFormula   Kind = "formula"
	KindMetric    Kind = "metric"
	KindStatistic Kind = "statistic"
	KindForecast  Kind = "forecast"
)

// Resolver is the engine's lookup surface, as seen by a vertex evaluating
// itself. A vertex never owns a pointer to another vertex (spec §9, "Cyclic
// object graphs") — it only knows input *names*, resolved back through
// whatever owns the graph.
type Resolver interface {
	// Value resolves another vertex's value at a period, applying the full
	// engine algorithm (memoization, adjustments) recursively.
	Value(name string, p period.Period) (strategy.Value, error)
	// Periods returns the graph's full declared period sequence, needed by
	// Statistic/Forecast vertices that aggregate across a window.
	Periods() *period.Sequence
}

// EvalContext carries engine-wide configuration a vertex's evaluation may
// need (division policy, the shared strategy registry) without vertices
// holding global state themselves.
type EvalContext struct {
	DivisionPolicy engineconfig.DivisionPolicy
	Strategies     *strategy.Registry
}

// Vertex is the shared contract every variant implements.
type Vertex interface {
	Name() string
	Kind() Kind
	// Dependencies lists this vertex's own direct input names (spec V4:
	// transitive dependencies are derived by the engine, never stored).
	Dependencies() []string
	// Evaluate computes this vertex's value at p, using r to resolve inputs.
	Evaluate(r Resolver, p period.Period, ctx EvalContext) (strategy.Value, error)
}
