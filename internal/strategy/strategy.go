// Package strategy implements CalculationStrategy (spec §4.2): pluggable
// numeric operations dispatched by string key so persisted graphs can
// resolve an operation by name on load (spec §4.6, §6.3, §9 "Global
// registries").
package strategy

import (
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/formula"
)

// Value is a resolved scalar, or "missing" — the engine's propagation
// marker for an absent period value (spec §3.2).
type Value struct {
	Number  float64
	Missing bool
}

// Present constructs a Value holding a concrete number.
func Present(n float64) Value { return Value{Number: n} }

// MissingValue is the shared "no value" marker.
var MissingValue = Value{Missing: true}

// Options carries the per-evaluation configuration a strategy may need.
// Formula is only set when Key() == KeyFormula; VarNames is always passed
// through from the vertex. Every other built-in strategy ignores both.
type Options struct {
	DivisionPolicy engineconfig.DivisionPolicy
	Formula        formula.Expr
	VarNames       []string
}

// Strategy is the CalculationStrategy trait (spec §4.2).
type Strategy interface {
	// Key is the string this strategy registers itself under.
	Key() string
	// Evaluate computes a result from already-resolved input values, in
	// declaration order.
	Evaluate(inputs []Value, opts Options) (Value, error)
}

const (
	KeyAddition       = "add"
	KeySubtraction    = "subtract"
	KeyMultiplication = "multiply"
	KeyDivision       = "divide"
	KeyWeightedAvg    = "weighted_average"
	KeyFormula        = "formula"
)
