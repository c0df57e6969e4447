package vertex

import (
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/formula"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// Formula is a vertex whose value is computed by resolving an ordered list
// of inputs at a period and running a CalculationStrategy over them (spec
// §3.2, §4.2, §4.3). A Metric vertex is the same representation with
// Kind() == KindMetric — its formula and inputs are resolved from the
// metric registry at construction time (spec §4.4) rather than authored
// directly, but evaluation afterwards is identical (spec §4.4, last line).
type Formula struct {
	name        string
	kind        Kind // KindFormula or KindMetric
	inputs      []string
	varNames    []string
	strategyKey string
	expr        formula.Expr // only set when strategyKey == strategy.KeyFormula
	source      string       // original formula text, for bundle round-tripping
	metricName  string       // only set for Kind() == KindMetric
	instanceID  string       // only set for Kind() == KindMetric; see NewMetric
}

// NewFormula builds a user-authored Formula vertex bound to a built-in
// strategy (add/subtract/multiply/divide/weighted_average).
func NewFormula(name string, inputs []string, strategyKey string) *Formula {
	return &Formula{name: name, kind: KindFormula, inputs: inputs, strategyKey: strategyKey, varNames: strategy.DefaultVarNames(len(inputs))}
}

// NewFormulaExpr builds a user-authored Formula vertex carrying a parsed
// expression, with inputs bound positionally to varNames (spec §4.3
// "Binding"). Falls back to input_0, input_1, … if varNames is empty.
// source is the original formula text, kept only so bundle serialization
// (internal/bundle) can round-trip without re-rendering the parsed AST.
func NewFormulaExpr(name string, inputs []string, varNames []string, expr formula.Expr, source string) *Formula {
	if len(varNames) == 0 {
		varNames = strategy.DefaultVarNames(len(inputs))
	}
	return &Formula{name: name, kind: KindFormula, inputs: inputs, varNames: varNames, strategyKey: strategy.KeyFormula, expr: expr, source: source}
}

// NewMetric builds a Metric-kind vertex; identical shape to Formula but
// tagged separately so graph listings/filters can distinguish
// user-authored formulas from catalog-resolved metrics (spec §4.4).
// instanceID identifies this particular instantiation of the catalog
// entry independent of vertexName (which is caller-chosen and may repeat
// across graphs merged together, e.g. two "gross_margin" instantiations
// both named "GrossMargin" before a rename_other merge). It is minted by
// metric.Registry.Instantiate, and by internal/bundle when it loads a
// metric node that carries none.
func NewMetric(name, metricName string, inputs []string, varNames []string, expr formula.Expr, source, instanceID string) *Formula {
	f := NewFormulaExpr(name, inputs, varNames, expr, source)
	f.kind = KindMetric
	f.metricName = metricName
	f.instanceID = instanceID
	return f
}

func (f *Formula) Name() string           { return f.name }
func (f *Formula) Kind() Kind             { return f.kind }
func (f *Formula) Dependencies() []string { return f.inputs }
func (f *Formula) MetricName() string     { return f.metricName }
func (f *Formula) StrategyKey() string    { return f.strategyKey }
func (f *Formula) VarNames() []string     { return f.varNames }
func (f *Formula) Expr() formula.Expr     { return f.expr }
func (f *Formula) Source() string         { return f.source }
func (f *Formula) InstanceID() string     { return f.instanceID }

func (f *Formula) Evaluate(r Resolver, p period.Period, ctx EvalContext) (strategy.Value, error) {
	resolved := make([]strategy.Value, len(f.inputs))
	for i, in := range f.inputs {
		v, err := r.Value(in, p)
		if err != nil {
			return strategy.Value{}, err
		}
		resolved[i] = v
	}

	strat, err := ctx.Strategies.Get(f.strategyKey)
	if err != nil {
		return strategy.Value{}, err
	}

	opts := strategy.Options{
		DivisionPolicy: ctx.DivisionPolicy,
		Formula:        f.expr,
		VarNames:       f.varNames,
	}
	val, err := strat.Evaluate(resolved, opts)
	if err != nil {
		return strategy.Value{}, err
	}
	return val, nil
}

// ensure a construction-time sanity check is available to graph.Add* calls:
// varNames length must match inputs length when an explicit expression is
// supplied, since binding is strictly positional.
func ValidateBinding(inputs, varNames []string) error {
	if len(varNames) != 0 && len(varNames) != len(inputs) {
		return engerr.New(engerr.KindStrategyMismatch,
			"formula vertex declares %d input(s) but %d variable name(s)", len(inputs), len(varNames))
	}
	return nil
}
