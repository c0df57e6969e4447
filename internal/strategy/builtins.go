package strategy

import (
	"strconv"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/formula"
)

// anyMissing reports whether any input is the missing marker — per spec
// §4.2, Addition/Subtraction/Multiplication/Division all propagate missing
// if any operand is missing.
func anyMissing(inputs []Value) bool {
	for _, v := range inputs {
		if v.Missing {
			return true
		}
	}
	return false
}

type additionStrategy struct{}

func (additionStrategy) Key() string { return KeyAddition }

func (additionStrategy) Evaluate(inputs []Value, _ Options) (Value, error) {
	if len(inputs) == 0 {
		return MissingValue, nil
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}
	sum := 0.0
	for _, v := range inputs {
		sum += v.Number
	}
	return Present(sum), nil
}

type subtractionStrategy struct{}

func (subtractionStrategy) Key() string { return KeySubtraction }

func (subtractionStrategy) Evaluate(inputs []Value, _ Options) (Value, error) {
	if len(inputs) == 0 {
		return MissingValue, nil
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}
	result := inputs[0].Number
	for _, v := range inputs[1:] {
		result -= v.Number
	}
	return Present(result), nil
}

type multiplicationStrategy struct{}

func (multiplicationStrategy) Key() string { return KeyMultiplication }

func (multiplicationStrategy) Evaluate(inputs []Value, _ Options) (Value, error) {
	if len(inputs) == 0 {
		return MissingValue, nil
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}
	product := 1.0
	for _, v := range inputs {
		product *= v.Number
	}
	return Present(product), nil
}

// divisionStrategy divides left-associatively: inputs[0] / inputs[1] / ...
type divisionStrategy struct{}

func (divisionStrategy) Key() string { return KeyDivision }

func (divisionStrategy) Evaluate(inputs []Value, opts Options) (Value, error) {
	if len(inputs) == 0 {
		return MissingValue, nil
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}
	result := inputs[0].Number
	for _, v := range inputs[1:] {
		if v.Number == 0 {
			if opts.DivisionPolicy == engineconfig.DivisionPolicyPropagateNaN {
				return MissingValue, nil
			}
			return Value{}, engerr.New(engerr.KindDivisionByZero, "division by zero")
		}
		result /= v.Number
	}
	return Present(result), nil
}

// weightedAverageStrategy expects inputs as alternating (value, weight)
// pairs: spec §4.2 "WeightedAverage — paired inputs (value, weight)".
type weightedAverageStrategy struct{}

func (weightedAverageStrategy) Key() string { return KeyWeightedAvg }

func (weightedAverageStrategy) Evaluate(inputs []Value, _ Options) (Value, error) {
	if len(inputs) == 0 || len(inputs)%2 != 0 {
		return Value{}, engerr.New(engerr.KindStrategyMismatch,
			"weighted_average requires an even number of (value, weight) inputs, got %d", len(inputs))
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}

	var weightedSum, totalWeight float64
	for i := 0; i < len(inputs); i += 2 {
		v, w := inputs[i].Number, inputs[i+1].Number
		weightedSum += v * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return MissingValue, nil
	}
	return Present(weightedSum / totalWeight), nil
}

// formulaStrategy binds inputs positionally to opts.VarNames and evaluates
// opts.Formula. It is registered once, statelessly, under KeyFormula; the
// per-vertex expression/var-name list travels through Options (spec §4.3
// "Binding").
type formulaStrategy struct{}

func (formulaStrategy) Key() string { return KeyFormula }

func (formulaStrategy) Evaluate(inputs []Value, opts Options) (Value, error) {
	if opts.Formula == nil {
		return Value{}, engerr.New(engerr.KindStrategyMismatch, "formula strategy invoked without a parsed expression")
	}
	if len(opts.VarNames) != len(inputs) {
		return Value{}, engerr.New(engerr.KindStrategyMismatch,
			"formula expects %d bound variable(s), got %d input(s)", len(opts.VarNames), len(inputs))
	}
	if anyMissing(inputs) {
		return MissingValue, nil
	}

	vars := make(map[string]float64, len(inputs))
	for i, name := range opts.VarNames {
		vars[name] = inputs[i].Number
	}

	result, err := formula.Eval(opts.Formula, vars)
	if err != nil {
		if unbound, ok := err.(*formula.UnboundVariableError); ok {
			return Value{}, engerr.New(engerr.KindUnboundVariable, "unbound variable %q", unbound.Name)
		}
		if _, ok := err.(*formula.DivisionByZeroError); ok {
			return Value{}, engerr.New(engerr.KindDivisionByZero, "division by zero in formula")
		}
		return Value{}, engerr.Wrap(engerr.KindStrategyMismatch, err, "formula evaluation failed")
	}
	return Present(result), nil
}

// DefaultVarNames returns the conventional input_0, input_1, … variable
// names (spec §4.3) for a formula with n positional inputs.
func DefaultVarNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "input_" + strconv.Itoa(i)
	}
	return names
}
