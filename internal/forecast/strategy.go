// Package forecast implements the ForecastKernel (spec §4.7): lazy
// projection strategies a Forecast vertex anchors at a base vertex/period
// and applies to periods beyond historical coverage.
package forecast

import (
	"golang.org/x/exp/rand"

	"github.com/nholding/fin-model-engine/internal/period"
)

// Aggregation selects how historical samples are summarized by the
// historical-average-growth and average-value strategies.
type Aggregation string

const (
	AggregationMean   Aggregation = "mean"
	AggregationMedian Aggregation = "median"
)

// Context carries everything a Strategy needs to project a single target
// period (spec §4.7). HorizonIndex is the 1-based distance from BasePeriod
// ("period k after base"); History holds the base vertex's known values up
// to and including BasePeriod, oldest first, with no gaps (a gap makes the
// corresponding slot absent, so len(History) may be less than the number of
// historical periods).
type Context struct {
	BaseValue    float64
	BasePeriod   period.Period
	TargetPeriod period.Period
	HorizonIndex int
	History      []float64
	Params       map[string]any
	Rand         RandSource
}

// RandSource is the seedable generator the "statistical" strategy samples
// from — the same interface gonum's stat/distuv "Src" field accepts, so a
// *rand.Rand can be handed to both directly (spec §4.7, "seedable for
// determinism").
type RandSource = rand.Source

// NewRand builds a deterministic RandSource from a seed, for wiring into
// Context.Rand (typically the engine-wide ForecastRandomSeed option).
func NewRand(seed int64) RandSource {
	return rand.New(rand.NewSource(uint64(seed)))
}

// Strategy is a registered forecast projection (spec §4.7, "strategy
// registered by key"). Project returns the synthesized value for
// ctx.TargetPeriod; custom strategies are deliberately the only ones that
// may close over non-serializable state (spec §9, "Custom callables").
type Strategy interface {
	Key() string
	Project(ctx Context) (float64, error)
}

// CustomFunc lets a caller register a forecast strategy backed by an
// arbitrary Go function rather than a built-in formula.
type CustomFunc func(ctx Context) (float64, error)

type customStrategy struct {
	key string
	fn  CustomFunc
}

func (c customStrategy) Key() string { return c.key }
func (c customStrategy) Project(ctx Context) (float64, error) { return c.fn(ctx) }

// NewCustomStrategy wraps fn as a Strategy registrable under key.
func NewCustomStrategy(key string, fn CustomFunc) Strategy {
	return customStrategy{key: key, fn: fn}
}
