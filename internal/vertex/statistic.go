package vertex

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// StatFunc computes a statistic over an ordered slice of resolved values.
// Registered handles (built-in or custom) are looked up by string key, the
// same convention CalculationStrategy uses (spec §9, "Custom callables").
type StatFunc func(values []float64) (float64, error)

const (
	StatMean = "mean"
	StatStdev = "stdev"
	// StatYoY is the year-over-year growth special case (spec §3.2,
	// "Statistic vertex"): exactly two periods, oldest first.
	StatYoY = "yoy"
)

func meanStat(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, engerr.New(engerr.KindStrategyMismatch, "mean requires at least one value")
	}
	return stat.Mean(values, nil), nil
}

func stdevStat(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, engerr.New(engerr.KindStrategyMismatch, "stdev requires at least two values")
	}
	return stat.StdDev(values, nil), nil
}

func yoyStat(values []float64) (float64, error) {
	if len(values) != 2 {
		return 0, engerr.New(engerr.KindStrategyMismatch, "yoy requires exactly two values (prior, current), got %d", len(values))
	}
	prior, current := values[0], values[1]
	if prior == 0 {
		return 0, engerr.New(engerr.KindDivisionByZero, "yoy growth: prior period value is zero")
	}
	return (current - prior) / prior, nil
}

// StatRegistry is a process-wide lookup for statistic functions, mirroring
// strategy.Registry's registration/freeze shape (spec §9, "Global
// registries").
type StatRegistry struct {
	mu     sync.RWMutex
	byKey  map[string]StatFunc
	frozen bool
}

// NewStatRegistry returns a registry preloaded with the built-in functions.
func NewStatRegistry() *StatRegistry {
	return &StatRegistry{byKey: map[string]StatFunc{
		StatMean:  meanStat,
		StatStdev: stdevStat,
		StatYoY:   yoyStat,
	}}
}

// Register adds a custom statistic function under key.
func (r *StatRegistry) Register(key string, fn StatFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return engerr.New(engerr.KindDuplicateRegistration, "stat registry is frozen; cannot register %q", key)
	}
	if _, exists := r.byKey[key]; exists {
		return engerr.New(engerr.KindDuplicateRegistration, "stat function %q already registered", key)
	}
	r.byKey[key] = fn
	return nil
}

// Get resolves a statistic function by key.
func (r *StatRegistry) Get(key string) (StatFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byKey[key]
	if !ok {
		return nil, engerr.New(engerr.KindUnknownStrategy, "unknown statistic function %q", key)
	}
	return fn, nil
}

// Freeze prevents further registration.
func (r *StatRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

var defaultStatRegistry = NewStatRegistry()

// DefaultStatRegistry returns the shared process-wide statistic registry.
func DefaultStatRegistry() *StatRegistry { return defaultStatRegistry }

// Statistic computes a statistic (mean, stdev, YoY growth, or a registered
// custom function) across a fixed window of periods of one input vertex
// (spec §3.2). The vertex's own declared period need not equal the query
// period — the window is fixed at construction time; a mismatching query
// period is accepted (not an error) since the result does not depend on it.
type Statistic struct {
	name     string
	input    string
	window   []period.Period
	statKey  string
	registry *StatRegistry
}

// NewStatistic builds a Statistic vertex. registry may be nil to use the
// shared DefaultStatRegistry().
func NewStatistic(name, input string, window []period.Period, statKey string, registry *StatRegistry) *Statistic {
	if registry == nil {
		registry = defaultStatRegistry
	}
	return &Statistic{name: name, input: input, window: window, statKey: statKey, registry: registry}
}

func (s *Statistic) Name() string            { return s.name }
func (s *Statistic) Kind() Kind              { return KindStatistic }
func (s *Statistic) Dependencies() []string  { return []string{s.input} }
func (s *Statistic) Input() string           { return s.input }
func (s *Statistic) Window() []period.Period { return s.window }
func (s *Statistic) StatKey() string         { return s.statKey }

func (s *Statistic) Evaluate(r Resolver, _ period.Period, _ EvalContext) (strategy.Value, error) {
	fn, err := s.registry.Get(s.statKey)
	if err != nil {
		return strategy.Value{}, err
	}

	values := make([]float64, 0, len(s.window))
	for _, wp := range s.window {
		v, err := r.Value(s.input, wp)
		if err != nil {
			return strategy.Value{}, err
		}
		if v.Missing {
			// Spec is silent on partial windows; this engine treats a
			// missing sample as making the whole statistic missing,
			// consistent with how Formula/CalculationStrategy propagate
			// missing operands (spec §4.2).
			return strategy.MissingValue, nil
		}
		values = append(values, v.Number)
	}

	result, err := fn(values)
	if err != nil {
		return strategy.Value{}, err
	}
	return strategy.Present(result), nil
}
