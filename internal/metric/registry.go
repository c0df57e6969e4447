package metric

import (
	"sync"

	"github.com/nholding/fin-model-engine/internal/canon"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/formula"
	"github.com/nholding/fin-model-engine/internal/idgen"
	"github.com/nholding/fin-model-engine/internal/strategy"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

// VertexLookup is the minimal surface Instantiate needs from a graph of
// vertices. Graph satisfies this directly; metric is kept independent of
// the graph package to avoid an import cycle (graph depends on metric, not
// the reverse).
type VertexLookup interface {
	HasVertex(name string) bool
}

// Registry is a process-wide, freeze-once metric catalog (spec §4.4,
// mirroring strategy.Registry's and forecast.Registry's shape).
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]Definition
	frozen bool
}

// NewRegistry returns an empty metric catalog; callers register
// definitions at process start.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Definition)}
}

// Register adds defn under defn.Key.
func (r *Registry) Register(defn Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return engerr.New(engerr.KindDuplicateRegistration, "metric registry is frozen; cannot register %q", defn.Key)
	}
	if _, exists := r.byKey[defn.Key]; exists {
		return engerr.New(engerr.KindDuplicateRegistration, "metric %q already registered", defn.Key)
	}
	r.byKey[defn.Key] = defn
	return nil
}

// Get resolves a metric definition by key.
func (r *Registry) Get(key string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defn, ok := r.byKey[key]
	if !ok {
		return Definition{}, engerr.New(engerr.KindUnknownMetric, "unknown metric %q", key)
	}
	return defn, nil
}

// List returns the keys of every registered metric for which filter
// returns true (filter nil matches everything), in no particular order.
func (r *Registry) List(filter func(Definition) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byKey))
	for key, defn := range r.byKey {
		if filter == nil || filter(defn) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Freeze prevents further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Instantiate resolves key's declared inputs through names against graph,
// then builds a Metric-kind vertex bound to those resolved inputs (spec
// §4.4). vertexName is the name the new vertex is registered under; pass
// key itself when the graph should expose the metric under its catalog
// key unchanged.
func (r *Registry) Instantiate(key, vertexName string, names *canon.Registry, graph VertexLookup) (*vertex.Formula, error) {
	defn, err := r.Get(key)
	if err != nil {
		return nil, err
	}

	resolvedInputs := make([]string, len(defn.Inputs))
	var missing []string
	for i, input := range defn.Inputs {
		canonical := input
		if names != nil {
			canonical = names.Standardize(input).Canonical
		}
		if !graph.HasVertex(canonical) {
			missing = append(missing, canonical)
		}
		resolvedInputs[i] = canonical
	}
	if len(missing) > 0 {
		return nil, engerr.New(engerr.KindMissingInput,
			"metric %q references vertices not present in the graph: %v", key, missing).
			WithContext("metric", key).WithContext("missing", missing)
	}

	expr, err := formula.Parse(defn.Formula)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindStrategyMismatch, err, "metric %q has an unparseable formula", key)
	}

	varNames := defn.VarNames
	if len(varNames) == 0 {
		varNames = strategy.DefaultVarNames(len(resolvedInputs))
	}

	return vertex.NewMetric(vertexName, key, resolvedInputs, varNames, expr, defn.Formula, idgen.NewVertexInstanceID()), nil
}

// Interpret classifies value against key's interpretation thresholds (spec
// §4.4).
func (r *Registry) Interpret(key string, value float64) (Result, error) {
	defn, err := r.Get(key)
	if err != nil {
		return Result{}, err
	}
	return defn.interpret(value), nil
}

var defaultRegistry = NewRegistry()

// Default returns the shared process-wide metric registry.
func Default() *Registry { return defaultRegistry }
