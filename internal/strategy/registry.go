package strategy

import (
	"sync"

	"github.com/nholding/fin-model-engine/internal/engerr"
)

// Registry is the process-wide strategy lookup (spec §4.2, §9 "Global
// registries"). It is populated with the built-ins at init time and may
// accept plugin registrations only until Freeze is called — by convention,
// the first time a Graph is constructed (spec §5, "Shared resources").
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]Strategy
	frozen bool
}

// NewRegistry returns a Registry preloaded with every built-in strategy.
func NewRegistry() *Registry {
	r := &Registry{byKey: make(map[string]Strategy)}
	for _, s := range []Strategy{
		additionStrategy{},
		subtractionStrategy{},
		multiplicationStrategy{},
		divisionStrategy{},
		weightedAverageStrategy{},
		formulaStrategy{},
	} {
		r.byKey[s.Key()] = s
	}
	return r
}

// Register adds s under s.Key(). Returns KindDuplicateRegistration if the
// key is taken, or a frozen-registry error once Freeze has been called.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return engerr.New(engerr.KindDuplicateRegistration, "strategy registry is frozen; cannot register %q", s.Key())
	}
	if _, exists := r.byKey[s.Key()]; exists {
		return engerr.New(engerr.KindDuplicateRegistration, "strategy %q already registered", s.Key())
	}
	r.byKey[s.Key()] = s
	return nil
}

// Get resolves a strategy by key, returning KindUnknownStrategy if absent.
func (r *Registry) Get(key string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byKey[key]
	if !ok {
		return nil, engerr.New(engerr.KindUnknownStrategy, "unknown calculation strategy %q", key)
	}
	return s, nil
}

// Freeze prevents any further registration. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// defaultRegistry is the shared process-wide instance most callers use;
// graphs that need isolated plugin strategies can construct their own via
// NewRegistry instead.
var defaultRegistry = NewRegistry()

// Default returns the shared process-wide strategy registry.
func Default() *Registry { return defaultRegistry }
