package forecast

import (
	"sync"

	"github.com/nholding/fin-model-engine/internal/engerr"
)

// Registry is a process-wide, freeze-once lookup of forecast strategies by
// key, mirroring strategy.Registry's shape (spec §9, "Global registries").
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]Strategy
	frozen bool
}

// NewRegistry returns a registry preloaded with the five built-in
// strategies from spec §4.7's table. "custom" strategies are registered
// explicitly by callers via Register, since they carry a callable.
func NewRegistry() *Registry {
	r := &Registry{byKey: make(map[string]Strategy, 5)}
	for _, s := range []Strategy{
		fixedGrowthStrategy{},
		curveStrategy{},
		statisticalStrategy{},
		historicalAverageGrowthStrategy{},
		averageValueStrategy{},
	} {
		r.byKey[s.Key()] = s
	}
	return r
}

// Register adds s under s.Key(). Errors if the registry is frozen or the
// key is already taken.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return engerr.New(engerr.KindDuplicateRegistration, "forecast registry is frozen; cannot register %q", s.Key())
	}
	if _, exists := r.byKey[s.Key()]; exists {
		return engerr.New(engerr.KindDuplicateRegistration, "forecast strategy %q already registered", s.Key())
	}
	r.byKey[s.Key()] = s
	return nil
}

// Get resolves a forecast strategy by key.
func (r *Registry) Get(key string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKey[key]
	if !ok {
		return nil, engerr.New(engerr.KindUnknownForecastStrategy, "unknown forecast strategy %q", key)
	}
	return s, nil
}

// Freeze prevents further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

var defaultRegistry = NewRegistry()

// Default returns the shared process-wide forecast registry.
func Default() *Registry { return defaultRegistry }
