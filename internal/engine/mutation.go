package engine

import (
	"sort"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

// AddVertex registers v under v.Name(), bumping the revision counter (spec
// §4.6, "Invalidation"). Fails if the name is already taken (V1).
func (e *Engine) AddVertex(v vertex.Vertex) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.vertices[v.Name()]; exists {
		return engerr.New(engerr.KindDuplicateVertex, "vertex %q already exists", v.Name())
	}
	e.vertices[v.Name()] = v
	e.revision++
	e.log.Debug().Str("vertex", v.Name()).Str("kind", string(v.Kind())).Msg("vertex added")
	return nil
}

// RemoveVertex deletes name. Without force, it refuses to remove a vertex
// that still has dependents — doing so anyway would leave those
// dependents referencing a MissingInput (spec §3.2, "Lifecycle"; spec §8,
// "Removing a vertex with dependents fails unless force=true").
func (e *Engine) RemoveVertex(name string, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.vertices[name]; !exists {
		return engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name)
	}

	if !force {
		var dependents []string
		for other, v := range e.vertices {
			if other == name {
				continue
			}
			for _, dep := range v.Dependencies() {
				if dep == name {
					dependents = append(dependents, other)
					break
				}
			}
		}
		if len(dependents) > 0 {
			return engerr.New(engerr.KindMissingInput,
				"vertex %q has dependent(s) %v; pass force=true to remove anyway", name, dependents).
				WithContext("vertex", name).WithContext("dependents", dependents)
		}
	}

	delete(e.vertices, name)
	e.revision++
	return nil
}

// Replace swaps the vertex registered under name for v, keeping the same
// name (spec §3.2, "Non-data vertices are immutable after creation except
// via replacement").
func (e *Engine) Replace(name string, v vertex.Vertex) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.vertices[name]; !exists {
		return engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name)
	}
	if v.Name() != name {
		return engerr.New(engerr.KindDuplicateVertex, "replacement vertex name %q does not match target %q", v.Name(), name)
	}
	e.vertices[name] = v
	e.revision++
	return nil
}

// SetValue sets a Data vertex's scalar at p (spec §3.2, "Data vertices may
// have period-level values set or unset").
func (e *Engine) SetValue(name string, p period.Period, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, exists := e.vertices[name]
	if !exists {
		return engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name)
	}
	d, ok := v.(*vertex.Data)
	if !ok {
		return engerr.New(engerr.KindStrategyMismatch, "vertex %q is not a data vertex", name)
	}
	d.SetValue(p, value)
	e.revision++
	return nil
}

// AddPeriod extends the declared period sequence (spec §4.8).
func (e *Engine) AddPeriod(p period.Period) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.periods.Add(p)
	e.revision++
}

// AddAdjustment stores adj and bumps the revision so memoized adjusted
// values are invalidated (spec §4.6, "Invalidation").
func (e *Engine) AddAdjustment(adj *adjustment.Adjustment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adjustments.Add(adj)
	e.revision++
}

// RemoveAdjustment removes the adjustment with the given ID.
func (e *Engine) RemoveAdjustment(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.adjustments.Remove(id); err != nil {
		return err
	}
	e.revision++
	return nil
}

// ListAdjustments exposes the adjustment manager's List for query surfaces
// that need to report what's currently applied.
func (e *Engine) ListAdjustments(filter *adjustment.Filter) []*adjustment.Adjustment {
	return e.adjustments.List(filter)
}

// SetScenarioFilter changes which stored adjustments CalculateAdjusted
// considers, bumping the revision since this can change every adjusted
// result (spec §4.8, "Ordering guarantees").
func (e *Engine) SetScenarioFilter(filter *adjustment.Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenarioFilter = filter
	e.revision++
}

// Vertex returns the vertex registered under name, if any.
func (e *Engine) Vertex(name string) (vertex.Vertex, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vertices[name]
	return v, ok
}

// ListNodes returns the names of every vertex for which filter returns
// true (filter nil matches everything), sorted for deterministic output.
func (e *Engine) ListNodes(filter func(vertex.Vertex) bool) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for name, v := range e.vertices {
		if filter == nil || filter(v) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
