// Package graph implements the top-level Graph composition (spec §4.8): a
// facade over engine.Engine that adds catalog-driven construction
// (add_metric, add_forecast), node listing, and multi-graph merging.
package graph

import (
	"errors"
	"sync"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/audit"
	"github.com/nholding/fin-model-engine/internal/canon"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/engine"
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/forecast"
	"github.com/nholding/fin-model-engine/internal/formula"
	"github.com/nholding/fin-model-engine/internal/idgen"
	"github.com/nholding/fin-model-engine/internal/metric"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

// ErrFrozen is returned by any mutation attempted after Freeze. It is a
// plain sentinel rather than an *engerr.EngineError because "frozen" is a
// read-only-snapshot safety rail this engine adds on top of spec §5's
// "Implementations that wish to support concurrent read-heavy workloads
// should offer a freeze operation" — not one of spec §7's closed error
// kinds.
var ErrFrozen = errors.New("graph is frozen; no further mutation permitted")

// MergePolicy selects how Merge resolves a name or adjustment-ID collision
// (spec §4.8, "Merging").
type MergePolicy string

const (
	MergeReject      MergePolicy = "reject"
	MergeKeepSelf    MergePolicy = "keep_self"
	MergeReplace     MergePolicy = "replace"
	MergeRenameOther MergePolicy = "rename_other"
)

// Graph composes an engine.Engine with the shared metric/canonical-name/
// forecast registries needed to resolve declarative add_metric/add_forecast
// calls (spec §4.8).
type Graph struct {
	mu     sync.RWMutex
	frozen bool

	eng       *engine.Engine
	metrics   *metric.Registry
	names     *canon.Registry
	forecasts *forecast.Registry

	// provenance tracks who created or last replaced each vertex, since the
	// vertex variants themselves (spec §3) stay free of ambient bookkeeping
	// fields. Keyed by vertex name; stamped on first add, updated on Replace.
	provenance map[string]*audit.AuditInfo
}

// New builds an empty Graph. A nil metrics or forecasts registry falls back
// to that package's shared Default(); a nil names registry is replaced by a
// fresh, empty canon.New().
func New(opts engineconfig.EngineOptions, strategies *strategy.Registry, metrics *metric.Registry, names *canon.Registry, forecasts *forecast.Registry) *Graph {
	if metrics == nil {
		metrics = metric.Default()
	}
	if names == nil {
		names = canon.New()
	}
	if forecasts == nil {
		forecasts = forecast.Default()
	}
	return &Graph{
		eng:        engine.New(opts, strategies),
		metrics:    metrics,
		names:      names,
		forecasts:  forecasts,
		provenance: make(map[string]*audit.AuditInfo),
	}
}

// stampCreated records a new vertex's provenance, overwriting any stale
// entry left by a prior name (e.g. after Remove then re-Add). The stamp
// carries the engine's current revision, already bumped by the AddVertex
// call that precedes this one.
func (g *Graph) stampCreated(name string) {
	g.provenance[name] = audit.NewAuditInfo("", name, g.eng.Revision())
}

// Provenance returns who created name and, if it has since been replaced,
// who replaced it and when.
func (g *Graph) Provenance(name string) (audit.AuditInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.provenance[name]
	if !ok {
		return audit.AuditInfo{}, false
	}
	return *a, true
}

func (g *Graph) checkMutable() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.frozen {
		return ErrFrozen
	}
	return nil
}

// Freeze marks the graph read-only (spec §5, "freeze operation that
// returns a read-only snapshot"). Queries remain available; every
// mutation method starts returning ErrFrozen.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether Freeze has been called.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// --- Mutation surface (spec §4.8) -----------------------------------------

// AddDataItem adds a Data vertex.
func (g *Graph) AddDataItem(name string, values map[period.Period]float64) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := g.eng.AddVertex(vertex.NewData(name, values)); err != nil {
		return err
	}
	g.stampCreated(name)
	return nil
}

// AddCalculation adds a Formula vertex bound either to a built-in
// CalculationStrategy (source empty) or to a parsed formula expression
// (source is the original formula text, kept for bundle round-tripping).
func (g *Graph) AddCalculation(name string, inputs []string, opKey string, expr formula.Expr, varNames []string, source string) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	var v *vertex.Formula
	if expr != nil {
		if err := vertex.ValidateBinding(inputs, varNames); err != nil {
			return err
		}
		v = vertex.NewFormulaExpr(name, inputs, varNames, expr, source)
	} else {
		v = vertex.NewFormula(name, inputs, opKey)
	}
	if err := g.eng.AddVertex(v); err != nil {
		return err
	}
	g.stampCreated(name)
	return nil
}

// AddMetric instantiates metricKey from the metric catalog, binding its
// declared inputs against this graph's vertices, and registers the result
// under vertexName (spec §4.4, §4.8 "add_metric(metric_key)").
func (g *Graph) AddMetric(metricKey, vertexName string) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	v, err := g.metrics.Instantiate(metricKey, vertexName, g.names, g.eng)
	if err != nil {
		return err
	}
	if err := g.eng.AddVertex(v); err != nil {
		return err
	}
	g.stampCreated(vertexName)
	return nil
}

// AddForecast adds a Forecast vertex wrapping base at basePeriod, projecting
// over horizon via the named forecast strategy (spec §4.7).
func (g *Graph) AddForecast(name, base string, basePeriod period.Period, horizon []period.Period, strategyKey string, params map[string]any, rnd forecast.RandSource) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := g.eng.AddVertex(vertex.NewForecast(name, base, basePeriod, horizon, strategyKey, params, rnd, g.forecasts)); err != nil {
		return err
	}
	g.stampCreated(name)
	return nil
}

// AddVertex registers an already-constructed vertex directly, bypassing the
// catalog-driven AddMetric/AddForecast convenience paths. Used by
// internal/bundle to reconstruct a graph from its serialized form, where
// every vertex arrives fully specified.
func (g *Graph) AddVertex(v vertex.Vertex) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := g.eng.AddVertex(v); err != nil {
		return err
	}
	g.stampCreated(v.Name())
	return nil
}

// ListAdjustments returns the stored adjustments matching filter (nil
// matches everything).
func (g *Graph) ListAdjustments(filter *adjustment.Filter) []*adjustment.Adjustment {
	return g.eng.ListAdjustments(filter)
}

// SetValue sets a Data vertex's scalar at p.
func (g *Graph) SetValue(name string, p period.Period, v float64) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	return g.eng.SetValue(name, p, v)
}

// Replace swaps the vertex registered under name for v.
func (g *Graph) Replace(name string, v vertex.Vertex) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := g.eng.Replace(name, v); err != nil {
		return err
	}
	if a, ok := g.provenance[name]; ok {
		a.UpdateAuditInfo("graph.Replace", g.eng.Revision())
	} else {
		g.stampCreated(name)
	}
	return nil
}

// Remove deletes name, refusing if dependents remain unless force is set.
func (g *Graph) Remove(name string, force bool) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := g.eng.RemoveVertex(name, force); err != nil {
		return err
	}
	delete(g.provenance, name)
	return nil
}

// AddAdjustment stores adj.
func (g *Graph) AddAdjustment(adj *adjustment.Adjustment) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	g.eng.AddAdjustment(adj)
	return nil
}

// RemoveAdjustment removes the adjustment with the given ID.
func (g *Graph) RemoveAdjustment(id string) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	return g.eng.RemoveAdjustment(id)
}

// AddPeriod extends the declared period sequence.
func (g *Graph) AddPeriod(p period.Period) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	g.eng.AddPeriod(p)
	return nil
}

// ClearCache purges memo entries for name, or the whole memo if nil.
func (g *Graph) ClearCache(name *string) {
	g.eng.ClearCache(name)
}

// --- Query surface (spec §4.8) --------------------------------------------

func (g *Graph) Calculate(name string, p period.Period) (strategy.Value, error) {
	return g.eng.Calculate(name, p)
}

func (g *Graph) CalculateAdjusted(name string, p period.Period) (strategy.Value, error) {
	return g.eng.CalculateAdjusted(name, p)
}

func (g *Graph) CalculateAll(p period.Period, adjusted bool) (map[string]strategy.Value, map[string]error) {
	return g.eng.CalculateAll(p, adjusted)
}

func (g *Graph) GetDependencies(name string) ([]string, error) { return g.eng.GetDependencies(name) }
func (g *Graph) GetDependents(name string) ([]string, error)   { return g.eng.GetDependents(name) }
func (g *Graph) TopologicalOrder() ([]string, error)           { return g.eng.TopologicalOrder() }
func (g *Graph) Validate() []engine.Issue                      { return g.eng.Validate() }
func (g *Graph) DetectCycles() [][]string                      { return g.eng.DetectCycles() }
func (g *Graph) HasVertex(name string) bool                    { return g.eng.HasVertex(name) }
func (g *Graph) Vertex(name string) (vertex.Vertex, bool)       { return g.eng.Vertex(name) }
func (g *Graph) Periods() *period.Sequence                     { return g.eng.Periods() }

// ListNodes returns vertex names for which filter returns true (nil
// matches everything).
func (g *Graph) ListNodes(filter func(vertex.Vertex) bool) []string {
	return g.eng.ListNodes(filter)
}

// SetScenarioFilter changes which stored adjustments CalculateAdjusted
// considers.
func (g *Graph) SetScenarioFilter(filter *adjustment.Filter) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	g.eng.SetScenarioFilter(filter)
	return nil
}

// Merge unions other into g: periods are unioned, vertices not already
// present are added, and name collisions resolve per policy; adjustments
// merge the same way, keyed by ID (spec §4.8, "Merging").
//
// Under rename_other, a colliding vertex moves to name+"_other" — but
// "other" may contain further vertices (colliding or not) whose
// Dependencies()/Base()/Input() still point at the pre-rename name. Those
// references are rewritten to match (via remapDependencies) before
// anything is added, so a multi-vertex "other" graph with internal
// cross-references keeps resolving correctly after the merge. The same
// rewrite applies to every retained adjustment's VertexName.
func (g *Graph) Merge(other *Graph, policy MergePolicy) error {
	if err := g.checkMutable(); err != nil {
		return err
	}

	for _, p := range other.Periods().All() {
		g.eng.AddPeriod(p)
	}

	otherNames := other.ListNodes(nil)

	renames := make(map[string]string)
	if policy == MergeRenameOther {
		for _, name := range otherNames {
			if g.HasVertex(name) {
				renames[name] = name + "_other"
			}
		}
	}

	for _, name := range otherNames {
		v, _ := other.Vertex(name)
		if len(renames) > 0 {
			remapped, err := remapDependencies(v, renames)
			if err != nil {
				return err
			}
			v = remapped
		}

		if !g.HasVertex(name) {
			if err := g.eng.AddVertex(v); err != nil {
				return err
			}
			g.stampCreated(name)
			continue
		}
		switch policy {
		case MergeReject:
			return engerr.New(engerr.KindDuplicateVertex, "merge: vertex %q already exists in the target graph", name)
		case MergeKeepSelf:
			// leave g's vertex in place
		case MergeReplace:
			if err := g.eng.Replace(name, v); err != nil {
				return err
			}
			if a, ok := g.provenance[name]; ok {
				a.UpdateAuditInfo("graph.Merge", g.eng.Revision())
			} else {
				g.stampCreated(name)
			}
		case MergeRenameOther:
			newName := renames[name]
			renamed, err := renameVertex(newName, v)
			if err != nil {
				return err
			}
			if err := g.eng.AddVertex(renamed); err != nil {
				return err
			}
			g.stampCreated(newName)
		default:
			return engerr.New(engerr.KindDuplicateVertex, "merge: unknown merge policy %q", policy)
		}
	}

	existingIDs := make(map[string]bool)
	for _, adj := range g.eng.ListAdjustments(nil) {
		existingIDs[adj.ID] = true
	}
	for _, adj := range other.eng.ListAdjustments(nil) {
		adj := adj
		if newTarget, ok := renames[adj.VertexName]; ok {
			clone := *adj
			clone.VertexName = newTarget
			adj = &clone
		}

		if !existingIDs[adj.ID] {
			g.eng.AddAdjustment(adj)
			continue
		}
		switch policy {
		case MergeReject:
			return engerr.New(engerr.KindDuplicateRegistration, "merge: adjustment %q already exists in the target graph", adj.ID)
		case MergeKeepSelf:
		case MergeReplace:
			_ = g.eng.RemoveAdjustment(adj.ID)
			g.eng.AddAdjustment(adj)
		case MergeRenameOther:
			clone := *adj
			clone.ID = idgen.NewAdjustmentID()
			g.eng.AddAdjustment(&clone)
		}
	}

	return nil
}

// renameVertex rebuilds v under newName. Needed only by MergeRenameOther,
// since a Vertex has no general-purpose "WithName" — constructing a fresh
// instance per kind is simpler than adding mutable name state everywhere
// else in the vertex package.
func renameVertex(newName string, v vertex.Vertex) (vertex.Vertex, error) {
	switch t := v.(type) {
	case *vertex.Data:
		return vertex.NewData(newName, t.Values), nil
	case *vertex.Statistic:
		return vertex.NewStatistic(newName, t.Input(), t.Window(), t.StatKey(), nil), nil
	case *vertex.Forecast:
		return vertex.NewForecast(newName, t.Base(), t.BasePeriod(), t.Horizon(), t.StrategyKey(), t.Params(), nil, nil), nil
	case *vertex.Formula:
		if t.Kind() == vertex.KindMetric {
			return vertex.NewMetric(newName, t.MetricName(), t.Dependencies(), t.VarNames(), t.Expr(), t.Source(), t.InstanceID()), nil
		}
		if t.StrategyKey() == strategy.KeyFormula {
			return vertex.NewFormulaExpr(newName, t.Dependencies(), t.VarNames(), t.Expr(), t.Source()), nil
		}
		return vertex.NewFormula(newName, t.Dependencies(), t.StrategyKey()), nil
	default:
		return nil, engerr.New(engerr.KindStrategyMismatch, "merge: cannot rename vertex of unrecognized type for %q", newName)
	}
}

// remapDependencies rebuilds v under its own name with every dependency
// name present in renames swapped for its mapped value. Returns v
// unchanged (no reconstruction) if none of its dependencies appear in
// renames. Needed alongside renameVertex so rename_other collisions don't
// silently orphan references from other, still-present vertices in the
// incoming graph.
func remapDependencies(v vertex.Vertex, renames map[string]string) (vertex.Vertex, error) {
	remap := func(name string) (string, bool) {
		newName, ok := renames[name]
		return newName, ok
	}
	anyRemapped := false
	for _, dep := range v.Dependencies() {
		if _, ok := remap(dep); ok {
			anyRemapped = true
			break
		}
	}
	if !anyRemapped {
		return v, nil
	}

	switch t := v.(type) {
	case *vertex.Data:
		return v, nil
	case *vertex.Statistic:
		input := t.Input()
		if newName, ok := remap(input); ok {
			input = newName
		}
		return vertex.NewStatistic(t.Name(), input, t.Window(), t.StatKey(), nil), nil
	case *vertex.Forecast:
		base := t.Base()
		if newName, ok := remap(base); ok {
			base = newName
		}
		return vertex.NewForecast(t.Name(), base, t.BasePeriod(), t.Horizon(), t.StrategyKey(), t.Params(), nil, nil), nil
	case *vertex.Formula:
		inputs := append([]string(nil), t.Dependencies()...)
		for i, in := range inputs {
			if newName, ok := remap(in); ok {
				inputs[i] = newName
			}
		}
		if t.Kind() == vertex.KindMetric {
			return vertex.NewMetric(t.Name(), t.MetricName(), inputs, t.VarNames(), t.Expr(), t.Source(), t.InstanceID()), nil
		}
		if t.StrategyKey() == strategy.KeyFormula {
			return vertex.NewFormulaExpr(t.Name(), inputs, t.VarNames(), t.Expr(), t.Source()), nil
		}
		return vertex.NewFormula(t.Name(), inputs, t.StrategyKey()), nil
	default:
		return nil, engerr.New(engerr.KindStrategyMismatch, "merge: cannot rewrite dependencies of unrecognized vertex type for %q", v.Name())
	}
}
