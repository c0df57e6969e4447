// Package engine implements the CalculationEngine (spec §4.6): recursive,
// memoized resolution of vertex values with revision-based invalidation,
// runtime cycle detection, and adjustment application.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
	"github.com/nholding/fin-model-engine/internal/vertex"
	"github.com/nholding/fin-model-engine/internal/xlog"
)

// memoKey mirrors spec §3.4's "(name, period, revision)" memo key, plus an
// adjusted flag: Calculate and CalculateAdjusted cache separately so an
// adjusted lookup never leaks into an unadjusted one or vice versa.
type memoKey struct {
	name     string
	p        period.Period
	revision uint64
	adjusted bool
}

// Engine holds the graph's mutable state (spec §3.4: periods, vertices,
// adjustments, revision counter, memo) and the algorithm that resolves it.
type Engine struct {
	mu sync.RWMutex

	vertices    map[string]vertex.Vertex
	periods     *period.Sequence
	adjustments *adjustment.Manager
	strategies  *strategy.Registry
	options     engineconfig.EngineOptions

	revision       uint64
	memo           map[memoKey]strategy.Value
	scenarioFilter *adjustment.Filter

	log zerolog.Logger
}

// New builds an empty Engine. strategies may be nil to use
// strategy.Default().
func New(opts engineconfig.EngineOptions, strategies *strategy.Registry) *Engine {
	if strategies == nil {
		strategies = strategy.Default()
	}
	return &Engine{
		vertices:    make(map[string]vertex.Vertex),
		periods:     period.NewSequence(),
		adjustments: adjustment.NewManager(),
		strategies:  strategies,
		options:     opts,
		memo:        make(map[memoKey]strategy.Value),
		log:         xlog.Component("engine"),
	}
}

// Periods exposes the declared period sequence (vertex.Resolver).
func (e *Engine) Periods() *period.Sequence {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.periods
}

// Value resolves name at p using the unadjusted algorithm, satisfying
// vertex.Resolver. Each call starts a fresh recursion stack, as Calculate
// does; vertices evaluated inside resolve read their inputs through a
// stackedResolver instead, which carries the caller's stack.
func (e *Engine) Value(name string, p period.Period) (strategy.Value, error) {
	return e.resolve(name, p, false, make(map[string]bool), 0)
}

// HasVertex reports whether name is registered, for metric.VertexLookup.
func (e *Engine) HasVertex(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.vertices[name]
	return ok
}

// Revision returns the current mutation counter, bumped by every AddVertex/
// Replace/RemoveVertex/SetValue/AddPeriod/adjustment mutation (spec §3.4's
// "(name, period, revision)" memo key). Exposed so callers — namely
// internal/graph's provenance stamping — can record which revision a given
// audit event happened at.
func (e *Engine) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

// Calculate resolves name at p without applying adjustments (spec §4.8).
func (e *Engine) Calculate(name string, p period.Period) (strategy.Value, error) {
	return e.resolve(name, p, false, make(map[string]bool), 0)
}

// CalculateAdjusted resolves name at p, applying adjustments at every
// recursive step (spec §8 example 2: an adjusted Revenue input feeds a
// dependent GrossProfit formula, not just the top-level result).
func (e *Engine) CalculateAdjusted(name string, p period.Period) (strategy.Value, error) {
	return e.resolve(name, p, true, make(map[string]bool), 0)
}

// CalculateAll obtains a topological order and evaluates every vertex at p
// in one pass (spec §4.6, "Topological evaluation (bulk)"), materializing
// the memo for the whole graph at that period. A per-vertex failure is
// recorded rather than aborting the remaining vertices (spec §6.2,
// "Propagation": bulk calls collect per-vertex outcomes).
func (e *Engine) CalculateAll(p period.Period, adjusted bool) (map[string]strategy.Value, map[string]error) {
	order, err := e.TopologicalOrder()
	if err != nil {
		return nil, map[string]error{"*": err}
	}
	values := make(map[string]strategy.Value, len(order))
	errs := make(map[string]error)
	for _, name := range order {
		var v strategy.Value
		var err error
		if adjusted {
			v, err = e.CalculateAdjusted(name, p)
		} else {
			v, err = e.Calculate(name, p)
		}
		if err != nil {
			errs[name] = err
			continue
		}
		values[name] = v
	}
	if len(errs) == 0 {
		errs = nil
	}
	return values, errs
}

func (e *Engine) resolve(name string, p period.Period, adjusted bool, stack map[string]bool, depth int) (strategy.Value, error) {
	if depth > e.options.MaxRecursionDepth {
		return strategy.Value{}, engerr.New(engerr.KindCyclicDependency,
			"recursion depth exceeded %d resolving %q", e.options.MaxRecursionDepth, name)
	}

	e.mu.RLock()
	rev := e.revision
	mk := memoKey{name: name, p: p, revision: rev, adjusted: adjusted}
	if v, ok := e.memo[mk]; ok {
		e.mu.RUnlock()
		return v, nil
	}
	vx, exists := e.vertices[name]
	e.mu.RUnlock()

	if !exists {
		return strategy.Value{}, engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name).WithContext("vertex", name)
	}
	if stack[name] {
		return strategy.Value{}, engerr.New(engerr.KindCyclicDependency, "cycle detected while resolving %q", name).WithContext("vertex", name)
	}

	stack[name] = true
	defer delete(stack, name)

	r := stackedResolver{e: e, adjusted: adjusted, stack: stack, depth: depth + 1}
	val, err := vx.Evaluate(r, p, vertex.EvalContext{DivisionPolicy: e.options.DivisionPolicy, Strategies: e.strategies})
	if err != nil {
		return strategy.Value{}, err
	}

	if adjusted {
		e.mu.RLock()
		filter := e.scenarioFilter
		e.mu.RUnlock()
		val, _ = e.adjustments.Apply(name, p, val, filter)
	}

	e.mu.Lock()
	if e.revision == rev {
		e.memo[mk] = val
	}
	e.mu.Unlock()

	return val, nil
}

// stackedResolver threads the in-flight recursion stack and depth counter
// through nested vertex.Resolver.Value calls, so a cycle introduced since
// the last Validate() is still caught at runtime (spec §4.6, "Cycle
// detection").
type stackedResolver struct {
	e        *Engine
	adjusted bool
	stack    map[string]bool
	depth    int
}

func (r stackedResolver) Value(name string, p period.Period) (strategy.Value, error) {
	return r.e.resolve(name, p, r.adjusted, r.stack, r.depth)
}

func (r stackedResolver) Periods() *period.Sequence { return r.e.Periods() }

// Issue is one finding from Validate() (spec §4.6, "validate() → [issue]").
type Issue struct {
	Kind    engerr.Kind
	Message string
	Path    []string // populated for CyclicDependency issues
}

// Validate checks V2 (every declared input resolves to an existing vertex)
// and V3 (acyclicity), returning every issue found rather than stopping at
// the first (spec §6.2, "validation failures ... are returned as a list").
func (e *Engine) Validate() []Issue {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var issues []Issue
	names := e.sortedNamesLocked()
	for _, name := range names {
		for _, dep := range e.vertices[name].Dependencies() {
			if _, ok := e.vertices[dep]; !ok {
				issues = append(issues, Issue{
					Kind:    engerr.KindUnknownVertex,
					Message: fmt.Sprintf("vertex %q references unknown input %q", name, dep),
				})
			}
		}
	}
	for _, cycle := range e.detectCyclesLocked() {
		issues = append(issues, Issue{
			Kind:    engerr.KindCyclicDependency,
			Message: fmt.Sprintf("cyclic dependency: %s", joinArrow(cycle)),
			Path:    cycle,
		})
	}
	return issues
}

func joinArrow(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += " → " + p
	}
	return out
}

// DetectCycles returns every cycle currently reachable in the dependency
// graph (spec §4.8, "detect_cycles() → [cycle]").
func (e *Engine) DetectCycles() [][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.detectCyclesLocked()
}

func (e *Engine) sortedNamesLocked() []string {
	names := make([]string, 0, len(e.vertices))
	for name := range e.vertices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// detectCyclesLocked runs a standard three-color DFS. Callers must hold at
// least e.mu's read lock.
func (e *Engine) detectCyclesLocked() [][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(e.vertices))
	var path []string
	var cycles [][]string

	var visit func(name string)
	visit = func(name string) {
		color[name] = gray
		path = append(path, name)
		if v, ok := e.vertices[name]; ok {
			deps := append([]string(nil), v.Dependencies()...)
			sort.Strings(deps)
			for _, dep := range deps {
				switch color[dep] {
				case white:
					visit(dep)
				case gray:
					idx := indexOf(path, dep)
					cycle := append(append([]string(nil), path[idx:]...), dep)
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
	}

	for _, name := range e.sortedNamesLocked() {
		if color[name] == white {
			visit(name)
		}
	}
	return cycles
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}

// TopologicalOrder returns vertex names in dependency order via Kahn's
// algorithm, erroring with CyclicDependency if the graph is not acyclic
// (spec §4.8).
func (e *Engine) TopologicalOrder() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := e.sortedNamesLocked()
	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		indegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range e.vertices[name].Dependencies() {
			if _, ok := e.vertices[dep]; !ok {
				continue // unresolved inputs are a Validate() concern, not a cycle
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(names))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		next := append([]string(nil), dependents[n]...)
		sort.Strings(next)
		for _, m := range next {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
		sort.Strings(queue)
	}

	if len(order) != len(names) {
		return nil, engerr.New(engerr.KindCyclicDependency, "graph contains a cycle; no topological order exists")
	}
	return order, nil
}

// GetDependencies returns the transitive closure of name's inputs (spec
// §4.8; direct dependencies alone are already available from the vertex
// itself via V4, so the derived engine-side query is the transitive one).
func (e *Engine) GetDependencies(name string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.vertices[name]; !ok {
		return nil, engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name)
	}
	seen := map[string]bool{}
	var out []string
	var walk func(string)
	walk = func(n string) {
		v, ok := e.vertices[n]
		if !ok {
			return
		}
		for _, dep := range v.Dependencies() {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(name)
	sort.Strings(out)
	return out, nil
}

// GetDependents returns the transitive closure of vertices that (directly
// or indirectly) depend on name.
func (e *Engine) GetDependents(name string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.vertices[name]; !ok {
		return nil, engerr.New(engerr.KindUnknownVertex, "no such vertex %q", name)
	}
	reverse := make(map[string][]string)
	for n, v := range e.vertices {
		for _, dep := range v.Dependencies() {
			reverse[dep] = append(reverse[dep], n)
		}
	}
	seen := map[string]bool{}
	var out []string
	var walk func(string)
	walk = func(n string) {
		for _, dependent := range reverse[n] {
			if !seen[dependent] {
				seen[dependent] = true
				out = append(out, dependent)
				walk(dependent)
			}
		}
	}
	walk(name)
	sort.Strings(out)
	return out, nil
}

// ClearCache purges memo entries for name, or the entire memo when name is
// nil (spec §4.8, "clear_cache([name])").
func (e *Engine) ClearCache(name *string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == nil {
		e.memo = make(map[memoKey]strategy.Value)
		return
	}
	for k := range e.memo {
		if k.name == *name {
			delete(e.memo, k)
		}
	}
}
