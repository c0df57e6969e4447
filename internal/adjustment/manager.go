package adjustment

import (
	"sort"
	"sync"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

type key struct {
	vertex string
	period period.Period
}

// Manager stores adjustments keyed by (vertex, period) and by tag/scenario
// for filtering (spec §4.5). It never mutates a stored Adjustment.
type Manager struct {
	mu       sync.RWMutex
	byKey    map[key][]*Adjustment
	byID     map[string]*Adjustment
	seqNext  int
}

// NewManager returns an empty adjustment manager.
func NewManager() *Manager {
	return &Manager{
		byKey: make(map[key][]*Adjustment),
		byID:  make(map[string]*Adjustment),
	}
}

// Add stores adj, assigning it the next insertion sequence number for
// composition tiebreaking.
func (m *Manager) Add(adj *Adjustment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	adj.seq = m.seqNext
	m.seqNext++
	k := key{vertex: adj.VertexName, period: adj.Period}
	m.byKey[k] = append(m.byKey[k], adj)
	m.byID[adj.ID] = adj
}

// Remove deletes the adjustment with the given ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	adj, ok := m.byID[id]
	if !ok {
		return engerr.New(engerr.KindInvalidAdjustment, "no adjustment with id %q", id)
	}
	delete(m.byID, id)
	k := key{vertex: adj.VertexName, period: adj.Period}
	list := m.byKey[k]
	for i, a := range list {
		if a.ID == id {
			m.byKey[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.byKey[k]) == 0 {
		delete(m.byKey, k)
	}
	return nil
}

// Filter selects which stored adjustments List/Apply consider. All
// non-empty fields must match (composable AND semantics); a nil Filter or
// zero-value Filter matches everything.
type Filter struct {
	IncludeTags []string
	ExcludeTags []string
	Scenarios   []string
	Predicate   func(*Adjustment) bool
}

func containsAny(haystack, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

func (f *Filter) matches(adj *Adjustment) bool {
	if f == nil {
		return true
	}
	if len(f.IncludeTags) > 0 && !containsAll(adj.Tags, f.IncludeTags) {
		return false
	}
	if len(f.ExcludeTags) > 0 && containsAny(adj.Tags, f.ExcludeTags) {
		return false
	}
	if len(f.Scenarios) > 0 {
		matched := false
		for _, s := range f.Scenarios {
			if adj.Scenario == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.Predicate != nil && !f.Predicate(adj) {
		return false
	}
	return true
}

// List returns every stored adjustment matching filter, across all
// vertices/periods.
func (m *Manager) List(filter *Filter) []*Adjustment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Adjustment
	for _, list := range m.byKey {
		for _, adj := range list {
			if filter.matches(adj) {
				out = append(out, adj)
			}
		}
	}
	return sortedByPriorityThenInsertion(out)
}

func sortedByPriorityThenInsertion(adjustments []*Adjustment) []*Adjustment {
	ordered := make([]*Adjustment, len(adjustments))
	copy(ordered, adjustments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}

// Apply composes every stored adjustment for (vertexName, p) matching
// filter onto base, per spec §3.3's composition rule, and returns the
// final value plus the adjustments that actually participated (spec
// §4.5's apply(base_value, adjustments_for_key) -> (final_value,
// applied_list)). filter may be nil to apply every stored adjustment for
// the key — "an adjustment with scenario tag filtered out yields the
// unadjusted value" (spec §8) is exactly filter.Scenarios excluding it.
func (m *Manager) Apply(vertexName string, p period.Period, base strategy.Value, filter *Filter) (strategy.Value, []*Adjustment) {
	m.mu.RLock()
	stored := append([]*Adjustment(nil), m.byKey[key{vertex: vertexName, period: p}]...)
	m.mu.RUnlock()

	var relevant []*Adjustment
	for _, adj := range stored {
		if filter.matches(adj) {
			relevant = append(relevant, adj)
		}
	}
	return compose(base, relevant)
}
