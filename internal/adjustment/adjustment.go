// Package adjustment implements the AdjustmentManager (spec §3.3, §4.5):
// immutable scenario overlays that compose onto a vertex's base value.
package adjustment

import (
	"github.com/nholding/fin-model-engine/internal/audit"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/idgen"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

// Kind selects how an Adjustment's Value composes onto the running base
// value (spec §3.3).
type Kind string

const (
	KindAdditive       Kind = "additive"
	KindMultiplicative Kind = "multiplicative"
	KindReplacement    Kind = "replacement"
)

// Adjustment is an immutable overlay record (spec §3.3, invariant A2: the
// manager never mutates a record after Add). Provenance is stamped once at
// construction via audit.NewAuditInfo, with Subject set to the target
// vertex name — an adjustment has no engine revision yet at construction
// time (it isn't attached to a graph until AddAdjustment), so Revision
// starts at 0 and is left unset.
type Adjustment struct {
	ID         string
	VertexName string
	Period     period.Period
	Value      float64
	Kind       Kind
	Priority   int
	Tags       []string
	Scenario   string
	Reason     string
	Provenance *audit.AuditInfo

	seq int // insertion order, assigned by Manager.Add; breaks priority ties
}

// New constructs an Adjustment. vertexName need not name an existing
// vertex yet — late binding is permitted (spec §3.3, invariant A1);
// applying an adjustment for an absent vertex is simply never reached,
// since the engine only calls Apply for vertices it has already resolved.
func New(vertexName string, p period.Period, value float64, kind Kind, priority int, tags []string, scenario, reason, createdBy string) (*Adjustment, error) {
	switch kind {
	case KindAdditive, KindMultiplicative, KindReplacement:
	default:
		return nil, engerr.New(engerr.KindInvalidAdjustment, "unknown adjustment kind %q", kind)
	}
	return &Adjustment{
		ID:         idgen.NewAdjustmentID(),
		VertexName: vertexName,
		Period:     p,
		Value:      value,
		Kind:       kind,
		Priority:   priority,
		Tags:       append([]string(nil), tags...),
		Scenario:   scenario,
		Reason:     reason,
		Provenance: audit.NewAuditInfo(createdBy, vertexName, 0),
	}, nil
}

// compose applies adjustments (already filtered to the caller's interest)
// onto base, in ascending (priority, insertion-order) order, per spec
// §3.3's composition rule. A missing base value stays missing across
// additive/multiplicative steps — there is no defined "b + v" when b
// itself doesn't exist — but a replacement adjustment can still set one,
// since replacement discards the running value outright.
func compose(base strategy.Value, adjustments []*Adjustment) (strategy.Value, []*Adjustment) {
	ordered := sortedByPriorityThenInsertion(adjustments)

	b := base
	applied := make([]*Adjustment, 0, len(ordered))
	for _, adj := range ordered {
		switch adj.Kind {
		case KindReplacement:
			b = strategy.Present(adj.Value)
		case KindAdditive:
			if b.Missing {
				continue
			}
			b = strategy.Present(b.Number + adj.Value)
		case KindMultiplicative:
			if b.Missing {
				continue
			}
			b = strategy.Present(b.Number * adj.Value)
		}
		applied = append(applied, adj)
	}
	return b, applied
}
