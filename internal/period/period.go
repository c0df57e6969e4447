// Package period implements the opaque, totally-ordered reporting-period
// identifiers the engine indexes every vertex value by (spec §3.1).
//
// The teacher repo (internal/period) modeled periods as rich calendar
// objects — Gregorian/fiscal calendars, parent/quarter/month hierarchies,
// start/end dates. This engine's Period is deliberately thinner: spec §3.1
// is explicit that "the engine does not interpret calendar semantics — it
// only compares for equality and order." The calendar-shaped ID
// conventions the teacher established when generating periods ("2026",
// "2026-Q1", "2026-JAN") survive here only as the naming patterns the
// canonical-name registry (internal/canon) recognizes when classifying
// vertex names, not as structure this package understands.
package period

import "fmt"

// Period is a canonical-form period identifier, e.g. "2024", "2024-Q3".
type Period string

// Sequence holds the graph's period list: sorted by the order periods were
// added (their declared total order), de-duplicated, with O(1) membership
// and O(1) relative-order comparison.
//
// Example:
//
//	var seq Sequence
//	seq.Add("2024")
//	seq.Add("2025")
//	seq.Before("2024", "2025") // true
type Sequence struct {
	order []Period
	index map[Period]int
}

// NewSequence builds a Sequence from an already-ordered, possibly
// duplicate-containing list of periods.
func NewSequence(periods ...Period) *Sequence {
	s := &Sequence{index: make(map[Period]int)}
	for _, p := range periods {
		s.Add(p)
	}
	return s
}

// Add appends p to the sequence if it is not already present. Re-adding an
// existing period is a no-op: period order is established once, by first
// insertion, and never reordered.
func (s *Sequence) Add(p Period) {
	if s.index == nil {
		s.index = make(map[Period]int)
	}
	if _, ok := s.index[p]; ok {
		return
	}
	s.index[p] = len(s.order)
	s.order = append(s.order, p)
}

// Contains reports whether p has been added to the sequence.
func (s *Sequence) Contains(p Period) bool {
	_, ok := s.index[p]
	return ok
}

// Ordinal returns p's position in insertion order and true, or (0, false)
// if p has never been added.
func (s *Sequence) Ordinal(p Period) (int, bool) {
	i, ok := s.index[p]
	return i, ok
}

// Before reports whether a precedes b in the sequence's declared order.
// Periods absent from the sequence never precede anything.
func (s *Sequence) Before(a, b Period) bool {
	ai, aok := s.index[a]
	bi, bok := s.index[b]
	if !aok || !bok {
		return false
	}
	return ai < bi
}

// All returns the periods in declared order. The returned slice must not be
// mutated by callers.
func (s *Sequence) All() []Period {
	return s.order
}

// Len reports how many distinct periods have been added.
func (s *Sequence) Len() int { return len(s.order) }

// Slice returns the periods in [start, end] inclusive, per declared order.
// An error is returned if either endpoint was never added to the sequence.
func (s *Sequence) Slice(start, end Period) ([]Period, error) {
	si, ok := s.index[start]
	if !ok {
		return nil, fmt.Errorf("period %q not in sequence", start)
	}
	ei, ok := s.index[end]
	if !ok {
		return nil, fmt.Errorf("period %q not in sequence", end)
	}
	if si > ei {
		si, ei = ei, si
	}
	out := make([]Period, ei-si+1)
	copy(out, s.order[si:ei+1])
	return out, nil
}
