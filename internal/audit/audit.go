// Package audit attributes engine records to whoever created or last
// replaced them. The teacher repo used this to track trade/company record
// provenance by who/when alone; here every AuditInfo also names the
// Subject it belongs to (a vertex name; for an adjustment, the name of the
// vertex it targets) and the engine
// Revision it was stamped at, since — unlike a standalone trade record —
// every record this package audits lives inside a single revisioned
// graph (internal/engine's memo key already keys on revision) and
// provenance is only useful if it can be tied back to both.
package audit

import (
	"time"
)

// AuditInfo is who created a record and when, plus who last replaced it
// (set to the creator and creation time until a replacement happens), the
// record's own identity (Subject), and the graph revision the stamp
// corresponds to.
type AuditInfo struct {
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy *string
	UpdatedAt *time.Time

	// Subject is the vertex name this trail describes; an Adjustment's
	// trail carries the name of the vertex it targets.
	Subject string
	// Revision is the engine.Engine revision counter at the time of the
	// most recent stamp (0 if the record was stamped outside a graph, e.g.
	// an Adjustment; internal/graph.AddAdjustment does not re-stamp it).
	Revision uint64
}

// NewAuditInfo returns an AuditInfo with the current timestamp, creator,
// and subject, stamped at revision.
func NewAuditInfo(creator, subject string, revision uint64) *AuditInfo {
	if creator == "" {
		creator = "system@internal.local"
	}

	now := time.Now().UTC()

	return &AuditInfo{
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedBy: &creator,
		UpdatedAt: &now,
		Subject:   subject,
		Revision:  revision,
	}
}

// UpdateAuditInfo records a replacement, e.g. graph.Replace swapping one
// vertex for another under the same name, at the engine revision the
// replacement took effect.
func (a *AuditInfo) UpdateAuditInfo(updatedBy string, revision uint64) {
	if a == nil {
		return // Defensive: nothing to update
	}

	now := time.Now().UTC()

	a.UpdatedBy = &updatedBy
	a.UpdatedAt = &now
	a.Revision = revision
}
