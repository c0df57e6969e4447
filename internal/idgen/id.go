// Package idgen centralizes identifier generation for engine-owned records
// (adjustment IDs, metric instance IDs, template deduplication keys) so the
// rest of the engine never reaches for the uuid/ulid packages directly.
package idgen

import (
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewAdjustmentID returns a sortable, time-ordered identifier. ULIDs encode
// creation time in their first 48 bits. Composition order does not use the
// ID: adjustment.Manager breaks equal-priority ties with its own insertion
// sequence.
func NewAdjustmentID() string {
	return ulid.Make().String()
}

// NewVertexInstanceID returns an opaque identifier for ephemeral vertex
// instances the metric registry creates on the fly (not the vertex's own
// graph name, which is caller-supplied and must stay stable). Stamped by
// metric.Registry.Instantiate onto every Metric-kind vertex.Formula it
// builds, and carried through internal/bundle's round-trip.
func NewVertexInstanceID() string {
	return uuid.NewString()
}

// CanonicalKey creates a deterministic, versioned hash for deduplication,
// e.g. internal/bundle.Template.DeduplicationKey detecting that two
// template bundles describe the same metric set.
func CanonicalKey(version string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonical strings.Builder
	for _, k := range keys {
		canonical.WriteString(strings.ToLower(strings.TrimSpace(fields[k])) + "|")
	}

	hash := sha256.Sum256([]byte(canonical.String()))
	encoded := base64.RawURLEncoding.EncodeToString(hash[:])

	return version + "_" + encoded
}
