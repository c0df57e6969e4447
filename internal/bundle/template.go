package bundle

import (
	"sort"
	"strings"

	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/idgen"
)

// PipelineStep is one entry of a template's preprocessing pipeline (spec
// §6.1). The engine core never executes these — preprocessing is an
// out-of-scope collaborator concern (spec §1) — but a template bundle must
// still round-trip whatever steps its author declared.
type PipelineStep struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ForecastSection is a template's optional forecast overlay: which periods
// extend the horizon and per-node forecast configuration (spec §6.1).
type ForecastSection struct {
	Periods     []string                  `json:"periods,omitempty"`
	NodeConfigs map[string]map[string]any `json:"node_configs,omitempty"`
}

// PreprocessingSection wraps a template's declared pipeline (spec §6.1).
type PreprocessingSection struct {
	Pipeline []PipelineStep `json:"pipeline,omitempty"`
}

// Meta is a template's descriptive header (spec §6.1).
type Meta struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Template wraps a Bundle with the optional forecast/preprocessing
// sections, a meta header, and a checksum over the whole (spec §6.1, "A
// template bundle wraps a graph spec ..."). Bundle's fields are embedded
// so they sit at the top level of the encoded document alongside
// forecast/preprocessing/meta/checksum, matching the spec's flat layout.
type Template struct {
	Bundle
	Forecast      *ForecastSection      `json:"forecast,omitempty"`
	Preprocessing *PreprocessingSection `json:"preprocessing,omitempty"`
	Meta          Meta                  `json:"meta"`
	Checksum      string                `json:"checksum"`
}

// Stamp computes and stores t's checksum over every field except Checksum
// itself (spec §6.1, "a SHA-256 checksum over the canonicalized bundle ...
// except the checksum field itself").
func (t *Template) Stamp() error {
	sum, err := t.computeChecksum()
	if err != nil {
		return err
	}
	t.Checksum = sum
	return nil
}

// Verify recomputes t's checksum and compares it against the stored value,
// returning a ChecksumMismatch error on divergence (spec §7, Serialization
// kinds).
func (t *Template) Verify() error {
	want, err := t.computeChecksum()
	if err != nil {
		return err
	}
	if t.Checksum != want {
		return engerr.New(engerr.KindChecksumMismatch,
			"template %q checksum mismatch: stored %s, computed %s", t.Meta.Name, t.Checksum, want).
			WithContext("template", t.Meta.Name)
	}
	return nil
}

func (t *Template) computeChecksum() (string, error) {
	clone := *t
	clone.Checksum = ""
	return Checksum(clone)
}

// DeduplicationKey returns a deterministic, version-scoped hash identifying
// t's content (idgen.CanonicalKey) — two templates describing the same
// metric set under the same version collapse to the same key, independent
// of Meta.CreatedAt, which the checksum (over the whole document,
// including that timestamp) does not provide on its own. Neither depends
// on node-declaration order, since Nodes is a map.
func (t *Template) DeduplicationKey() string {
	names := make([]string, 0, len(t.Nodes))
	for name := range t.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := map[string]string{
		"name":     t.Meta.Name,
		"category": t.Meta.Category,
		"nodes":    strings.Join(names, ","),
	}
	return idgen.CanonicalKey(t.Meta.Version, fields)
}
