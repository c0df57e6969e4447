// Package bundle implements the graph serialization contract (spec §6.1):
// a structured document of periods/nodes/adjustments, plus a template
// bundle wrapping that with forecast/preprocessing/meta sections and a
// SHA-256 checksum. No ecosystem serialization library appeared anywhere
// in the retrieval pack (the teacher has no persistence format of its
// own), so this is built on encoding/json — see DESIGN.md for that
// stdlib justification.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/forecast"
	"github.com/nholding/fin-model-engine/internal/formula"
	"github.com/nholding/fin-model-engine/internal/graph"
	"github.com/nholding/fin-model-engine/internal/idgen"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

// Node type discriminators (spec §6.1, node-spec union).
const (
	NodeTypeData       = "data"
	NodeTypeFormula    = "formula"
	NodeTypeCalculation = "calculation"
	NodeTypeStatistic  = "statistic"
	NodeTypeForecast   = "forecast"
)

// typeTag is decoded first to dispatch the rest of a node's fields.
type typeTag struct {
	Type string `json:"type"`
}

// DataNode is the {type:"data", ...} node-spec variant.
type DataNode struct {
	Type   string             `json:"type"`
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

// FormulaNode is the {type:"formula"|"calculation", ...} node-spec variant.
// Formula/FormulaVariableNames are set only for parsed-expression vertices;
// CalculationType is set only for built-in-strategy vertices. MetricName is
// set only when the vertex originated from the metric catalog.
type FormulaNode struct {
	Type                 string   `json:"type"`
	Name                 string   `json:"name"`
	Inputs               []string `json:"inputs"`
	Formula              string   `json:"formula,omitempty"`
	FormulaVariableNames []string `json:"formula_variable_names,omitempty"`
	CalculationType      string   `json:"calculation_type,omitempty"`
	MetricName           string   `json:"metric_name,omitempty"`
	InstanceID           string   `json:"instance_id,omitempty"`
}

// StatisticNode is the {type:"statistic", ...} node-spec variant.
type StatisticNode struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Input   string   `json:"input"`
	Periods []string `json:"periods"`
	StatKey string   `json:"stat_key"`
}

// ForecastNode is the {type:"forecast", ...} node-spec variant.
type ForecastNode struct {
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Base           string         `json:"base"`
	BasePeriod     string         `json:"base_period"`
	Horizon        []string       `json:"horizon"`
	StrategyKey    string         `json:"strategy_key"`
	StrategyParams map[string]any `json:"strategy_params,omitempty"`
}

// AdjustmentRecord is one entry of the bundle's adjustments list (spec
// §6.1, "Adjustment record").
type AdjustmentRecord struct {
	NodeName string   `json:"node_name"`
	Period   string   `json:"period"`
	Value    float64  `json:"value"`
	Type     string   `json:"type"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
	Scenario string   `json:"scenario,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Bundle is a graph's wire representation (spec §6.1).
type Bundle struct {
	Periods     []string                   `json:"periods"`
	Nodes       map[string]json.RawMessage `json:"nodes"`
	Adjustments []AdjustmentRecord         `json:"adjustments"`
}

// FromGraph serializes g's current state into a Bundle. Custom-registered
// statistic/forecast strategy functions have no portable representation
// (spec §9, "Custom callables in forecasts/statistics"): a vertex bound to
// one still serializes fine (only its string key is stored), but resolving
// that key back into a working strategy on load is the caller's
// responsibility — the same contract as calculation_type already has for
// built-in CalculationStrategy keys.
func FromGraph(g *graph.Graph) (*Bundle, error) {
	b := &Bundle{
		Nodes: make(map[string]json.RawMessage),
	}
	for _, p := range g.Periods().All() {
		b.Periods = append(b.Periods, string(p))
	}

	for _, name := range g.ListNodes(nil) {
		v, _ := g.Vertex(name)
		raw, err := marshalNode(v)
		if err != nil {
			return nil, err
		}
		b.Nodes[name] = raw
	}

	for _, adj := range g.ListAdjustments(nil) {
		b.Adjustments = append(b.Adjustments, AdjustmentRecord{
			NodeName: adj.VertexName,
			Period:   string(adj.Period),
			Value:    adj.Value,
			Type:     string(adj.Kind),
			Priority: adj.Priority,
			Tags:     adj.Tags,
			Scenario: adj.Scenario,
			Reason:   adj.Reason,
		})
	}

	return b, nil
}

func marshalNode(v vertex.Vertex) (json.RawMessage, error) {
	switch t := v.(type) {
	case *vertex.Data:
		values := make(map[string]float64, len(t.Values))
		for p, n := range t.Values {
			values[string(p)] = n
		}
		return json.Marshal(DataNode{Type: NodeTypeData, Name: t.Name(), Values: values})
	case *vertex.Statistic:
		periods := make([]string, len(t.Window()))
		for i, p := range t.Window() {
			periods[i] = string(p)
		}
		return json.Marshal(StatisticNode{Type: NodeTypeStatistic, Name: t.Name(), Input: t.Input(), Periods: periods, StatKey: t.StatKey()})
	case *vertex.Forecast:
		horizon := make([]string, len(t.Horizon()))
		for i, p := range t.Horizon() {
			horizon[i] = string(p)
		}
		return json.Marshal(ForecastNode{
			Type: NodeTypeForecast, Name: t.Name(), Base: t.Base(), BasePeriod: string(t.BasePeriod()),
			Horizon: horizon, StrategyKey: t.StrategyKey(), StrategyParams: t.Params(),
		})
	case *vertex.Formula:
		node := FormulaNode{Type: NodeTypeFormula, Name: t.Name(), Inputs: t.Dependencies()}
		if t.Kind() == vertex.KindMetric {
			node.MetricName = t.MetricName()
			node.InstanceID = t.InstanceID()
		}
		if t.StrategyKey() == "formula" {
			node.Formula = t.Source()
			node.FormulaVariableNames = t.VarNames()
		} else {
			node.Type = NodeTypeCalculation
			node.CalculationType = t.StrategyKey()
		}
		return json.Marshal(node)
	default:
		return nil, engerr.New(engerr.KindSchemaError, "cannot serialize vertex %q: unrecognized type %T", v.Name(), v)
	}
}

// ToGraph rebuilds a Graph from b. g must already exist (via graph.New)
// with whatever registries the caller wants bound; ToGraph only populates
// its vertex/period/adjustment state. rnd seeds any reconstructed Forecast
// vertex bound to the "statistical" strategy; nil is fine for bundles that
// don't use it.
func ToGraph(b *Bundle, g *graph.Graph, rnd forecast.RandSource) error {
	for _, p := range b.Periods {
		if err := g.AddPeriod(period.Period(p)); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(b.Nodes))
	for name := range b.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, err := unmarshalNode(name, b.Nodes[name], rnd)
		if err != nil {
			return err
		}
		if err := g.AddVertex(v); err != nil {
			return err
		}
	}

	for _, rec := range b.Adjustments {
		adj, err := adjustment.New(rec.NodeName, period.Period(rec.Period), rec.Value, adjustment.Kind(rec.Type), rec.Priority, rec.Tags, rec.Scenario, rec.Reason, "bundle")
		if err != nil {
			return err
		}
		if err := g.AddAdjustment(adj); err != nil {
			return err
		}
	}

	return nil
}

func unmarshalNode(name string, raw json.RawMessage, rnd forecast.RandSource) (vertex.Vertex, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: malformed node spec", name)
	}

	switch tag.Type {
	case NodeTypeData:
		var n DataNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: malformed data node", name)
		}
		values := make(map[period.Period]float64, len(n.Values))
		for p, v := range n.Values {
			values[period.Period(p)] = v
		}
		return vertex.NewData(n.Name, values), nil

	case NodeTypeFormula, NodeTypeCalculation:
		var n FormulaNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: malformed formula node", name)
		}
		if n.Formula != "" {
			expr, err := formula.Parse(n.Formula)
			if err != nil {
				return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: unparseable formula", name)
			}
			if n.MetricName != "" {
				instanceID := n.InstanceID
				if instanceID == "" {
					instanceID = idgen.NewVertexInstanceID()
				}
				return vertex.NewMetric(n.Name, n.MetricName, n.Inputs, n.FormulaVariableNames, expr, n.Formula, instanceID), nil
			}
			return vertex.NewFormulaExpr(n.Name, n.Inputs, n.FormulaVariableNames, expr, n.Formula), nil
		}
		if n.CalculationType == "" {
			return nil, engerr.New(engerr.KindSchemaError, "node %q: neither formula nor calculation_type set", name)
		}
		return vertex.NewFormula(n.Name, n.Inputs, n.CalculationType), nil

	case NodeTypeStatistic:
		var n StatisticNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: malformed statistic node", name)
		}
		periods := make([]period.Period, len(n.Periods))
		for i, p := range n.Periods {
			periods[i] = period.Period(p)
		}
		return vertex.NewStatistic(n.Name, n.Input, periods, n.StatKey, nil), nil

	case NodeTypeForecast:
		var n ForecastNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, engerr.Wrap(engerr.KindSchemaError, err, "node %q: malformed forecast node", name)
		}
		horizon := make([]period.Period, len(n.Horizon))
		for i, p := range n.Horizon {
			horizon[i] = period.Period(p)
		}
		params := normalizeParams(n.StrategyParams)
		return vertex.NewForecast(n.Name, n.Base, period.Period(n.BasePeriod), horizon, n.StrategyKey, params, rnd, nil), nil

	default:
		return nil, engerr.New(engerr.KindSchemaError, "node %q: unknown node type %q", name, tag.Type)
	}
}

// normalizeParams repairs the shape loss JSON unmarshaling into
// map[string]any causes: a "rates" array decodes as []interface{} of
// float64, not []float64, which the forecast builtins type-assert against
// directly (internal/forecast/builtins.go). Everything else passes through
// unchanged.
func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if raw, ok := v.([]interface{}); ok {
			rates := make([]float64, len(raw))
			allFloat := true
			for i, elem := range raw {
				f, ok := elem.(float64)
				if !ok {
					allFloat = false
					break
				}
				rates[i] = f
			}
			if allFloat {
				out[k] = rates
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Checksum computes the SHA-256 hex digest of v's canonical (whitespace-
// normalized) JSON encoding — encoding/json's default Marshal already
// produces no extraneous whitespace and sorts map keys, which satisfies
// spec §6.1's "canonicalized bundle" requirement without a bespoke
// canonicalizer.
func Checksum(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("bundle: canonicalizing for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
