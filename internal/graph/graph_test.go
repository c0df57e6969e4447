package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/engineconfig"
	"github.com/nholding/fin-model-engine/internal/graph"
	"github.com/nholding/fin-model-engine/internal/metric"
	"github.com/nholding/fin-model-engine/internal/period"
	"github.com/nholding/fin-model-engine/internal/strategy"
	"github.com/nholding/fin-model-engine/internal/vertex"
)

func vertexForReplace(t *testing.T) *vertex.Data {
	t.Helper()
	return vertex.NewData("Revenue", map[period.Period]float64{"2024": 1200, "2025": 1300})
}

func newGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return graph.New(engineconfig.Defaults(), nil, nil, nil, nil)
}

func grossProfitGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := newGraph(t)
	require.NoError(t, g.AddDataItem("Revenue", map[period.Period]float64{"2024": 1000, "2025": 1100}))
	require.NoError(t, g.AddDataItem("COGS", map[period.Period]float64{"2024": 400, "2025": 440}))
	require.NoError(t, g.AddCalculation("GrossProfit", []string{"Revenue", "COGS"}, strategy.KeySubtraction, nil, nil, ""))
	require.NoError(t, g.AddPeriod("2024"))
	require.NoError(t, g.AddPeriod("2025"))
	return g
}

func TestGraph_GrossProfitExample(t *testing.T) {
	g := grossProfitGraph(t)
	got, err := g.Calculate("GrossProfit", "2025")
	require.NoError(t, err)
	assert.Equal(t, 660.0, got.Number)
}

func TestGraph_AddMetricBindsAgainstExistingVertices(t *testing.T) {
	metrics := metric.NewRegistry()
	require.NoError(t, metrics.Register(metric.Definition{
		Key:      "gross_margin",
		Name:     "Gross Margin",
		Inputs:   []string{"GrossProfit", "Revenue"},
		VarNames: []string{"a", "b"},
		Formula:  "a / b",
	}))
	g2 := graph.New(engineconfig.Defaults(), nil, metrics, nil, nil)
	require.NoError(t, g2.AddDataItem("Revenue", map[period.Period]float64{"2025": 1100}))
	require.NoError(t, g2.AddDataItem("COGS", map[period.Period]float64{"2025": 440}))
	require.NoError(t, g2.AddCalculation("GrossProfit", []string{"Revenue", "COGS"}, strategy.KeySubtraction, nil, nil, ""))
	require.NoError(t, g2.AddPeriod("2025"))

	require.NoError(t, g2.AddMetric("gross_margin", "GrossMargin"))
	got, err := g2.Calculate("GrossMargin", "2025")
	require.NoError(t, err)
	assert.InDelta(t, 660.0/1100.0, got.Number, 1e-9)
}

func TestGraph_FreezeRejectsMutation(t *testing.T) {
	g := grossProfitGraph(t)
	g.Freeze()
	assert.True(t, g.Frozen())

	err := g.AddDataItem("Other", nil)
	assert.ErrorIs(t, err, graph.ErrFrozen)

	_, err = g.Calculate("GrossProfit", "2025")
	assert.NoError(t, err)
}

func TestGraph_MergeRejectOnNameCollision(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Revenue", map[period.Period]float64{"2025": 1}))

	err := a.Merge(b, graph.MergeReject)
	require.Error(t, err)
}

func TestGraph_MergeKeepSelfPreservesOriginal(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Revenue", map[period.Period]float64{"2025": 999}))
	require.NoError(t, b.AddPeriod("2025"))

	require.NoError(t, a.Merge(b, graph.MergeKeepSelf))
	got, err := a.Calculate("Revenue", "2025")
	require.NoError(t, err)
	assert.Equal(t, 1100.0, got.Number)
}

func TestGraph_MergeReplaceOverwritesOriginal(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Revenue", map[period.Period]float64{"2025": 999}))
	require.NoError(t, b.AddPeriod("2025"))

	require.NoError(t, a.Merge(b, graph.MergeReplace))
	got, err := a.Calculate("Revenue", "2025")
	require.NoError(t, err)
	assert.Equal(t, 999.0, got.Number)
}

func TestGraph_MergeRenameOtherAddsUnderNewName(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Revenue", map[period.Period]float64{"2025": 999}))
	require.NoError(t, b.AddPeriod("2025"))

	require.NoError(t, a.Merge(b, graph.MergeRenameOther))

	got, err := a.Calculate("Revenue", "2025")
	require.NoError(t, err)
	assert.Equal(t, 1100.0, got.Number, "original Revenue untouched")

	got, err = a.Calculate("Revenue_other", "2025")
	require.NoError(t, err)
	assert.Equal(t, 999.0, got.Number, "incoming Revenue kept under a renamed copy")
}

func TestGraph_MergeRenameOtherRewritesCrossReferencesWithinOther(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Revenue", map[period.Period]float64{"2025": 999}))
	require.NoError(t, b.AddCalculation("RevenueDoubled", []string{"Revenue", "Revenue"}, strategy.KeyAddition, nil, nil, ""))
	require.NoError(t, b.AddPeriod("2025"))

	require.NoError(t, a.Merge(b, graph.MergeRenameOther))

	deps, err := a.GetDependencies("RevenueDoubled")
	require.NoError(t, err)
	assert.NotContains(t, deps, "Revenue", "RevenueDoubled must not still reference the target's own Revenue")
	assert.Contains(t, deps, "Revenue_other")

	got, err := a.Calculate("RevenueDoubled", "2025")
	require.NoError(t, err)
	assert.Equal(t, 1998.0, got.Number, "RevenueDoubled must resolve against other's renamed Revenue, not the target's")
}

func TestGraph_MergeUnionsNonCollidingVertices(t *testing.T) {
	a := grossProfitGraph(t)
	b := newGraph(t)
	require.NoError(t, b.AddDataItem("Tax", map[period.Period]float64{"2025": 50}))
	require.NoError(t, b.AddPeriod("2025"))

	require.NoError(t, a.Merge(b, graph.MergeReject))
	got, err := a.Calculate("Tax", "2025")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Number)
}

func TestGraph_ValidateReportsCycle(t *testing.T) {
	g := newGraph(t)
	require.NoError(t, g.AddCalculation("A", []string{"B"}, strategy.KeyAddition, nil, nil, ""))
	require.NoError(t, g.AddCalculation("B", []string{"A"}, strategy.KeyAddition, nil, nil, ""))

	issues := g.Validate()
	assert.NotEmpty(t, issues)
}

func TestGraph_ListNodesFilter(t *testing.T) {
	g := grossProfitGraph(t)
	names := g.ListNodes(nil)
	assert.ElementsMatch(t, []string{"Revenue", "COGS", "GrossProfit"}, names)

	dataOnly := g.ListNodes(func(v vertex.Vertex) bool { return v.Kind() == vertex.KindData })
	assert.ElementsMatch(t, []string{"Revenue", "COGS"}, dataOnly)
}

func TestGraph_ProvenanceTracksCreationAndReplacement(t *testing.T) {
	g := grossProfitGraph(t)

	prov, ok := g.Provenance("Revenue")
	require.True(t, ok)
	assert.Equal(t, "Revenue", prov.Subject)
	createdRevision := prov.Revision

	require.NoError(t, g.Replace("Revenue", vertexForReplace(t)))

	prov, ok = g.Provenance("Revenue")
	require.True(t, ok)
	require.NotNil(t, prov.UpdatedBy)
	assert.Equal(t, "graph.Replace", *prov.UpdatedBy)
	assert.Greater(t, prov.Revision, createdRevision)
}
