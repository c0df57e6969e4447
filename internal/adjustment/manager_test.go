package adjustment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholding/fin-model-engine/internal/adjustment"
	"github.com/nholding/fin-model-engine/internal/engerr"
	"github.com/nholding/fin-model-engine/internal/strategy"
)

func TestAdjustment_NewRejectsUnknownKind(t *testing.T) {
	_, err := adjustment.New("Revenue", "2025", 1.0, "bogus", 0, nil, "", "", "")
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindInvalidAdjustment, ee.Kind)
}

func TestManager_ComposesMultiplicativeOntoBase(t *testing.T) {
	m := adjustment.NewManager()
	adj, err := adjustment.New("Revenue", "2025", 1.15, adjustment.KindMultiplicative, 0, nil, "", "", "analyst@example.com")
	require.NoError(t, err)
	m.Add(adj)

	got, applied := m.Apply("Revenue", "2025", strategy.Present(1100), nil)
	assert.InDelta(t, 1265.0, got.Number, 1e-9)
	assert.Len(t, applied, 1)
}

func TestManager_PriorityThenInsertionOrder(t *testing.T) {
	m := adjustment.NewManager()
	low, _ := adjustment.New("Revenue", "2025", 10, adjustment.KindAdditive, 1, nil, "", "", "")
	high, _ := adjustment.New("Revenue", "2025", 2, adjustment.KindMultiplicative, 0, nil, "", "", "")
	m.Add(low)
	m.Add(high)

	// high (priority 0) applies before low (priority 1): (100*2)+10 = 210
	got, _ := m.Apply("Revenue", "2025", strategy.Present(100), nil)
	assert.Equal(t, 210.0, got.Number)
}

func TestManager_ReplacementThenLaterAdditiveStillApplies(t *testing.T) {
	m := adjustment.NewManager()
	repl, _ := adjustment.New("Revenue", "2025", 500, adjustment.KindReplacement, 0, nil, "", "", "")
	add, _ := adjustment.New("Revenue", "2025", 50, adjustment.KindAdditive, 1, nil, "", "", "")
	m.Add(repl)
	m.Add(add)

	got, _ := m.Apply("Revenue", "2025", strategy.Present(1100), nil)
	assert.Equal(t, 550.0, got.Number)
}

func TestManager_ScenarioFilteredOutYieldsUnadjustedValue(t *testing.T) {
	m := adjustment.NewManager()
	adj, _ := adjustment.New("Revenue", "2025", 1.2, adjustment.KindMultiplicative, 0, nil, "budget", "", "")
	m.Add(adj)

	got, applied := m.Apply("Revenue", "2025", strategy.Present(1000), &adjustment.Filter{Scenarios: []string{"actual"}})
	assert.Equal(t, 1000.0, got.Number)
	assert.Empty(t, applied)
}

func TestManager_MissingBaseSkipsAdditiveButAcceptsReplacement(t *testing.T) {
	m := adjustment.NewManager()
	add, _ := adjustment.New("Revenue", "2025", 10, adjustment.KindAdditive, 0, nil, "", "", "")
	repl, _ := adjustment.New("Revenue", "2025", 500, adjustment.KindReplacement, 1, nil, "", "", "")
	m.Add(add)
	m.Add(repl)

	got, applied := m.Apply("Revenue", "2025", strategy.MissingValue, nil)
	assert.Equal(t, 500.0, got.Number)
	assert.Len(t, applied, 1, "the additive adjustment over a missing base should not participate")
}

func TestManager_RemoveUnknownID(t *testing.T) {
	m := adjustment.NewManager()
	err := m.Remove("does-not-exist")
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.KindInvalidAdjustment, ee.Kind)
}

func TestManager_ListIncludeTagsFilter(t *testing.T) {
	m := adjustment.NewManager()
	tagged, _ := adjustment.New("Revenue", "2025", 1, adjustment.KindAdditive, 0, []string{"audited"}, "", "", "")
	untagged, _ := adjustment.New("Revenue", "2025", 1, adjustment.KindAdditive, 0, nil, "", "", "")
	m.Add(tagged)
	m.Add(untagged)

	got := m.List(&adjustment.Filter{IncludeTags: []string{"audited"}})
	require.Len(t, got, 1)
	assert.Equal(t, tagged.ID, got[0].ID)
}
