package engine

import (
	"testing"

	"github.com/piwi3910/arcflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValidSolution(t *testing.T, inst *model.Instance, sol *model.Solution) {
	t.Helper()
	packed := sol.Packed(inst.M)
	for i, d := range inst.Demands {
		if inst.CTypes[i] == model.CTypeExact {
			assert.Equal(t, d, packed[i], "item type %d", i)
		} else {
			assert.GreaterOrEqual(t, packed[i], d, "item type %d", i)
		}
	}
	for bt, pats := range sol.Patterns {
		for _, p := range pats {
			assert.True(t, inst.Bins[bt].Fits(p.Load(inst)), "pattern %s exceeds bin type %d", p.Key(), bt)
			assert.Positive(t, p.Count)
		}
	}
}

func TestExtract_WorkedExample(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 5}, []int{7, 1})
	inst.CTypes[0] = model.CTypeExact
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0, 0, 0)
	addPattern(t, g, flow, 0, 1, 0, 1)
	addPattern(t, g, flow, 0, 1, 0)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	assert.Equal(t, 3, sol.TotalBins())
	assert.Equal(t, 3, sol.Objective(inst))

	a := model.ItemRef{Type: 0, Opt: -1}
	b := model.ItemRef{Type: 1, Opt: -1}
	assert.Equal(t, []model.Pattern{
		{Count: 1, Items: []model.ItemRef{a}},
		{Count: 1, Items: []model.ItemRef{a, a, a}},
		{Count: 1, Items: []model.ItemRef{a, b}},
	}, sol.Patterns[0])
}

func TestExtract_MergesRepeatedPatterns(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 4}, []int{5, 2})
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0, 1)
	addPattern(t, g, flow, 0, 1, 0, 1)
	addPattern(t, g, flow, 0, 1, 0, 0)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	assert.Equal(t, 3, sol.TotalBins())
	require.Len(t, sol.Patterns[0], 2)
	assert.Equal(t, 1, sol.Patterns[0][0].Count)
	assert.Equal(t, 2, sol.Patterns[0][1].Count)
}

func TestExtract_RemovesExcess(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 5}, []int{7, 1})
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 2, 0, 0, 0)
	addPattern(t, g, flow, 0, 1, 1)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)

	a := model.ItemRef{Type: 0, Opt: -1}
	b := model.ItemRef{Type: 1, Opt: -1}
	assert.Equal(t, []model.Pattern{
		{Count: 1, Items: []model.ItemRef{a, a}},
		{Count: 1, Items: []model.ItemRef{a, a, a}},
		{Count: 1, Items: []model.ItemRef{b}},
	}, sol.Patterns[0])
	assert.Equal(t, []int{5, 1}, sol.Packed(inst.M))
}

func TestExtract_KeepsEmptyBins(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{6, 1})
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 2, 0)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assert.Equal(t, 2, sol.TotalBins())
	require.Len(t, sol.Patterns[0], 2)
	assert.Empty(t, sol.Patterns[0][0].Items)
}

func TestExtract_MultipleBinTypes(t *testing.T) {
	inst := testInstances(t)["dominance"]
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0, 1)
	addPattern(t, g, flow, 1, 1, 1)
	addPattern(t, g, flow, 1, 2, 2)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	assert.Equal(t, 1, sol.BinsUsed(0))
	assert.Equal(t, 3, sol.BinsUsed(1))
	assert.Equal(t, 3+3*2, sol.Objective(inst))
}

func TestExtract_SmallPatternInBigBin(t *testing.T) {
	inst := testInstances(t)["dominance"]
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0)
	addPattern(t, g, flow, 0, 1, 1, 2)
	addPattern(t, g, flow, 0, 1, 1)
	addPattern(t, g, flow, 0, 1, 2)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	assert.Equal(t, 4, sol.BinsUsed(0))
	assert.Equal(t, 0, sol.BinsUsed(1))
}

func TestExtract_Binary(t *testing.T) {
	inst := testInstances(t)["binary"]
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 2, 0, 2)
	addPattern(t, g, flow, 0, 1, 1, 2)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	for _, p := range sol.Patterns[0] {
		seen := make(map[model.ItemRef]bool)
		for _, ref := range p.Items {
			assert.False(t, seen[ref], "item repeated in binary pattern")
			seen[ref] = true
		}
	}
}

func TestExtract_UncompressedGraph(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 5}, []int{7, 1})
	g := buildGraph(t, inst, WithoutCompression())

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0, 0, 0)
	addPattern(t, g, flow, 0, 1, 0, 0)
	addPattern(t, g, flow, 0, 1, 1)

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assertValidSolution(t, inst, sol)
	assert.Equal(t, 3, sol.TotalBins())
}

func TestExtract_RoundsNearIntegralFlow(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 3})
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 1, 0, 0, 0)
	for i := range flow {
		flow[i] -= 0.000001
	}

	sol, err := Extract(inst, g, flow)
	require.NoError(t, err)
	assert.Equal(t, 1, sol.TotalBins())
}

func TestExtract_Errors(t *testing.T) {
	inst := newInstance(t, []int{10}, []int{3, 5}, []int{7, 1})
	g := buildGraph(t, inst)

	tests := []struct {
		name string
		flow func() map[int]float64
		want error
	}{
		{
			name: "fractional",
			flow: func() map[int]float64 { return map[int]float64{0: 0.5} },
			want: ErrInvalidFlow,
		},
		{
			name: "negative",
			flow: func() map[int]float64 { return map[int]float64{0: -1} },
			want: ErrInvalidFlow,
		},
		{
			name: "index out of range",
			flow: func() map[int]float64 { return map[int]float64{len(g.Arcs): 1} },
			want: ErrInvalidFlow,
		},
		{
			name: "unbalanced",
			flow: func() map[int]float64 { return map[int]float64{0: 1} },
			want: ErrUnbalancedFlow,
		},
		{
			name: "demand not met",
			flow: func() map[int]float64 {
				flow := make(map[int]float64)
				addPattern(t, g, flow, 0, 1, 0, 0, 0)
				return flow
			},
			want: ErrDemandNotMet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(inst, g, tt.flow())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtract_QuantityExceeded(t *testing.T) {
	inst := model.NewInstance(1)
	inst.AddBinType([]int{10}, 1, 1)
	inst.AddItemType(2, []int{6})
	require.NoError(t, inst.Normalize())
	g := buildGraph(t, inst)

	flow := make(map[int]float64)
	addPattern(t, g, flow, 0, 2, 0)

	_, err := Extract(inst, g, flow)
	assert.ErrorIs(t, err, ErrQuantityExceeded)
}

func TestRemoveExcess_SharesDemandAcrossOptions(t *testing.T) {
	x0 := model.ItemRef{Type: 0, Opt: 0}
	x1 := model.ItemRef{Type: 0, Opt: 1}
	y := model.ItemRef{Type: 1, Opt: -1}
	dem := []int{3, 1}
	raw := []rawPattern{
		{count: 2, items: []model.ItemRef{x0, x1, y}},
	}

	got := removeExcess(raw, dem)

	assert.Equal(t, []model.Pattern{
		{Count: 1, Items: []model.ItemRef{x0}},
		{Count: 1, Items: []model.ItemRef{x0, x1, y}},
	}, got)
	assert.Equal(t, []int{0, 0}, dem)
}
