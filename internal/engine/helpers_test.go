package engine

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/piwi3910/arcflow/internal/model"
	"github.com/stretchr/testify/require"
)

// newInstance returns a normalized single-bin instance. Each item is given
// as {w..., demand}.
func newInstance(t *testing.T, capacity []int, items ...[]int) *model.Instance {
	t.Helper()
	inst := model.NewInstance(len(capacity))
	inst.AddBinType(capacity, 1, -1)
	for _, it := range items {
		inst.AddItemType(it[len(it)-1], it[:len(it)-1])
	}
	require.NoError(t, inst.Normalize())
	return inst
}

func buildGraph(t *testing.T, inst *model.Instance, opts ...Option) *Graph {
	t.Helper()
	g, err := Build(inst, opts...)
	require.NoError(t, err)
	return g
}

func outAdjacency(g *Graph) [][]int {
	out := make([][]int, g.NV)
	for i, a := range g.Arcs {
		if a.V != g.S {
			out[a.U] = append(out[a.U], i)
		}
	}
	return out
}

// addPattern finds a source to sink path for bin type bt whose item
// labels are exactly ids and adds count units of flow along it, closing
// the cycle through the feedback arc.
func addPattern(t *testing.T, g *Graph, flow map[int]float64, bt, count int, ids ...int) {
	t.Helper()
	need := make(map[int]int)
	for _, id := range ids {
		need[id]++
	}
	remaining := len(ids)
	out := outAdjacency(g)
	var path []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		if u == g.Ts[bt] && remaining == 0 {
			return true
		}
		for _, ai := range out[u] {
			a := g.Arcs[ai]
			item := a.Label != g.Loss
			if item {
				if need[a.Label] == 0 {
					continue
				}
				need[a.Label]--
				remaining--
			}
			path = append(path, ai)
			if dfs(a.V) {
				return true
			}
			path = path[:len(path)-1]
			if item {
				need[a.Label]++
				remaining++
			}
		}
		return false
	}
	require.True(t, dfs(g.S), "no path for pattern %v in bin type %d", ids, bt)
	for _, ai := range path {
		flow[ai] += float64(count)
	}
	fb := g.FeedbackArc(bt)
	require.GreaterOrEqual(t, fb, 0)
	flow[fb] += float64(count)
}

// pathPatterns enumerates every source to sink path of g and returns the
// sorted item-id compositions reaching each sink, keyed by bin type.
func pathPatterns(g *Graph) map[int]map[string]bool {
	out := outAdjacency(g)
	sinkType := make(map[int]int)
	for bt, v := range g.Ts {
		sinkType[v] = bt
	}
	res := make(map[int]map[string]bool)
	var labels []int
	var dfs func(u int)
	dfs = func(u int) {
		if bt, ok := sinkType[u]; ok {
			ids := append([]int(nil), labels...)
			sort.Ints(ids)
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.Itoa(id)
			}
			if res[bt] == nil {
				res[bt] = make(map[string]bool)
			}
			res[bt][strings.Join(parts, ",")] = true
		}
		for _, ai := range out[u] {
			a := g.Arcs[ai]
			if a.Label != g.Loss {
				labels = append(labels, a.Label)
			}
			dfs(a.V)
			if a.Label != g.Loss {
				labels = labels[:len(labels)-1]
			}
		}
	}
	dfs(g.S)
	return res
}

// fitsPattern reports whether the item ids in key fit capacity. In binary
// mode no item may appear twice.
func fitsPattern(inst *model.Instance, key string, capacity []int) bool {
	if key == "" {
		return true
	}
	load := make([]int, inst.NDims)
	used := make(map[int]int)
	for _, s := range strings.Split(key, ",") {
		id, _ := strconv.Atoi(s)
		it, ok := inst.ItemByID(id)
		if !ok {
			return false
		}
		used[id]++
		if inst.Binary && used[id] > 1 {
			return false
		}
		for d := range load {
			load[d] += it.W[d]
		}
	}
	for d := range load {
		if load[d] > capacity[d] {
			return false
		}
	}
	return true
}
