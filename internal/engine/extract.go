package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/piwi3910/arcflow/internal/model"
)

// flowEpsilon is the largest distance from an integer tolerated in a
// flow value.
const flowEpsilon = 1e-5

type rawPattern struct {
	count int
	items []model.ItemRef
}

// RoundFlow converts a sparse arc-index to value mapping into a dense
// integral flow vector.
func RoundFlow(g *Graph, flow map[int]float64) ([]int, error) {
	residual := make([]int, len(g.Arcs))
	for idx, x := range flow {
		if idx < 0 || idx >= len(g.Arcs) {
			return nil, fmt.Errorf("%w: arc index %d out of range [0, %d)", ErrInvalidFlow, idx, len(g.Arcs))
		}
		r := math.Round(x)
		if math.Abs(x-r) > flowEpsilon {
			return nil, fmt.Errorf("%w: arc %d has fractional flow %g", ErrInvalidFlow, idx, x)
		}
		if r < 0 {
			return nil, fmt.Errorf("%w: arc %d has negative flow %g", ErrInvalidFlow, idx, x)
		}
		residual[idx] = int(r)
	}
	return residual, nil
}

// Extract decomposes an integral flow on g into packing patterns for each
// bin type of inst. flow maps arc indices to flow values; missing arcs
// carry no flow.
func Extract(inst *model.Instance, g *Graph, flow map[int]float64) (*model.Solution, error) {
	residual, err := RoundFlow(g, flow)
	if err != nil {
		return nil, err
	}
	if err := g.CheckConservation(residual); err != nil {
		return nil, err
	}
	if g.NBTypes != inst.NBTypes() {
		return nil, fmt.Errorf("graph has %d bin types, instance has %d", g.NBTypes, inst.NBTypes())
	}

	refs := make(map[int]model.ItemRef, len(inst.Items))
	for _, it := range inst.Items {
		refs[it.ID] = model.ItemRef{Type: it.Type, Opt: it.Opt}
	}
	in := make([][]int, g.NV)
	for i, a := range g.Arcs {
		if a.V == g.S {
			continue
		}
		if a.U >= a.V {
			return nil, fmt.Errorf("arc %d (%d->%d) is not in topological order", i, a.U, a.V)
		}
		if a.Label != g.Loss {
			if _, ok := refs[a.Label]; !ok {
				return nil, fmt.Errorf("arc %d has unknown item label %d", i, a.Label)
			}
		}
		in[a.V] = append(in[a.V], i)
	}

	order := make([]int, g.NBTypes)
	for t := range order {
		order[t] = t
	}
	sort.Slice(order, func(i, j int) bool { return g.Ts[order[i]] < g.Ts[order[j]] })

	dem := slices.Clone(inst.Demands)
	sol := model.NewSolution(g.NBTypes)
	dp := make([]int, g.NV)
	pred := make([]int, g.NV)
	for _, t := range order {
		fb := g.FeedbackArc(t)
		if fb < 0 {
			continue
		}
		sink := g.Ts[t]
		var raw []rawPattern
		for {
			for v := range dp {
				dp[v] = 0
				pred[v] = -1
			}
			dp[g.S] = residual[fb]
			for v := 0; v < g.NV; v++ {
				if v == g.S {
					continue
				}
				for _, ai := range in[v] {
					val := min(dp[g.Arcs[ai].U], residual[ai])
					if val > dp[v] {
						dp[v] = val
						pred[v] = ai
					}
				}
			}
			f := dp[sink]
			if f == 0 {
				break
			}
			var items []model.ItemRef
			for v := sink; v != g.S; {
				ai := pred[v]
				a := g.Arcs[ai]
				residual[ai] -= f
				if a.Label != g.Loss {
					items = append(items, refs[a.Label])
				}
				v = a.U
			}
			residual[fb] -= f
			raw = append(raw, rawPattern{count: f, items: items})
		}
		if residual[fb] != 0 {
			return nil, fmt.Errorf("%w: %d units of flow into sink %d left unextracted", ErrUnbalancedFlow, residual[fb], sink)
		}
		sol.Patterns[t] = removeExcess(raw, dem)
	}
	for i, x := range residual {
		if x != 0 {
			return nil, fmt.Errorf("%w: arc %d keeps %d units of flow", ErrUnbalancedFlow, i, x)
		}
	}
	if err := checkSolution(inst, sol, dem); err != nil {
		return nil, err
	}
	return sol, nil
}

// removeExcess trims patterns so that no item type is packed beyond its
// remaining demand, splitting patterns where the trim applies to only
// part of the repetitions. dem is decremented by what the patterns pack.
// Patterns with equal composition are merged.
func removeExcess(raw []rawPattern, dem []int) []model.Pattern {
	var split []model.Pattern
	for _, pat := range raw {
		count := make(map[model.ItemRef]int)
		for _, ref := range pat.items {
			count[ref]++
		}
		keys := make([]model.ItemRef, 0, len(count))
		for ref := range count {
			keys = append(keys, ref)
		}
		slices.SortFunc(keys, compareRef)

		rep := pat.count
		for rep > 0 {
			alloc := make(map[int]int)
			var kept []model.ItemRef
			for _, ref := range keys {
				c := min(count[ref], dem[ref.Type]-alloc[ref.Type])
				count[ref] = max(c, 0)
				if c <= 0 {
					continue
				}
				alloc[ref.Type] += c
				kept = append(kept, ref)
			}
			keys = kept

			f := rep
			for typ, total := range alloc {
				f = min(f, dem[typ]/total)
			}
			p := model.Pattern{Count: f}
			for _, ref := range keys {
				for k := 0; k < count[ref]; k++ {
					p.Items = append(p.Items, ref)
				}
			}
			split = append(split, p)
			for typ, total := range alloc {
				dem[typ] -= f * total
			}
			rep -= f
		}
	}

	merged := make(map[string]int)
	var out []model.Pattern
	for _, p := range split {
		p.SortItems()
		key := p.Key()
		if i, ok := merged[key]; ok {
			out[i].Count += p.Count
			continue
		}
		merged[key] = len(out)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Pattern) int {
		return slices.CompareFunc(a.Items, b.Items, compareRef)
	})
	return out
}

func compareRef(a, b model.ItemRef) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.Opt, b.Opt)
}

// checkSolution verifies the extracted patterns against the instance.
// left holds the demand not covered by any pattern.
func checkSolution(inst *model.Instance, sol *model.Solution, left []int) error {
	for i, x := range left {
		if x != 0 {
			return fmt.Errorf("%w: item type %d is short by %d", ErrDemandNotMet, i+1, x)
		}
	}
	for t, pats := range sol.Patterns {
		bin := inst.Bins[t]
		for _, p := range pats {
			if !bin.Fits(p.Load(inst)) {
				return fmt.Errorf("%w: pattern %s does not fit bin type %d", ErrPatternOverCapacity, p.Key(), t+1)
			}
			if inst.Binary {
				for i := 1; i < len(p.Items); i++ {
					if p.Items[i] == p.Items[i-1] {
						return fmt.Errorf("%w: item type %d in bin type %d", ErrBinaryViolation, p.Items[i].Type+1, t+1)
					}
				}
			}
		}
		if !bin.Unbounded() && sol.BinsUsed(t) > bin.Quantity {
			return fmt.Errorf("%w: %d bins of type %d used, %d available", ErrQuantityExceeded, sol.BinsUsed(t), t+1, bin.Quantity)
		}
	}
	return nil
}
