package engine

import (
	"slices"
	"sort"
)

// dominates reports whether bin type t2 is bigger than t1: at least as
// large in every dimension, with equal capacities ordered by index.
func dominates(bins [][]int, t2, t1 int) bool {
	if t1 == t2 {
		return false
	}
	equal := true
	for d := range bins[t1] {
		if bins[t2][d] < bins[t1][d] {
			return false
		}
		if bins[t2][d] != bins[t1][d] {
			equal = false
		}
	}
	return !equal || t2 > t1
}

// biggerThan returns, for every bin type, the bin types that dominate it.
func biggerThan(bins [][]int) [][]int {
	bt := make([][]int, len(bins))
	for t1 := range bins {
		for t2 := range bins {
			if dominates(bins, t2, t1) {
				bt[t1] = append(bt[t1], t2)
			}
		}
	}
	return bt
}

// sinkOrder returns the rank of each bin type when sorted ascending by
// capacity vector, then by index. A dominating bin type always ranks
// after the bin types it dominates.
func sinkOrder(bins [][]int) []int {
	idx := make([]int, len(bins))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return slices.Compare(bins[idx[i]], bins[idx[j]]) < 0
	})
	rank := make([]int, len(bins))
	for r, t := range idx {
		rank[t] = r
	}
	return rank
}

func (b *builder) capacities() [][]int {
	caps := make([][]int, len(b.bins))
	for t, bin := range b.bins {
		caps[t] = bin.W
	}
	return caps
}

// finalize adds the sinks, the loss arcs that reach them and the
// feedback arcs from every sink back to the source.
func (b *builder) finalize() {
	b.checkNotReady()
	nv := b.ns.Size()
	caps := b.capacities()
	bt := biggerThan(caps)
	rank := sinkOrder(caps)
	b.ts = make([]int, len(b.bins))
	for t := range b.bins {
		b.ts[t] = nv + rank[t]
	}

	single := len(b.bins) == 1
	for u := 1; u < nv; u++ {
		lbl := b.ns.Label(u)[:b.ndims]
		var fits []int
		for t, bin := range b.bins {
			if single || bin.Fits(lbl) {
				fits = append(fits, t)
			}
		}
		for _, t := range fits {
			minimal := true
			for _, t2 := range fits {
				if slices.Contains(bt[t2], t) {
					minimal = false
					break
				}
			}
			if minimal {
				b.arcs = append(b.arcs, Arc{U: u, V: b.ts[t], Label: b.loss})
			}
		}
	}
	for t1 := range b.bins {
		for _, t2 := range bt[t1] {
			direct := true
			for _, t3 := range bt[t1] {
				if slices.Contains(bt[t3], t2) {
					direct = false
					break
				}
			}
			if direct {
				b.arcs = append(b.arcs, Arc{U: b.ts[t1], V: b.ts[t2], Label: b.loss})
			}
		}
	}
	for t := range b.bins {
		b.arcs = append(b.arcs, Arc{U: b.ts[t], V: 0, Label: b.loss})
	}
	sortArcs(b.arcs)
	b.reduceRedundancy()
	b.ready = true
}
