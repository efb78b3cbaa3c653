package engine

import "sort"

// Arc is a directed arc of the arc-flow graph. Label is an item label or
// the graph's loss label.
type Arc struct {
	U     int `json:"u"`
	V     int `json:"v"`
	Label int `json:"label"`
}

// Less orders arcs lexicographically by (U, V, Label).
func (a Arc) Less(b Arc) bool {
	if a.U != b.U {
		return a.U < b.U
	}
	if a.V != b.V {
		return a.V < b.V
	}
	return a.Label < b.Label
}

func sortArcs(arcs []Arc) {
	sort.Slice(arcs, func(i, j int) bool {
		return arcs[i].Less(arcs[j])
	})
}

// arcSet collects arcs without duplicates.
type arcSet map[Arc]struct{}

func (s arcSet) add(a Arc) {
	s[a] = struct{}{}
}

// sorted returns the arcs of s in (U, V, Label) order.
func (s arcSet) sorted() []Arc {
	arcs := make([]Arc, 0, len(s))
	for a := range s {
		arcs = append(arcs, a)
	}
	sortArcs(arcs)
	return arcs
}

// relabelArcs maps arc endpoints through label, dropping duplicates and
// arcs that collapse into self-loops.
func relabelArcs(arcs []Arc, label []int) []Arc {
	set := make(arcSet, len(arcs))
	for _, a := range arcs {
		u, v := label[a.U], label[a.V]
		if u != v {
			set.add(Arc{U: u, V: v, Label: a.Label})
		}
	}
	return set.sorted()
}

// inAdjacency returns, for every vertex, the arcs that enter it.
func inAdjacency(nv int, arcs []Arc) [][]Arc {
	adj := make([][]Arc, nv)
	for _, a := range arcs {
		adj[a.V] = append(adj[a.V], a)
	}
	return adj
}
