package engine

import "fmt"

func (b *builder) checkNotReady() {
	if b.ready {
		panic("engine: graph is already finalized")
	}
}

// finalCompressionStep replaces every node label with the coordinate-wise
// maximum load over the paths that reach it and merges the nodes that end
// up with equal labels. Vertices are visited in id order, which is
// topological.
func (b *builder) finalCompressionStep() {
	b.checkNotReady()
	nv := b.ns.Size()
	in := inAdjacency(nv, b.arcs)
	next := NewNodeSet()
	label := make([]int, nv)
	lsize := b.labelSize()
	for v := 0; v < nv; v++ {
		lbl := make([]int, lsize)
		for _, a := range in[v] {
			if a.U >= v {
				panic(fmt.Sprintf("engine: arc %d->%d breaks topological order", a.U, a.V))
			}
			lu := next.Label(label[a.U])
			if a.Label == b.loss {
				for d := range lbl {
					lbl[d] = max(lbl[d], lu[d])
				}
				continue
			}
			w := b.items[a.Label].W
			for d := 0; d < b.ndims; d++ {
				lbl[d] = max(lbl[d], lu[d]+w[d])
			}
			if b.binary {
				lbl[b.ndims] = max(lbl[b.ndims], lu[b.ndims], a.Label+1)
			}
		}
		label[v] = next.Index(lbl)
	}
	order := next.TopologicalOrder()
	for v := range label {
		label[v] = order[label[v]]
	}
	b.arcs = relabelArcs(b.arcs, label)
	next.Sort()
	b.ns = next
}

// reduceRedundancy keeps one arc per (u, v, item type). Loss arcs form a
// class of their own.
func (b *builder) reduceRedundancy() {
	b.checkNotReady()
	type key struct{ u, v, typ int }
	seen := make(map[key]bool, len(b.arcs))
	out := b.arcs[:0]
	for _, a := range b.arcs {
		typ := -1
		if a.Label != b.loss {
			typ = b.items[a.Label].Type
		}
		k := key{a.U, a.V, typ}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	b.arcs = out
}
