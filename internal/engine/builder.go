package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"slices"

	"github.com/piwi3910/arcflow/internal/model"
)

// builder holds the working state of one graph construction. It is
// discarded once the graph is finalized.
type builder struct {
	items   []model.Item // build order, demand > 0 only
	nonzero [][]int
	bins    []model.BinType
	ndims   int
	nsizes  int
	binary  bool
	loss    int // internal loss label, equal to nsizes

	hashBits []int
	memo     map[string]memoEntry
	ns       *NodeSet
	arcSet   arcSet
	arcs     []Arc

	// scratch for lift
	bound []int
	rep   []int
	seen  []bool
	queue []int

	// sinks and Ts are set by finalize.
	ts    []int
	ready bool
}

type memoEntry struct {
	state []int
	id    int
}

func newBuilder(inst *model.Instance) *builder {
	b := &builder{
		bins:   inst.Bins,
		ndims:  inst.NDims,
		binary: inst.Binary,
		ns:     NewNodeSet(),
	}
	for _, it := range inst.Items {
		if it.Demand <= 0 {
			continue
		}
		var nz []int
		for d, w := range it.W {
			if w != 0 {
				nz = append(nz, d)
			}
		}
		b.items = append(b.items, it)
		b.nonzero = append(b.nonzero, nz)
	}
	b.nsizes = len(b.items)
	b.loss = b.nsizes
	b.initHashBits(inst.MaxW())
	return b
}

// stateSize is the length of a DP state: used capacity, item position
// and, outside binary mode, the repetition count of the current item.
func (b *builder) stateSize() int {
	if b.binary {
		return b.ndims + 1
	}
	return b.ndims + 2
}

// labelSize is the length of a node label: the weight coordinates plus
// an item position in binary mode.
func (b *builder) labelSize() int {
	if b.binary {
		return b.ndims + 1
	}
	return b.ndims
}

func (b *builder) initHashBits(maxW []int) {
	maxDemand := 0
	for _, it := range b.items {
		maxDemand = max(maxDemand, it.Demand)
	}
	b.hashBits = make([]int, b.stateSize())
	for d := 0; d < b.ndims; d++ {
		b.hashBits[d] = bits.Len(uint(maxW[d]))
	}
	b.hashBits[b.ndims] = bits.Len(uint(b.nsizes + 1))
	if !b.binary {
		b.hashBits[b.ndims+1] = bits.Len(uint(maxDemand))
	}
}

// hash packs the state into 64-bit words, hashBits[i] bits per
// coordinate, least significant bit first.
func (b *builder) hash(su []int) string {
	words := make([]uint64, 0, 2)
	var cur uint64
	var used uint
	for i, x := range su {
		nb := uint(b.hashBits[i])
		v := uint64(x)
		if x < 0 || (nb < 64 && v>>nb != 0) {
			panic(fmt.Sprintf("engine: state coordinate %d = %d exceeds %d hash bits", i, x, nb))
		}
		if nb == 0 {
			continue
		}
		cur |= v << used
		if used+nb >= 64 {
			words = append(words, cur)
			spill := 64 - used
			cur = 0
			if nb > spill {
				cur = v >> spill
			}
			used = used + nb - 64
		} else {
			used += nb
		}
	}
	if used > 0 {
		words = append(words, cur)
	}
	buf := make([]byte, 0, len(words)*8)
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return string(buf)
}

// validBins returns the bin types whose capacity fits u.
func (b *builder) validBins(u []int) []int {
	var valid []int
	for t, bin := range b.bins {
		if bin.Fits(u) {
			valid = append(valid, t)
		}
	}
	return valid
}

// full reports whether u uses every dimension up to the largest capacity
// among the valid bin types.
func (b *builder) full(u []int, valid []int) bool {
	for d := 0; d < b.ndims; d++ {
		m := 0
		for _, t := range valid {
			m = max(m, b.bins[t].W[d])
		}
		if u[d] != m {
			return false
		}
	}
	return true
}

func (b *builder) terminalLabel(valid []int) []int {
	lbl := make([]int, b.labelSize())
	for d := 0; d < b.ndims; d++ {
		lbl[d] = math.MaxInt
		for _, t := range valid {
			lbl[d] = min(lbl[d], b.bins[t].W[d])
		}
	}
	if b.binary {
		lbl[b.ndims] = b.nsizes + 1
	}
	return lbl
}

// run explores the state space from the empty state and leaves the DP
// graph in b.ns and b.arcs, with node ids in topological order and the
// source at id 0.
func (b *builder) run() int {
	b.memo = make(map[string]memoEntry)
	b.arcSet = make(arcSet)
	b.ns.Clear()
	root := b.solve(make([]int, b.stateSize()))
	if root < 0 {
		panic("engine: empty state fits no bin type")
	}
	states := len(b.memo)
	b.memo = nil
	b.arcs = b.arcSet.sorted()
	b.arcSet = nil
	order := b.ns.TopologicalOrder()
	if order[root] != 0 {
		panic(fmt.Sprintf("engine: source node sorts to %d, want 0", order[root]))
	}
	b.arcs = relabelArcs(b.arcs, order)
	b.ns.Sort()
	return states
}

// solve returns the node of state su, or -1 when su fits no bin type.
// solve takes ownership of su: it is lifted in place and kept in the memo.
func (b *builder) solve(su []int) int {
	valid := b.validBins(su[:b.ndims])
	if len(valid) == 0 {
		return -1
	}
	it, ic := su[b.ndims], 0
	if !b.binary {
		ic = su[b.ndims+1]
	}
	if it < b.nsizes {
		b.lift(su, valid, it, ic)
	}
	key := b.hash(su)
	if e, ok := b.memo[key]; ok {
		if !slices.Equal(e.state, su) {
			panic(fmt.Sprintf("engine: hash collision between states %v and %v", e.state, su))
		}
		return e.id
	}
	var iu int
	if it == b.nsizes || b.full(su, valid) {
		iu = b.ns.Index(b.terminalLabel(valid))
	} else {
		iu = b.expand(su, it, ic)
	}
	b.memo[key] = memoEntry{state: su, id: iu}
	return iu
}

// expand resolves the skip transition before the consume transition; the
// merged label depends on the skip node's label.
func (b *builder) expand(su []int, it, ic int) int {
	sv := slices.Clone(su)
	sv[b.ndims] = it + 1
	if !b.binary {
		sv[b.ndims+1] = 0
	}
	up := b.solve(sv)
	if up < 0 {
		panic(fmt.Sprintf("engine: skip state of %v is unreachable", su))
	}

	dem := b.items[it].Demand
	if b.binary {
		dem = 1
	}
	if ic >= dem {
		return up
	}
	w := b.items[it].W
	sv = slices.Clone(su)
	for d := 0; d < b.ndims; d++ {
		sv[d] += w[d]
	}
	switch {
	case b.binary:
		sv[b.ndims] = it + 1
	case ic+1 < dem:
		sv[b.ndims+1] = ic + 1
	default:
		sv[b.ndims] = it + 1
		sv[b.ndims+1] = 0
	}
	iv := b.solve(sv)
	if iv < 0 {
		return up
	}

	mu := slices.Clone(b.ns.Label(up))
	lv := b.ns.Label(iv)
	for d := 0; d < b.ndims; d++ {
		mu[d] = min(mu[d], lv[d]-w[d])
	}
	if b.binary {
		mu[b.ndims] = min(mu[b.ndims], it+1)
	}
	iu := b.ns.Index(mu)
	b.arcSet.add(Arc{U: iu, V: iv, Label: it})
	if iu != up {
		b.arcSet.add(Arc{U: iu, V: up, Label: b.loss})
	}
	return iu
}
