package engine

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// NodeSet maps label vectors to dense node ids. Ids are handed out in
// insertion order until Sort is called, which renumbers the nodes in
// ascending lexicographic label order.
type NodeSet struct {
	index  map[string]int
	labels [][]int
}

// NewNodeSet returns an empty NodeSet.
func NewNodeSet() *NodeSet {
	return &NodeSet{index: make(map[string]int)}
}

func labelKey(label []int) string {
	buf := make([]byte, 0, len(label)*3)
	for _, x := range label {
		buf = binary.AppendVarint(buf, int64(x))
	}
	return string(buf)
}

// Index returns the id of label, registering it if it is new.
func (ns *NodeSet) Index(label []int) int {
	key := labelKey(label)
	if id, ok := ns.index[key]; ok {
		return id
	}
	id := len(ns.labels)
	ns.index[key] = id
	ns.labels = append(ns.labels, append([]int(nil), label...))
	return id
}

// Label returns the label of node id. The returned slice must not be
// modified.
func (ns *NodeSet) Label(id int) []int {
	if id < 0 || id >= len(ns.labels) {
		panic(fmt.Sprintf("engine: node id %d out of range [0, %d)", id, len(ns.labels)))
	}
	return ns.labels[id]
}

// Size returns the number of registered nodes.
func (ns *NodeSet) Size() int {
	return len(ns.labels)
}

// Clear removes every node.
func (ns *NodeSet) Clear() {
	ns.index = make(map[string]int)
	ns.labels = nil
}

// Sort renumbers the nodes in ascending lexicographic label order.
// Arcs referring to the old ids must be remapped with TopologicalOrder
// before calling Sort.
func (ns *NodeSet) Sort() {
	sort.Slice(ns.labels, func(i, j int) bool {
		return lessLabel(ns.labels[i], ns.labels[j])
	})
	ns.index = make(map[string]int, len(ns.labels))
	for id, lbl := range ns.labels {
		ns.index[labelKey(lbl)] = id
	}
}

// TopologicalOrder returns, for each current id, the id the node would
// get after Sort.
func (ns *NodeSet) TopologicalOrder() []int {
	ids := make([]int, len(ns.labels))
	for i := range ids {
		ids[i] = i
	}
	sort.Slice(ids, func(i, j int) bool {
		return lessLabel(ns.labels[ids[i]], ns.labels[ids[j]])
	})
	order := make([]int, len(ids))
	for rank, id := range ids {
		order[id] = rank
	}
	return order
}

func lessLabel(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
