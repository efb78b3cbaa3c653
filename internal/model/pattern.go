package model

import (
	"fmt"
	"sort"
	"strings"
)

// ItemRef identifies one unit of an item type packed with a given option.
// Opt is -1 for single-option item types.
type ItemRef struct {
	Type int `json:"type"`
	Opt  int `json:"opt"`
}

// Pattern is a packing of one bin repeated Count times. Items holds one
// entry per packed unit, sorted by (Type, Opt).
type Pattern struct {
	Count int       `json:"count"`
	Items []ItemRef `json:"items"`
}

// SortItems orders the pattern's units by (Type, Opt).
func (p *Pattern) SortItems() {
	sort.Slice(p.Items, func(i, j int) bool {
		if p.Items[i].Type != p.Items[j].Type {
			return p.Items[i].Type < p.Items[j].Type
		}
		return p.Items[i].Opt < p.Items[j].Opt
	})
}

// Key returns a canonical string for the pattern's composition. Two
// patterns with the same Key pack the same multiset of units.
func (p Pattern) Key() string {
	var sb strings.Builder
	for _, it := range p.Items {
		fmt.Fprintf(&sb, "%d.%d,", it.Type, it.Opt)
	}
	return sb.String()
}

// Load returns the per-dimension load of one bin packed with this pattern.
func (p Pattern) Load(inst *Instance) []int {
	load := make([]int, inst.NDims)
	for _, ref := range p.Items {
		w := inst.OptionWeight(ref)
		for d := range load {
			load[d] += w[d]
		}
	}
	return load
}

// OptionWeight returns the weight vector of the option referenced by ref.
// It returns nil when the option does not exist.
func (inst *Instance) OptionWeight(ref ItemRef) []int {
	for _, it := range inst.Items {
		if it.Type != ref.Type {
			continue
		}
		if it.Opt == ref.Opt || (ref.Opt <= 0 && it.Opt == -1) {
			return it.W
		}
	}
	return nil
}

// Solution lists the patterns used for each bin type.
type Solution struct {
	Patterns [][]Pattern `json:"patterns"`
}

// NewSolution returns an empty solution for nbtypes bin types.
func NewSolution(nbtypes int) *Solution {
	return &Solution{Patterns: make([][]Pattern, nbtypes)}
}

// BinsUsed returns the number of bins of type t used by the solution.
func (s *Solution) BinsUsed(t int) int {
	n := 0
	for _, p := range s.Patterns[t] {
		n += p.Count
	}
	return n
}

// TotalBins returns the number of bins used over all bin types.
func (s *Solution) TotalBins() int {
	n := 0
	for t := range s.Patterns {
		n += s.BinsUsed(t)
	}
	return n
}

// Objective returns the total cost of the solution.
func (s *Solution) Objective(inst *Instance) int {
	obj := 0
	for t := range s.Patterns {
		obj += inst.Bins[t].Cost * s.BinsUsed(t)
	}
	return obj
}

// Packed returns the number of units packed per item type.
func (s *Solution) Packed(m int) []int {
	packed := make([]int, m)
	for _, pats := range s.Patterns {
		for _, p := range pats {
			for _, ref := range p.Items {
				packed[ref.Type] += p.Count
			}
		}
	}
	return packed
}
