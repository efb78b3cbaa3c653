package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInstance is wrapped by every validation failure reported by
// Instance.Validate.
var ErrInvalidInstance = errors.New("invalid instance")

// Variable types accepted for the flow variables of the arc-flow model.
const (
	VTypeInteger    byte = 'I'
	VTypeContinuous byte = 'C'
)

// Constraint types for the demand rows of each item type.
const (
	CTypeExact   byte = '='
	CTypeAtLeast byte = '>'
	CTypeAuto    byte = '*' // resolved by Instance.Normalize
)

// Build methods. MethodCompressed is the default and the only method that
// runs the final compression pass.
const (
	MethodCompressed = -2
	MethodDP         = -1
)

// normPrecision scales the normalized item volume used as the sort key.
const normPrecision = 10000

// Item is one option of an item type.
type Item struct {
	W       []int `json:"w"`
	Nonzero []int `json:"nonzero"`
	Demand  int   `json:"demand"`
	Type    int   `json:"type"`
	Opt     int   `json:"opt"` // -1 for single-option types
	ID      int   `json:"id"`
	Key     int   `json:"key"`
}

// BinType is a bin (or roll, or machine) type with a capacity vector.
type BinType struct {
	W        []int `json:"w"`
	Cost     int   `json:"cost"`
	Quantity int   `json:"quantity"` // -1 = unbounded
}

// Unbounded reports whether the bin type has no quantity cap.
func (b BinType) Unbounded() bool {
	return b.Quantity < 0
}

// Fits reports whether vector u fits within the capacity of the bin type
// in every dimension.
func (b BinType) Fits(u []int) bool {
	for d, w := range b.W {
		if u[d] > w {
			return false
		}
	}
	return true
}

// Instance is a parsed multiple-choice vector packing instance.
// Items holds every option of every item type; after Normalize it is in
// build order (see SortItems) and Item.ID keeps the input position.
type Instance struct {
	NDims   int       `json:"ndims"`
	M       int       `json:"m"`
	Bins    []BinType `json:"bins"`
	Items   []Item    `json:"items"`
	NOpts   []int     `json:"nopts"`
	Demands []int     `json:"demands"`
	CTypes  []byte    `json:"ctypes"`
	VType   byte      `json:"vtype"`
	Binary  bool      `json:"binary"`
	Relax   bool      `json:"relax"`
	Sort    bool      `json:"sort"`
	Method  int       `json:"method"`
}

// NewInstance returns an empty instance with the default options.
func NewInstance(ndims int) *Instance {
	return &Instance{
		NDims:  ndims,
		VType:  VTypeInteger,
		Sort:   true,
		Method: MethodCompressed,
	}
}

// NBTypes returns the number of bin types.
func (inst *Instance) NBTypes() int {
	return len(inst.Bins)
}

// NSizes returns the number of item options.
func (inst *Instance) NSizes() int {
	return len(inst.Items)
}

// N returns the total demand over all item types.
func (inst *Instance) N() int {
	n := 0
	for _, b := range inst.Demands {
		n += b
	}
	return n
}

// MaxW returns the per-dimension maximum capacity over all bin types.
func (inst *Instance) MaxW() []int {
	maxW := make([]int, inst.NDims)
	for _, b := range inst.Bins {
		for d := 0; d < inst.NDims; d++ {
			if b.W[d] > maxW[d] {
				maxW[d] = b.W[d]
			}
		}
	}
	return maxW
}

// AddBinType appends a bin type. Quantity -1 means unbounded.
func (inst *Instance) AddBinType(w []int, cost, quantity int) {
	inst.Bins = append(inst.Bins, BinType{W: append([]int(nil), w...), Cost: cost, Quantity: quantity})
}

// AddItemType appends an item type with one or more options, all sharing
// the given demand. IDs are assigned in insertion order.
func (inst *Instance) AddItemType(demand int, opts ...[]int) {
	t := inst.M
	inst.M++
	inst.NOpts = append(inst.NOpts, len(opts))
	inst.Demands = append(inst.Demands, demand)
	inst.CTypes = append(inst.CTypes, CTypeAuto)
	for q, w := range opts {
		it := Item{
			W:      append([]int(nil), w...),
			Demand: demand,
			Type:   t,
			Opt:    -1,
			ID:     len(inst.Items),
		}
		if len(opts) > 1 {
			it.Opt = q
		}
		inst.Items = append(inst.Items, it)
	}
}

// Normalize derives the nonzero lists and sort keys, resolves automatic
// constraint types, validates the instance and, when Sort is set, orders
// the items for the builder.
func (inst *Instance) Normalize() error {
	if inst.VType == 0 {
		inst.VType = VTypeInteger
	}
	if inst.Method == 0 {
		inst.Method = MethodCompressed
	}
	maxW := inst.MaxW()
	for i := range inst.Items {
		it := &inst.Items[i]
		it.Nonzero = it.Nonzero[:0]
		key := 0
		for d, w := range it.W {
			if w != 0 {
				it.Nonzero = append(it.Nonzero, d)
			}
			if d < len(maxW) && maxW[d] > 0 {
				key += int(math.Round(float64(w) / float64(maxW[d]) * normPrecision))
			}
		}
		it.Key = key
	}
	for i, c := range inst.CTypes {
		if c == CTypeAuto {
			if inst.Demands[i] <= 1 {
				inst.CTypes[i] = CTypeExact
			} else {
				inst.CTypes[i] = CTypeAtLeast
			}
		}
	}
	if err := inst.Validate(); err != nil {
		return err
	}
	if inst.Sort {
		SortItems(inst.Items)
	}
	return nil
}

// Validate checks the instance for malformed or infeasible data.
func (inst *Instance) Validate() error {
	if inst.NDims < 1 {
		return fmt.Errorf("%w: ndims must be positive, got %d", ErrInvalidInstance, inst.NDims)
	}
	if len(inst.Bins) == 0 {
		return fmt.Errorf("%w: no bin types", ErrInvalidInstance)
	}
	for t, b := range inst.Bins {
		if len(b.W) != inst.NDims {
			return fmt.Errorf("%w: bin type %d has %d dimensions, want %d", ErrInvalidInstance, t+1, len(b.W), inst.NDims)
		}
		for _, w := range b.W {
			if w < 0 {
				return fmt.Errorf("%w: bin type %d has a negative capacity", ErrInvalidInstance, t+1)
			}
		}
	}
	if inst.VType != VTypeInteger && inst.VType != VTypeContinuous {
		return fmt.Errorf("%w: invalid vtype %q", ErrInvalidInstance, inst.VType)
	}
	if inst.Method != MethodCompressed && inst.Method != MethodDP {
		return fmt.Errorf("%w: unsupported method %d", ErrInvalidInstance, inst.Method)
	}
	if len(inst.Demands) != inst.M || len(inst.CTypes) != inst.M || len(inst.NOpts) != inst.M {
		return fmt.Errorf("%w: item type tables do not match m=%d", ErrInvalidInstance, inst.M)
	}
	for i, c := range inst.CTypes {
		if c != CTypeExact && c != CTypeAtLeast {
			return fmt.Errorf("%w: invalid ctype %q for item type %d", ErrInvalidInstance, c, i+1)
		}
		if inst.Demands[i] < 0 {
			return fmt.Errorf("%w: negative demand for item type %d", ErrInvalidInstance, i+1)
		}
	}
	seen := make(map[int]bool, len(inst.Items))
	for _, it := range inst.Items {
		if len(it.W) != inst.NDims {
			return fmt.Errorf("%w: item %d has %d dimensions, want %d", ErrInvalidInstance, it.ID, len(it.W), inst.NDims)
		}
		if it.Type < 0 || it.Type >= inst.M {
			return fmt.Errorf("%w: item %d has invalid type %d", ErrInvalidInstance, it.ID, it.Type)
		}
		if it.ID < 0 || seen[it.ID] {
			return fmt.Errorf("%w: item id %d is negative or duplicated", ErrInvalidInstance, it.ID)
		}
		seen[it.ID] = true
		nonzero := false
		for _, w := range it.W {
			if w < 0 {
				return fmt.Errorf("%w: item %d has a negative weight", ErrInvalidInstance, it.ID)
			}
			if w != 0 {
				nonzero = true
			}
		}
		if !nonzero {
			return fmt.Errorf("%w: item %d has no nonzero dimension", ErrInvalidInstance, it.ID)
		}
		if it.Demand > 0 && !inst.fitsSomeBin(it.W) {
			return fmt.Errorf("%w: item %d (type %d) does not fit any bin type", ErrInvalidInstance, it.ID, it.Type+1)
		}
	}
	return nil
}

func (inst *Instance) fitsSomeBin(w []int) bool {
	for _, b := range inst.Bins {
		if b.Fits(w) {
			return true
		}
	}
	return false
}

// ItemByID returns the item option with the given external id.
func (inst *Instance) ItemByID(id int) (Item, bool) {
	for _, it := range inst.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// MaxID returns the largest item id, or -1 when there are no items.
func (inst *Instance) MaxID() int {
	m := -1
	for _, it := range inst.Items {
		if it.ID > m {
			m = it.ID
		}
	}
	return m
}

// itemLess orders items ascending by key, then weight vector, then demand.
func itemLess(a, b Item) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	for d := range a.W {
		if a.W[d] != b.W[d] {
			return a.W[d] < b.W[d]
		}
	}
	return a.Demand < b.Demand
}

// SortItems puts items in build order: descending by normalized volume,
// then by weight vector, then by demand. Equal items end up in reverse
// input order, which keeps builds reproducible across runs.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return itemLess(items[i], items[j])
	})
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
