package engine

import "math"

// lift raises each used-capacity coordinate of su to the largest value
// that keeps every completion feasible for every valid bin type. The set
// of valid bin types is unchanged.
func (b *builder) lift(su []int, valid []int, it, ic int) {
	u := su[:b.ndims]
	bound := grow(&b.bound, b.ndims)
	for d := range bound {
		bound[d] = math.MaxInt
	}
	for _, t := range valid {
		W := b.bins[t].W
		r := b.maxRep(W, u, it, ic)
		for d := 0; d < b.ndims; d++ {
			if u[d] >= W[d] {
				bound[d] = min(bound[d], W[d])
				continue
			}
			val := W[d]
			for i := it; i < b.nsizes && val >= u[d]; i++ {
				val -= r[i-it] * b.items[i].W[d]
			}
			if val < u[d] {
				val = W[d] - b.minSlack(r, it, d, W[d]-u[d])
			}
			bound[d] = min(bound[d], val)
		}
	}
	for d := 0; d < b.ndims; d++ {
		if bound[d] > u[d] {
			u[d] = bound[d]
		}
	}
}

// maxRep returns, for each item from it onwards, how many more copies
// can be packed on top of u in a bin of capacity W. r[0] is item it, of
// which ic copies are already packed.
// The result aliases b.rep and is valid until the next call.
func (b *builder) maxRep(W, u []int, it, ic int) []int {
	r := grow(&b.rep, b.nsizes-it)
	for i := it; i < b.nsizes; i++ {
		dem := b.items[i].Demand
		if b.binary {
			dem = 1
		}
		if i == it {
			dem = max(0, dem-ic)
		}
		for _, d := range b.nonzero[i] {
			if dem == 0 {
				break
			}
			dem = min(dem, (W[d]-u[d])/b.items[i].W[d])
		}
		r[i-it] = dem
	}
	return r
}

// minSlack returns the largest sum not above capacity that the remaining
// copies r can reach in dimension d.
func (b *builder) minSlack(r []int, it, d, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	if len(b.seen) <= capacity {
		b.seen = make([]bool, capacity+1)
	}
	seen := b.seen
	seen[0] = true
	queue := append(b.queue[:0], 0)
	// seen is only ever set at values held in queue
	defer func() {
		for _, v := range queue {
			seen[v] = false
		}
		b.queue = queue[:0]
	}()
	best := 0
	for i := it; i < b.nsizes; i++ {
		w := b.items[i].W[d]
		if w == 0 {
			continue
		}
		n := len(queue)
		for j := 0; j < n; j++ {
			v := queue[j]
			for k := 0; k < r[i-it]; k++ {
				v += w
				if v > capacity {
					break
				}
				if v == capacity {
					return v
				}
				if seen[v] {
					break
				}
				best = max(best, v)
				queue = append(queue, v)
			}
		}
		for _, v := range queue[n:] {
			seen[v] = true
		}
	}
	return best
}

// grow returns (*buf)[:n], reallocating when the capacity is short.
func grow(buf *[]int, n int) []int {
	if cap(*buf) < n {
		*buf = make([]int, n)
	}
	return (*buf)[:n]
}
