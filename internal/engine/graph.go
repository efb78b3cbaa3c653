package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/piwi3910/arcflow/internal/model"
)

// StageStats records the graph size after one build stage.
type StageStats struct {
	Name string `json:"name"`
	NV   int    `json:"nv"`
	NA   int    `json:"na"`
}

// Stats summarizes a build.
type Stats struct {
	DPStates int           `json:"dp_states"`
	Stages   []StageStats  `json:"stages"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Graph is a finalized arc-flow graph. Arcs are kept in exchange order
// (source arcs, then arcs into sinks, then the rest, each group sorted by
// U, V and Label); an arc's index is its position in Arcs. Item arcs are
// labelled with external item ids.
type Graph struct {
	NBTypes int             `json:"nbtypes"`
	S       int             `json:"s"`
	Ts      []int           `json:"ts"`
	Loss    int             `json:"loss"`
	NV      int             `json:"nv"`
	Arcs    []Arc           `json:"arcs"`
	Bins    []model.BinType `json:"bins"`
	Stats   Stats           `json:"stats"`
}

// NewGraph assembles a graph from its parts, putting the arcs in exchange
// order. Readers of serialized graphs use it.
func NewGraph(s int, ts []int, loss, nv int, arcs []Arc, bins []model.BinType) *Graph {
	g := &Graph{
		NBTypes: len(ts),
		S:       s,
		Ts:      append([]int(nil), ts...),
		Loss:    loss,
		NV:      nv,
		Arcs:    append([]Arc(nil), arcs...),
		Bins:    bins,
	}
	g.sortArcs()
	return g
}

// NA returns the number of arcs.
func (g *Graph) NA() int {
	return len(g.Arcs)
}

// IsSink reports whether v is one of the sinks.
func (g *Graph) IsSink(v int) bool {
	for _, t := range g.Ts {
		if t == v {
			return true
		}
	}
	return false
}

// FeedbackArc returns the index of the arc from the sink of bin type t
// back to the source, or -1 if there is none.
func (g *Graph) FeedbackArc(t int) int {
	for i, a := range g.Arcs {
		if a.U == g.Ts[t] && a.V == g.S {
			return i
		}
	}
	return -1
}

func (g *Graph) arcGroup(a Arc) int {
	switch {
	case a.U == g.S:
		return 0
	case g.IsSink(a.V):
		return 1
	default:
		return 2
	}
}

func (g *Graph) sortArcs() {
	sort.SliceStable(g.Arcs, func(i, j int) bool {
		gi, gj := g.arcGroup(g.Arcs[i]), g.arcGroup(g.Arcs[j])
		if gi != gj {
			return gi < gj
		}
		return g.Arcs[i].Less(g.Arcs[j])
	})
}

// CheckConservation verifies that flow (indexed like Arcs) is
// non-negative and balanced at every vertex.
func (g *Graph) CheckConservation(flow []int) error {
	if len(flow) != len(g.Arcs) {
		return fmt.Errorf("%w: flow has %d entries for %d arcs", ErrUnbalancedFlow, len(flow), len(g.Arcs))
	}
	balance := make([]int, g.NV)
	for i, a := range g.Arcs {
		if flow[i] < 0 {
			return fmt.Errorf("%w: negative flow %d on arc %d", ErrUnbalancedFlow, flow[i], i)
		}
		balance[a.U] -= flow[i]
		balance[a.V] += flow[i]
	}
	for v, x := range balance {
		if x != 0 {
			return fmt.Errorf("%w: vertex %d has net inflow %d", ErrUnbalancedFlow, v, x)
		}
	}
	return nil
}

// Build compiles inst into a finalized arc-flow graph. inst must have been
// normalized; its items are used in their current order.
func Build(inst *model.Instance, opts ...Option) (*Graph, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	method := inst.Method
	if cfg.method != 0 {
		method = cfg.method
	}
	log := cfg.logger

	start := time.Now()
	b := newBuilder(inst)
	log.Info("building arc-flow graph", "method", method, "ndims", b.ndims, "nbtypes", len(b.bins), "nsizes", b.nsizes, "binary", b.binary)

	var stats Stats
	stage := func(name string) {
		s := StageStats{Name: name, NV: b.ns.Size() + 1, NA: len(b.arcs) + b.ns.Size() - 1}
		stats.Stages = append(stats.Stages, s)
		log.Debug("build stage", "stage", name, "vertices", s.NV, "arcs", s.NA, "elapsed", time.Since(start))
	}

	stats.DPStates = b.run()
	log.Debug("state space explored", "states", stats.DPStates)
	stage("dp")
	if method == model.MethodCompressed {
		b.finalCompressionStep()
		b.reduceRedundancy()
		stage("compressed")
	}
	b.finalize()

	g := b.graph(inst)
	stats.Elapsed = time.Since(start)
	g.Stats = stats
	log.Info("graph ready", "vertices", g.NV, "arcs", g.NA(), "elapsed", stats.Elapsed)
	return g, nil
}

// graph converts the finalized working state into a Graph, mapping item
// labels to external ids.
func (b *builder) graph(inst *model.Instance) *Graph {
	if !b.ready {
		panic("engine: graph requested before finalize")
	}
	loss := max(len(inst.Items), inst.MaxID()+1)
	arcs := make([]Arc, len(b.arcs))
	for i, a := range b.arcs {
		if a.Label == b.loss {
			a.Label = loss
		} else {
			a.Label = b.items[a.Label].ID
		}
		arcs[i] = a
	}
	return NewGraph(0, b.ts, loss, b.ns.Size()+len(b.bins), arcs, append([]model.BinType(nil), b.bins...))
}

