package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/piwi3910/arcflow/internal/engine"
	"github.com/piwi3910/arcflow/internal/model"
)

const (
	instanceBegin = "#INSTANCE_BEGIN#"
	graphBegin    = "#GRAPH_BEGIN#"
	graphEnd      = "#GRAPH_END#"
)

// WriteAFG writes the instance and its arc-flow graph. Arcs are written in
// the graph's exchange order so that line k of the arc list is arc k.
func WriteAFG(w io.Writer, inst *model.Instance, g *engine.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, instanceBegin)
	if err := WriteInstance(bw, inst); err != nil {
		return err
	}
	fmt.Fprintln(bw, instanceEnd)
	fmt.Fprintln(bw, graphBegin)
	fmt.Fprintf(bw, "NBTYPES: %d\n", g.NBTypes)
	fmt.Fprintf(bw, "S: %d\n", g.S)
	fmt.Fprintf(bw, "Ts: %s\n", joinInts(g.Ts))
	fmt.Fprintf(bw, "LOSS: %d\n", g.Loss)
	fmt.Fprintf(bw, "NV: %d\n", g.NV)
	fmt.Fprintf(bw, "NA: %d\n", g.NA())
	for _, a := range g.Arcs {
		fmt.Fprintf(bw, "%d %d %d\n", a.U, a.V, a.Label)
	}
	fmt.Fprintln(bw, graphEnd)
	return bw.Flush()
}

// ReadAFG reads an instance and its arc-flow graph written by WriteAFG.
func ReadAFG(r io.Reader) (*model.Instance, *engine.Graph, error) {
	tok := newTokenizer(r)
	if err := tok.expect(instanceBegin); err != nil {
		return nil, nil, err
	}
	inst, err := parseInstance(tok, MVP, model.DefaultAppConfig())
	if err != nil {
		return nil, nil, err
	}
	if err := inst.Normalize(); err != nil {
		return nil, nil, err
	}
	if err := tok.expect(graphBegin); err != nil {
		return nil, nil, err
	}
	nbtypes, err := tok.keyword("NBTYPES")
	if err != nil {
		return nil, nil, err
	}
	if nbtypes != inst.NBTypes() {
		return nil, nil, tok.errorf("graph has %d bin types, instance has %d", nbtypes, inst.NBTypes())
	}
	s, err := tok.keyword("S")
	if err != nil {
		return nil, nil, err
	}
	if err := tok.expect("Ts:"); err != nil {
		return nil, nil, err
	}
	ts, err := tok.ints(nbtypes, "sink")
	if err != nil {
		return nil, nil, err
	}
	loss, err := tok.keyword("LOSS")
	if err != nil {
		return nil, nil, err
	}
	nv, err := tok.keyword("NV")
	if err != nil {
		return nil, nil, err
	}
	na, err := tok.keyword("NA")
	if err != nil {
		return nil, nil, err
	}
	if nv < 1 || na < 0 {
		return nil, nil, tok.errorf("invalid graph size NV=%d NA=%d", nv, na)
	}
	for _, v := range append([]int{s}, ts...) {
		if v < 0 || v >= nv {
			return nil, nil, tok.errorf("vertex %d out of range [0, %d)", v, nv)
		}
	}
	// NA is untrusted: arcs grow as lines are read.
	var arcs []engine.Arc
	for i := 0; i < na; i++ {
		x, err := tok.ints(3, "arc")
		if err != nil {
			return nil, nil, err
		}
		if x[0] < 0 || x[0] >= nv || x[1] < 0 || x[1] >= nv {
			return nil, nil, tok.errorf("arc %d (%d->%d) out of range", i, x[0], x[1])
		}
		arcs = append(arcs, engine.Arc{U: x[0], V: x[1], Label: x[2]})
	}
	// every vertex other than the source and sinks lies on an arc
	if maxNV := 2*na + 1 + nbtypes; nv > maxNV {
		return nil, nil, tok.errorf("NV=%d exceeds %d for %d arcs", nv, maxNV, na)
	}
	if end, err := tok.next(); err == nil && end != graphEnd {
		return nil, nil, tok.errorf("expected %q, got %q", graphEnd, end)
	}
	return inst, engine.NewGraph(s, ts, loss, nv, arcs, inst.Bins), nil
}

// ReadAFGFile reads a .afg file.
func ReadAFGFile(path string) (*model.Instance, *engine.Graph, error) {
	if !strings.EqualFold(filepath.Ext(path), ".afg") {
		return nil, nil, fmt.Errorf("%w: %q (want .afg)", ErrExtension, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open graph: %w", err)
	}
	defer f.Close()
	inst, g, err := ReadAFG(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, g, nil
}

// WriteAFGFile writes a .afg file.
func WriteAFGFile(path string, inst *model.Instance, g *engine.Graph) error {
	if !strings.EqualFold(filepath.Ext(path), ".afg") {
		return fmt.Errorf("%w: %q (want .afg)", ErrExtension, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	if err := WriteAFG(f, inst, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
