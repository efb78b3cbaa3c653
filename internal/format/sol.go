package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ReadSol reads solver variable values. Flow variables are named F or X
// followed by the hexadecimal arc index; other variables and comment
// lines are ignored.
func ReadSol(r io.Reader) (map[int]float64, error) {
	flow := make(map[int]float64)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		name := fields[0]
		if name[0] != 'F' && name[0] != 'X' {
			continue
		}
		idx, err := strconv.ParseInt(name[1:], 16, 64)
		if err != nil {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d: missing value for %s", ErrSyntax, line, name)
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid value %q", ErrSyntax, line, fields[1])
		}
		flow[int(idx)] += x
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return flow, nil
}

// ReadSolFile reads a solution file.
func ReadSolFile(path string) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open solution: %w", err)
	}
	defer f.Close()
	return ReadSol(f)
}

// WriteSol writes the non-zero entries of flow, one "X<hex index> value"
// line per arc in index order.
func WriteSol(w io.Writer, flow map[int]float64) error {
	idx := make([]int, 0, len(flow))
	for i, x := range flow {
		if x != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	bw := bufio.NewWriter(w)
	for _, i := range idx {
		fmt.Fprintf(bw, "X%x %s\n", i, strconv.FormatFloat(flow[i], 'g', -1, 64))
	}
	return bw.Flush()
}
