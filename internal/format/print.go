package format

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/piwi3910/arcflow/internal/model"
)

// PrintSolution writes a human-readable solution report: the objective,
// then every pattern as "count x [i=type opt=option, ...]" with 1-based
// numbers. Instances with several bin types get a header per bin type.
func PrintSolution(w io.Writer, inst *model.Instance, sol *model.Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Objective: %d\n", sol.Objective(inst))
	fmt.Fprintln(bw, "Solution:")
	multi := len(sol.Patterns) > 1
	for t, pats := range sol.Patterns {
		if multi {
			fmt.Fprintf(bw, "Bins of type %d: %d bins\n", t+1, sol.BinsUsed(t))
		}
		for _, p := range pats {
			fmt.Fprintf(bw, "%d x [%s]\n", p.Count, FormatItems(p.Items))
		}
	}
	return bw.Flush()
}

// PrintInstance writes the "Instance:" block that follows a solution
// report: the weight vector and demand of every item type, one line per
// option, in input order.
func PrintInstance(w io.Writer, inst *model.Instance) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Instance:")
	items := slices.Clone(inst.Items)
	slices.SortFunc(items, func(a, b model.Item) int { return a.ID - b.ID })
	for _, it := range items {
		name := fmt.Sprintf("w_%d", it.Type+1)
		if it.Opt >= 0 {
			name = fmt.Sprintf("w_%d_%d", it.Type+1, it.Opt+1)
		}
		weights := make([]string, len(it.W))
		for d, x := range it.W {
			weights[d] = fmt.Sprint(x)
		}
		fmt.Fprintf(bw, "%s: (%s) b_%d: %d\n", name, strings.Join(weights, ", "), it.Type+1, inst.Demands[it.Type])
	}
	return bw.Flush()
}

// FormatItems renders a pattern's units as "i=1, i=2 opt=1, ...".
func FormatItems(items []model.ItemRef) string {
	parts := make([]string, len(items))
	for i, ref := range items {
		if ref.Opt >= 0 {
			parts[i] = fmt.Sprintf("i=%d opt=%d", ref.Type+1, ref.Opt+1)
		} else {
			parts[i] = fmt.Sprintf("i=%d", ref.Type+1)
		}
	}
	return strings.Join(parts, ", ")
}
