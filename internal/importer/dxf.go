package importer

import (
	"fmt"
	"math"
	"sort"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"
)

// minLength is the shortest length, in drawing units, kept by ImportDXF.
const minLength = 0.5

// ImportDXF reads a cutting list drawn as a DXF file. Each LINE, ARC or
// open LWPOLYLINE is one piece whose length, rounded to whole drawing
// units, becomes a one-dimensional item. Pieces of equal length are
// aggregated into one item with the count as its demand.
func ImportDXF(path string) ImportResult {
	result := ImportResult{}

	drawing, err := dxf.Open(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open DXF file: %v", err))
		return result
	}

	entities := drawing.Entities()
	if len(entities) == 0 {
		result.Errors = append(result.Errors, "DXF file contains no entities")
		return result
	}

	counts := make(map[int]int)
	for _, ent := range entities {
		var length float64
		switch e := ent.(type) {
		case *entity.Line:
			length = distance(e.Start, e.End)

		case *entity.Arc:
			length = arcLength(e)

		case *entity.LwPolyline:
			if e.Closed {
				result.Warnings = append(result.Warnings, "Skipped closed LWPOLYLINE")
				continue
			}
			length = polylineLength(e)

		default:
			// Unsupported entity types are silently skipped
			continue
		}

		if length < minLength {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Skipped degenerate piece (%.2f units)", length))
			continue
		}
		counts[int(math.Round(length))]++
	}

	if len(counts) == 0 {
		result.Errors = append(result.Errors, "No pieces found in DXF file")
		return result
	}

	lengths := make([]int, 0, len(counts))
	for l := range counts {
		lengths = append(lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
	for _, l := range lengths {
		result.Items = append(result.Items, ItemRow{
			Label:  fmt.Sprintf("L=%d", l),
			W:      []int{l},
			Demand: counts[l],
		})
	}

	return result
}

func distance(a, b []float64) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// arcLength returns the length of a DXF ARC, which sweeps counter-clockwise
// from the start to the end angle (degrees).
func arcLength(a *entity.Arc) float64 {
	sweep := a.Angle[1] - a.Angle[0]
	if sweep <= 0 {
		sweep += 360
	}
	return a.Circle.Radius * sweep * math.Pi / 180
}

// polylineLength sums the vertex-to-vertex distances of an open polyline.
// Bulged segments are measured along their arc.
func polylineLength(lw *entity.LwPolyline) float64 {
	total := 0.0
	for i := 0; i+1 < len(lw.Vertices); i++ {
		chord := distance(lw.Vertices[i], lw.Vertices[i+1])
		bulge := 0.0
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		total += bulgeLength(chord, bulge)
	}
	return total
}

// bulgeLength converts a chord and a DXF bulge factor (the tangent of 1/4
// the included angle) into the length of the arc it describes.
func bulgeLength(chord, bulge float64) float64 {
	if math.Abs(bulge) < 1e-9 || chord < 1e-9 {
		return chord
	}
	angle := 4 * math.Atan(math.Abs(bulge))
	radius := chord / (2 * math.Sin(angle/2))
	return radius * angle
}
