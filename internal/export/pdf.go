// Package export provides functionality for exporting packing solutions
// to various file formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
)

// itemColor represents an RGB color for a packed item type.
type itemColor struct {
	R, G, B int
}

var itemColors = []itemColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	drawAreaTop  = marginTop + headerHeight + 8.0
	infoWidth    = 90.0
	barHeight    = 4.0
	barGap       = 1.0
	rowGap       = 4.0
)

// ExportPDF writes a PDF report of the solution to path. Every bin type
// in use gets its own page listing its patterns, each drawn as one fill
// bar per dimension, followed by a summary page.
func ExportPDF(path string, inst *model.Instance, sol *model.Solution) error {
	pdf, err := buildReport(inst, sol)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(path)
}

// WritePDF writes the same report as ExportPDF to w.
func WritePDF(w io.Writer, inst *model.Instance, sol *model.Solution) error {
	pdf, err := buildReport(inst, sol)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func buildReport(inst *model.Instance, sol *model.Solution) (*fpdf.Fpdf, error) {
	if sol.TotalBins() == 0 {
		return nil, fmt.Errorf("no patterns to export")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	for t, pats := range sol.Patterns {
		if len(pats) == 0 {
			continue
		}
		pdf.AddPage()
		renderBinTypePage(pdf, inst, t, pats)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, inst, sol)

	return pdf, pdf.Error()
}

// patternRowHeight returns the vertical space taken by one pattern row.
func patternRowHeight(ndims int) float64 {
	return float64(ndims)*(barHeight+barGap) + rowGap
}

// renderBinTypePage draws the patterns of one bin type on the current page,
// continuing on new pages when they do not fit.
func renderBinTypePage(pdf *fpdf.Fpdf, inst *model.Instance, t int, pats []model.Pattern) {
	bin := inst.Bins[t]
	title := fmt.Sprintf("Bin type %d: capacity (%s), cost %d", t+1, joinInts(bin.W, ", "), bin.Cost)
	drawPageHeader(pdf, title, pats)

	barLeft := marginLeft + infoWidth
	barWidth := pageWidth - barLeft - marginRight
	y := drawAreaTop
	rowH := patternRowHeight(inst.NDims)

	for _, p := range pats {
		if y+rowH > pageHeight-marginBottom {
			pdf.AddPage()
			drawPageHeader(pdf, title+" (continued)", pats)
			y = drawAreaTop
		}

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(15, barHeight, fmt.Sprintf("%d x", p.Count), "", 0, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 7)
		items := truncate(pdf, format.FormatItems(p.Items), infoWidth-18)
		pdf.CellFormat(infoWidth-18, barHeight, items, "", 0, "L", false, 0, "")

		for d := 0; d < inst.NDims; d++ {
			by := y + float64(d)*(barHeight+barGap)
			drawFillBar(pdf, inst, p, d, bin.W[d], barLeft, by, barWidth)
		}
		y += rowH
	}
}

func drawPageHeader(pdf *fpdf.Fpdf, title string, pats []model.Pattern) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	bins := 0
	for _, p := range pats {
		bins += p.Count
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Patterns: %d | Bins: %d", len(pats), bins)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, stats, "", 0, "L", false, 0, "")
}

// drawFillBar draws the load of pattern p in dimension d as a bar of
// colored segments, one per packed unit, over the bin capacity.
func drawFillBar(pdf *fpdf.Fpdf, inst *model.Instance, p model.Pattern, d, capacity int, x, y, width float64) {
	pdf.SetFillColor(235, 235, 235)
	pdf.SetDrawColor(120, 120, 120)
	pdf.SetLineWidth(0.2)
	pdf.Rect(x, y, width, barHeight, "FD")
	if capacity <= 0 {
		return
	}

	scale := width / float64(capacity)
	cx := x
	load := 0
	for _, ref := range p.Items {
		w := inst.OptionWeight(ref)
		if w == nil || w[d] == 0 {
			continue
		}
		col := itemColors[ref.Type%len(itemColors)]
		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.Rect(cx, y, float64(w[d])*scale, barHeight, "FD")
		cx += float64(w[d]) * scale
		load += w[d]
	}

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(60, 60, 60)
	label := fmt.Sprintf("%d / %d (%.0f%%)", load, capacity, 100*float64(load)/float64(capacity))
	labelW := pdf.GetStringWidth(label)
	pdf.SetXY(x+width-labelW-1, y)
	pdf.CellFormat(labelW, barHeight, label, "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// renderSummaryPage draws the final summary page with overall statistics.
func renderSummaryPage(pdf *fpdf.Fpdf, inst *model.Instance, sol *model.Solution) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Packing Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	summaryItems := []struct {
		label string
		value string
	}{
		{"Objective", fmt.Sprintf("%d", sol.Objective(inst))},
		{"Total Bins Used", fmt.Sprintf("%d", sol.TotalBins())},
		{"Item Types", fmt.Sprintf("%d", inst.M)},
		{"Total Demand", fmt.Sprintf("%d", inst.N())},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 7
	}

	y += 5
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Bin Types", "", 0, "L", false, 0, "")
	y += 9

	colWidths := []float64{20, 70, 25, 30, 30, 30}
	headers := []string{"Type", "Capacity", "Cost", "Available", "Used", "Patterns"}
	y = drawTableHeader(pdf, y, colWidths, headers)

	pdf.SetFont("Helvetica", "", 9)
	for t, bin := range inst.Bins {
		available := "unlimited"
		if !bin.Unbounded() {
			available = fmt.Sprintf("%d", bin.Quantity)
		}
		y = drawTableRow(pdf, y, t, colWidths, []string{
			fmt.Sprintf("%d", t+1),
			joinInts(bin.W, " x "),
			fmt.Sprintf("%d", bin.Cost),
			available,
			fmt.Sprintf("%d", sol.BinsUsed(t)),
			fmt.Sprintf("%d", len(sol.Patterns[t])),
		})
	}

	y += 8
	if y+20 > pageHeight-marginBottom {
		pdf.AddPage()
		y = marginTop
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Demand", "", 0, "L", false, 0, "")
	y += 9

	colWidths = []float64{20, 30, 30, 30}
	y = drawTableHeader(pdf, y, colWidths, []string{"Item", "Demand", "Packed", "Constraint"})
	pdf.SetFont("Helvetica", "", 9)
	packed := sol.Packed(inst.M)
	for i := 0; i < inst.M; i++ {
		if y+6 > pageHeight-marginBottom {
			pdf.AddPage()
			y = drawTableHeader(pdf, marginTop, colWidths, []string{"Item", "Demand", "Packed", "Constraint"})
			pdf.SetFont("Helvetica", "", 9)
		}
		y = drawTableRow(pdf, y, i, colWidths, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", inst.Demands[i]),
			fmt.Sprintf("%d", packed[i]),
			string(inst.CTypes[i]),
		})
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by arcflow", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func drawTableHeader(pdf *fpdf.Fpdf, y float64, colWidths []float64, headers []string) float64 {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	return y + 6
}

func drawTableRow(pdf *fpdf.Fpdf, y float64, row int, colWidths []float64, cells []string) float64 {
	// Alternate row background
	if row%2 == 0 {
		pdf.SetFillColor(245, 245, 245)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}
	xPos := marginLeft
	for j, cell := range cells {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
		xPos += colWidths[j]
	}
	return y + 6
}

// truncate shortens s with an ellipsis until it fits in width.
func truncate(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, sep)
}
