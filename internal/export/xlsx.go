package export

import (
	"fmt"
	"io"

	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the pattern workbook.
const (
	PatternsSheet = "Patterns"
	ItemsSheet    = "Items"
)

// ExportExcel writes the solution to an .xlsx workbook at path.
func ExportExcel(path string, inst *model.Instance, sol *model.Solution) error {
	f, err := buildWorkbook(inst, sol)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteExcel writes the same workbook as ExportExcel to w.
func WriteExcel(w io.Writer, inst *model.Instance, sol *model.Solution) error {
	f, err := buildWorkbook(inst, sol)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// buildWorkbook lays out one row per pattern on the Patterns sheet (bin
// type, multiplicity, items, load per dimension) and one row per item
// type on the Items sheet (demand against packed units).
func buildWorkbook(inst *model.Instance, sol *model.Solution) (*excelize.File, error) {
	if sol.TotalBins() == 0 {
		return nil, fmt.Errorf("no patterns to export")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), PatternsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		f.Close()
		return nil, err
	}

	header := []interface{}{"Bin Type", "Cost", "Count", "Items"}
	for d := 0; d < inst.NDims; d++ {
		header = append(header, fmt.Sprintf("Load %d", d+1), fmt.Sprintf("Capacity %d", d+1))
	}
	rows := [][]interface{}{header}
	for t, pats := range sol.Patterns {
		for _, p := range pats {
			row := []interface{}{t + 1, inst.Bins[t].Cost, p.Count, format.FormatItems(p.Items)}
			load := p.Load(inst)
			for d := 0; d < inst.NDims; d++ {
				row = append(row, load[d], inst.Bins[t].W[d])
			}
			rows = append(rows, row)
		}
	}
	if err := setRows(f, PatternsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	packed := sol.Packed(inst.M)
	rows = [][]interface{}{{"Item Type", "Options", "Demand", "Constraint", "Packed"}}
	for i := 0; i < inst.M; i++ {
		rows = append(rows, []interface{}{i + 1, inst.NOpts[i], inst.Demands[i], string(inst.CTypes[i]), packed[i]})
	}
	if err := setRows(f, ItemsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
