package importer

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/piwi3910/arcflow/internal/model"
	"github.com/xuri/excelize/v2"
	"github.com/yofu/dxf"
)

// ─── DetectCSVDelimiter Tests ──────────────────────────────

func TestDetectCSVDelimiter_Comma(t *testing.T) {
	data := []byte("Label,Length,Demand\nShelf,600,2\nDoor,400,1\n")
	got := DetectCSVDelimiter(data)
	if got != ',' {
		t.Errorf("expected comma delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Semicolon(t *testing.T) {
	data := []byte("Label;Length;Demand\nShelf;600;2\nDoor;400;1\n")
	got := DetectCSVDelimiter(data)
	if got != ';' {
		t.Errorf("expected semicolon delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Tab(t *testing.T) {
	data := []byte("Label\tLength\tDemand\nShelf\t600\t2\nDoor\t400\t1\n")
	got := DetectCSVDelimiter(data)
	if got != '\t' {
		t.Errorf("expected tab delimiter, got %q", got)
	}
}

func TestDetectCSVDelimiter_Pipe(t *testing.T) {
	data := []byte("Label|Length|Demand\nShelf|600|2\nDoor|400|1\n")
	got := DetectCSVDelimiter(data)
	if got != '|' {
		t.Errorf("expected pipe delimiter, got %q", got)
	}
}

// ─── DetectColumns Tests ───────────────────────────────────

func TestDetectColumns_StandardHeaders(t *testing.T) {
	row := []string{"Label", "Width", "Height", "Demand", "Group"}
	mapping, isHeader := DetectColumns(row, 2)

	if !isHeader {
		t.Error("expected header to be detected")
	}
	if mapping.Label != 0 {
		t.Errorf("expected Label at 0, got %d", mapping.Label)
	}
	if len(mapping.Weights) != 2 || mapping.Weights[0] != 1 || mapping.Weights[1] != 2 {
		t.Errorf("expected Weights at [1 2], got %v", mapping.Weights)
	}
	if mapping.Demand != 3 {
		t.Errorf("expected Demand at 3, got %d", mapping.Demand)
	}
	if mapping.Group != 4 {
		t.Errorf("expected Group at 4, got %d", mapping.Group)
	}
}

func TestDetectColumns_NumberedWeights(t *testing.T) {
	row := []string{"QTY", "W1", "w2", "Dim3", "NAME"}
	mapping, isHeader := DetectColumns(row, 3)

	if !isHeader {
		t.Error("expected header to be detected")
	}
	if mapping.Demand != 0 {
		t.Errorf("expected Demand at 0, got %d", mapping.Demand)
	}
	want := []int{1, 2, 3}
	for d, col := range want {
		if d >= len(mapping.Weights) || mapping.Weights[d] != col {
			t.Fatalf("expected Weights %v, got %v", want, mapping.Weights)
		}
	}
	if mapping.Label != 4 {
		t.Errorf("expected Label at 4, got %d", mapping.Label)
	}
}

func TestDetectColumns_ExtraWeightColumnsIgnored(t *testing.T) {
	row := []string{"Length", "Width", "Qty"}
	mapping, _ := DetectColumns(row, 1)

	if len(mapping.Weights) != 1 || mapping.Weights[0] != 0 {
		t.Errorf("expected a single weight column at 0, got %v", mapping.Weights)
	}
}

func TestDetectColumns_NoHeader(t *testing.T) {
	row := []string{"Shelf", "600", "300", "2"}
	mapping, isHeader := DetectColumns(row, 2)

	if isHeader {
		t.Error("expected no header detection for numeric data")
	}
	if mapping.Label != 0 || mapping.Demand != 3 || mapping.Group != -1 {
		t.Errorf("expected positional mapping, got %+v", mapping)
	}
	if len(mapping.Weights) != 2 || mapping.Weights[0] != 1 || mapping.Weights[1] != 2 {
		t.Errorf("expected positional weights [1 2], got %v", mapping.Weights)
	}
}

// ─── CSV Import Tests ──────────────────────────────────────

func TestImportCSVFromReader_WithHeaders(t *testing.T) {
	data := "Label,Length,Demand\nShelf,600,2\nDoor,400,1\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 1)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[0].Label != "Shelf" {
		t.Errorf("expected label 'Shelf', got '%s'", result.Items[0].Label)
	}
	if result.Items[0].W[0] != 600 {
		t.Errorf("expected weight 600, got %d", result.Items[0].W[0])
	}
	if result.Items[0].Demand != 2 {
		t.Errorf("expected demand 2, got %d", result.Items[0].Demand)
	}
}

func TestImportCSVFromReader_WithoutHeaders(t *testing.T) {
	data := "Shelf,600,300,2\nDoor,400,800,1\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 2)

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d (errors: %v)", len(result.Items), result.Errors)
	}
	if result.Items[1].W[1] != 800 {
		t.Errorf("expected second weight 800, got %d", result.Items[1].W[1])
	}
}

func TestImportCSVFromReader_UnrecognizedHeaderSkipped(t *testing.T) {
	data := "Foo,Bar,Baz\nShelf,600,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 1)

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d (errors: %v)", len(result.Items), result.Errors)
	}
}

func TestImportCSVFromReader_MissingRequiredColumnInHeader(t *testing.T) {
	data := "Label,Width,Demand\nShelf,600,2\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 2)

	if len(result.Errors) == 0 {
		t.Fatal("expected error for missing weight column")
	}
	if !strings.Contains(result.Errors[0], "Weight 2") {
		t.Errorf("expected missing 'Weight 2', got %q", result.Errors[0])
	}
}

func TestImportCSVFromReader_EmptyFile(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader(""), ',', 1)

	if len(result.Errors) == 0 {
		t.Error("expected error for empty input")
	}
}

func TestImportCSVFromReader_InvalidRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"decimal weight", "A,12.5,1", "Invalid weight"},
		{"negative weight", "A,-3,1", "must not be negative"},
		{"zero weight", "A,0,1", "positive weight"},
		{"bad demand", "A,10,x", "Invalid demand"},
		{"zero demand", "A,10,0", "Demand must be positive"},
		{"missing demand", "A,10", "Missing demand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "Label,Length,Demand\n" + tt.row + "\n"
			result := ImportCSVFromReader(strings.NewReader(data), ',', 1)
			if len(result.Errors) != 1 {
				t.Fatalf("expected 1 error, got %v", result.Errors)
			}
			if !strings.Contains(result.Errors[0], tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, result.Errors[0])
			}
			if !strings.HasPrefix(result.Errors[0], "Line 2:") {
				t.Errorf("expected line reference, got %q", result.Errors[0])
			}
		})
	}
}

func TestImportCSVFromReader_MixedValidAndInvalid(t *testing.T) {
	data := "Label,Length,Demand\nA,10,1\nB,abc,1\n\nC,20,3\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 1)

	if len(result.Items) != 2 {
		t.Errorf("expected 2 valid items, got %d", len(result.Items))
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(result.Errors))
	}
}

func TestImportCSVFromReader_EmptyLabel(t *testing.T) {
	data := "Label,Length,Demand\n,10,1\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 1)

	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.Items[0].Label != "Item 1" {
		t.Errorf("expected generated label 'Item 1', got %q", result.Items[0].Label)
	}
}

func TestImportCSV_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.csv")
	content := "Label;Length;Demand\nShelf;600;2\nDoor;400;1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	result := ImportCSV(path, 1)

	if len(result.Items) != 2 {
		t.Errorf("expected 2 items, got %d (errors: %v)", len(result.Items), result.Errors)
	}
	hasSemicolonWarning := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "semicolon") {
			hasSemicolonWarning = true
		}
	}
	if !hasSemicolonWarning {
		t.Error("expected warning about semicolon delimiter detection")
	}
}

func TestImportCSV_FileNotFound(t *testing.T) {
	result := ImportCSV("/nonexistent/path/file.csv", 1)

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

// ─── Excel Import Tests ────────────────────────────────────

func createTestExcel(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "items.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("failed to create cell reference: %v", err)
			}
			if err := f.SetCellValue(sheet, cellRef, cell); err != nil {
				t.Fatalf("failed to set cell value: %v", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save Excel file: %v", err)
	}
	return path
}

func TestImportExcel_WithHeaders(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Name", "W1", "W2", "Qty"},
		{"Crate", 6, 6, 1},
		{"Box", 4, 4, 2},
	})

	result := ImportExcel(path, 2)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[1].Label != "Box" || result.Items[1].Demand != 2 {
		t.Errorf("unexpected second item %+v", result.Items[1])
	}
}

func TestImportExcel_FileNotFound(t *testing.T) {
	result := ImportExcel("/nonexistent/items.xlsx", 1)

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

// ─── BuildInstance Tests ───────────────────────────────────

func TestBuildInstance_Groups(t *testing.T) {
	data := "Label,W1,W2,Demand,Group\nA,4,2,3,g\nA2,2,4,3,g\nB,6,6,1,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',', 2)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	inst, err := BuildInstance(result.Items, model.BinType{W: []int{10, 10}, Cost: 1, Quantity: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.M != 2 {
		t.Fatalf("expected 2 item types, got %d", inst.M)
	}
	if inst.NOpts[0] != 2 || inst.NOpts[1] != 1 {
		t.Errorf("expected options [2 1], got %v", inst.NOpts)
	}
	if inst.Demands[0] != 3 || inst.Demands[1] != 1 {
		t.Errorf("expected demands [3 1], got %v", inst.Demands)
	}
	if inst.NSizes() != 3 {
		t.Errorf("expected 3 item options, got %d", inst.NSizes())
	}
}

func TestBuildInstance_ItemTooLarge(t *testing.T) {
	items := []ItemRow{{Label: "big", W: []int{12}, Demand: 1}}
	_, err := BuildInstance(items, model.BinType{W: []int{10}, Cost: 1, Quantity: -1})
	if !errors.Is(err, model.ErrInvalidInstance) {
		t.Errorf("expected ErrInvalidInstance, got %v", err)
	}
}

func TestBuildInstance_DimensionMismatch(t *testing.T) {
	items := []ItemRow{{Label: "flat", W: []int{1}, Demand: 1}}
	_, err := BuildInstance(items, model.BinType{W: []int{10, 10}, Cost: 1, Quantity: -1})
	if !errors.Is(err, model.ErrInvalidInstance) {
		t.Errorf("expected ErrInvalidInstance, got %v", err)
	}
}

// ─── DXF Import Tests ──────────────────────────────────────

func TestImportDXF_Lines(t *testing.T) {
	d := dxf.NewDrawing()
	if _, err := d.Line(0, 0, 0, 300, 0, 0); err != nil {
		t.Fatalf("failed to add line: %v", err)
	}
	if _, err := d.Line(0, 10, 0, 0, 310, 0); err != nil {
		t.Fatalf("failed to add line: %v", err)
	}
	if _, err := d.Line(0, 20, 0, 120, 20, 0); err != nil {
		t.Fatalf("failed to add line: %v", err)
	}
	if _, err := d.LwPolyline(false, []float64{0, 0}, []float64{30, 40}, []float64{30, 140}); err != nil {
		t.Fatalf("failed to add polyline: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pieces.dxf")
	if err := d.SaveAs(path); err != nil {
		t.Fatalf("failed to save DXF: %v", err)
	}

	result := ImportDXF(path)

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %+v", result.Items)
	}
	want := []struct{ length, demand int }{{300, 2}, {150, 1}, {120, 1}}
	for i, w := range want {
		if result.Items[i].W[0] != w.length || result.Items[i].Demand != w.demand {
			t.Errorf("item %d: expected %d x %d, got %+v", i, w.demand, w.length, result.Items[i])
		}
	}
}

func TestImportDXF_FileNotFound(t *testing.T) {
	result := ImportDXF("/nonexistent/pieces.dxf")

	if len(result.Errors) == 0 {
		t.Error("expected error for nonexistent file")
	}
}

func TestBulgeLength(t *testing.T) {
	// bulge 1 is a half circle
	got := bulgeLength(2, 1)
	if math.Abs(got-math.Pi) > 1e-9 {
		t.Errorf("expected %f, got %f", math.Pi, got)
	}
	if bulgeLength(5, 0) != 5 {
		t.Error("expected straight segment length")
	}
}
