// Package importer builds packing instances from item lists in CSV and
// Excel files and from line drawings in DXF files. Item lists support
// automatic delimiter detection, flexible column mapping, and
// case-insensitive header recognition.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/piwi3910/arcflow/internal/model"
	"github.com/xuri/excelize/v2"
)

// ItemRow is one imported item option.
type ItemRow struct {
	Label  string
	W      []int
	Demand int
	Group  string // rows sharing a non-empty group are options of one item type
}

// ImportResult holds the results of an import operation.
type ImportResult struct {
	Items    []ItemRow
	Errors   []string
	Warnings []string
}

// ColumnMapping maps semantic column roles to their indices in the data.
// Weights holds one column per dimension.
type ColumnMapping struct {
	Label   int
	Weights []int
	Demand  int
	Group   int
}

// headerAliases maps canonical column names to their accepted aliases (all lowercase).
var headerAliases = map[string][]string{
	"label":  {"label", "name", "item", "item name", "description", "desc", "part", "piece"},
	"weight": {"w", "weight", "width", "length", "len", "size", "height", "h", "depth", "x", "y", "z"},
	"demand": {"demand", "quantity", "qty", "count", "num", "amount", "pcs", "pieces", "b"},
	"group":  {"group", "type", "item type", "family"},
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		// Prefer delimiters with higher consistency and more columns
		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// isWeightHeader accepts the weight aliases and numbered forms such as
// "w2", "dim3" or "weight 1".
func isWeightHeader(s string) bool {
	for _, alias := range headerAliases["weight"] {
		if s == alias {
			return true
		}
	}
	for _, prefix := range []string{"weight", "dim", "w", "d"} {
		rest, ok := strings.CutPrefix(s, prefix)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if _, err := strconv.Atoi(rest); err == nil {
			return true
		}
	}
	return false
}

func matchesAlias(s, role string) bool {
	for _, alias := range headerAliases[role] {
		if s == alias {
			return true
		}
	}
	return false
}

// DetectColumns examines a header row and returns a ColumnMapping for
// ndims weight columns. It performs case-insensitive matching against
// known aliases for each column role; weight columns are taken in order
// of appearance. Returns the mapping and true if a header was detected,
// or a default positional mapping (label, weights, demand) and false if
// no header was found.
func DetectColumns(row []string, ndims int) (ColumnMapping, bool) {
	mapping := ColumnMapping{Label: -1, Demand: -1, Group: -1}

	isHeader := false
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case matchesAlias(normalized, "label"):
			isHeader = true
			if mapping.Label == -1 {
				mapping.Label = i
			}
		case matchesAlias(normalized, "demand"):
			isHeader = true
			if mapping.Demand == -1 {
				mapping.Demand = i
			}
		case matchesAlias(normalized, "group"):
			isHeader = true
			if mapping.Group == -1 {
				mapping.Group = i
			}
		case isWeightHeader(normalized):
			isHeader = true
			if len(mapping.Weights) < ndims {
				mapping.Weights = append(mapping.Weights, i)
			}
		}
	}

	if !isHeader {
		positional := ColumnMapping{Label: 0, Demand: ndims + 1, Group: -1}
		for d := 0; d < ndims; d++ {
			positional.Weights = append(positional.Weights, d+1)
		}
		return positional, false
	}

	return mapping, true
}

// getCell safely retrieves a cell value from a row by column index.
// Returns empty string if the index is out of range or negative.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseRow extracts an ItemRow using the given column mapping.
// Returns the item and an error message.
func parseRow(row []string, mapping ColumnMapping, rowLabel string, itemCount int) (ItemRow, string) {
	item := ItemRow{
		Label: getCell(row, mapping.Label),
		Group: getCell(row, mapping.Group),
		W:     make([]int, len(mapping.Weights)),
	}
	if item.Label == "" {
		item.Label = fmt.Sprintf("Item %d", itemCount+1)
	}

	nonzero := false
	for d, col := range mapping.Weights {
		s := getCell(row, col)
		if s == "" {
			return ItemRow{}, fmt.Sprintf("%s: Missing weight %d", rowLabel, d+1)
		}
		w, err := strconv.Atoi(s)
		if err != nil {
			return ItemRow{}, fmt.Sprintf("%s: Invalid weight '%s'", rowLabel, s)
		}
		if w < 0 {
			return ItemRow{}, fmt.Sprintf("%s: Weights must not be negative", rowLabel)
		}
		if w > 0 {
			nonzero = true
		}
		item.W[d] = w
	}
	if !nonzero {
		return ItemRow{}, fmt.Sprintf("%s: Item needs at least one positive weight", rowLabel)
	}

	demandStr := getCell(row, mapping.Demand)
	if demandStr == "" {
		return ItemRow{}, fmt.Sprintf("%s: Missing demand value", rowLabel)
	}
	demand, err := strconv.Atoi(demandStr)
	if err != nil {
		return ItemRow{}, fmt.Sprintf("%s: Invalid demand '%s'", rowLabel, demandStr)
	}
	if demand <= 0 {
		return ItemRow{}, fmt.Sprintf("%s: Demand must be positive", rowLabel)
	}
	item.Demand = demand

	return item, ""
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportCSV imports an item list with ndims weight columns from a CSV
// file. It automatically detects the delimiter and maps columns by header
// names. Supports comma, semicolon, tab, and pipe delimiters.
func ImportCSV(path string, ndims int) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		result.Warnings = append(result.Warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, ndims, "Line", result.Warnings)
}

// ImportCSVFromReader imports an item list from a CSV reader with a
// specific delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune, ndims int) ImportResult {
	result := ImportResult{}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, ndims, "Line", nil)
}

// ImportExcel imports an item list from an Excel (.xlsx) file.
// Reads the first sheet and auto-detects column mapping from headers.
func ImportExcel(path string, ndims int) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	return importFromRows(rows, ndims, "Row", nil)
}

// importFromRows is the shared import logic for both CSV and Excel data.
// It detects headers, maps columns, and parses each row into items.
func importFromRows(rows [][]string, ndims int, rowPrefix string, initialWarnings []string) ImportResult {
	result := ImportResult{
		Warnings: initialWarnings,
	}

	if ndims < 1 {
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid number of dimensions: %d", ndims))
		return result
	}
	if len(rows) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0], ndims)
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")

		missing := []string{}
		for d := len(mapping.Weights); d < ndims; d++ {
			missing = append(missing, fmt.Sprintf("Weight %d", d+1))
		}
		if mapping.Demand == -1 {
			missing = append(missing, "Demand")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if len(rows[0]) > 1 {
		// An unrecognized header still has a non-numeric first weight
		if _, err := strconv.Atoi(strings.TrimSpace(rows[0][1])); err != nil {
			startRow = 1
			result.Warnings = append(result.Warnings, "Detected header row, skipping")
		}
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}

		rowLabel := fmt.Sprintf("%s %d", rowPrefix, i+1)
		item, errMsg := parseRow(row, mapping, rowLabel, len(result.Items))
		if errMsg != "" {
			result.Errors = append(result.Errors, errMsg)
			continue
		}
		result.Items = append(result.Items, item)
	}

	if len(result.Items) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, "No data rows found")
	}

	return result
}

// BuildInstance turns imported items into a normalized instance packed
// into the given bin type. Rows of the same group become options of one
// item type whose demand is taken from the group's first row.
func BuildInstance(items []ItemRow, bin model.BinType) (*model.Instance, error) {
	capacity := bin.W
	inst := model.NewInstance(len(capacity))
	inst.AddBinType(capacity, bin.Cost, bin.Quantity)

	type itemType struct {
		demand int
		opts   [][]int
	}
	var types []*itemType
	groups := make(map[string]*itemType)
	for _, it := range items {
		if len(it.W) != len(capacity) {
			return nil, fmt.Errorf("%w: item %q has %d dimensions, want %d", model.ErrInvalidInstance, it.Label, len(it.W), len(capacity))
		}
		if it.Group != "" {
			if t, ok := groups[it.Group]; ok {
				t.opts = append(t.opts, it.W)
				continue
			}
		}
		t := &itemType{demand: it.Demand, opts: [][]int{it.W}}
		if it.Group != "" {
			groups[it.Group] = t
		}
		types = append(types, t)
	}
	for _, t := range types {
		inst.AddItemType(t.demand, t.opts...)
	}
	if err := inst.Normalize(); err != nil {
		return nil, err
	}
	return inst, nil
}
