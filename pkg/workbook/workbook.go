// Package workbook extracts structural and formula information from
// spreadsheet files for rubric-driven grading checks. It never evaluates
// formulas and never writes to the analyzed workbook.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrWorkbookUnreadable indicates the file could not be opened as a workbook.
var ErrWorkbookUnreadable = errors.New("workbook unreadable")

// Summary is the coarse first-pass result, cheap enough for interactive use.
type Summary struct {
	SheetNames       []string `json:"sheet_names"`
	FormulaCellCount int      `json:"formula_cell_count"`
}

// FormulaCell is one formula-bearing cell.
type FormulaCell struct {
	Address string `json:"address"`
	Value   string `json:"value"`
	Formula string `json:"formula"`
}

// SheetDetail is the per-sheet portion of a formula map. Error carries a
// per-sheet failure message when extraction of that sheet was partial.
type SheetDetail struct {
	Name          string        `json:"name"`
	Hidden        bool          `json:"hidden"`
	UsedRange     string        `json:"used_range"`
	Cells         []FormulaCell `json:"cells,omitempty"`
	Values        []FormulaCell `json:"values,omitempty"`
	FunctionsUsed []string      `json:"functions_used,omitempty"`
	HiddenRows    []int         `json:"hidden_rows,omitempty"`
	HiddenCols    []string      `json:"hidden_cols,omitempty"`
	HasPivot      bool          `json:"has_pivot"`
	Error         string        `json:"error,omitempty"`
}

// FormulaMap is the full structural extraction of one workbook.
type FormulaMap struct {
	Sheets           []SheetDetail `json:"sheets"`
	HiddenSheets     []string      `json:"hidden_sheets,omitempty"`
	FormulaCellCount int           `json:"formula_cell_count"`
	HasPivot         bool          `json:"has_pivot"`
	HasCharts        bool          `json:"has_charts"`
}

// SheetByName finds a sheet in the map; an empty name selects the first sheet.
func (m FormulaMap) SheetByName(name string) (SheetDetail, bool) {
	if name == "" && len(m.Sheets) > 0 {
		return m.Sheets[0], true
	}
	for _, sheet := range m.Sheets {
		if strings.EqualFold(sheet.Name, name) {
			return sheet, true
		}
	}
	return SheetDetail{}, false
}

var functionNamePattern = regexp.MustCompile(`([A-Z][A-Z0-9.]*)\s*\(`)

// Analyze opens the workbook and returns the coarse summary. The context
// bounds the parse so malformed files fail closed instead of hanging.
func Analyze(ctx context.Context, path string) (Summary, error) {
	f, err := open(ctx, path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	summary := Summary{SheetNames: f.GetSheetList()}
	for _, sheet := range summary.SheetNames {
		count, err := countFormulas(ctx, f, sheet)
		if err != nil {
			continue
		}
		summary.FormulaCellCount += count
	}
	return summary, nil
}

// Extract builds the full formula map. Per-sheet failures are recorded on
// the sheet's Error field and do not fail the whole extraction.
func Extract(ctx context.Context, path string) (FormulaMap, error) {
	f, err := open(ctx, path)
	if err != nil {
		return FormulaMap{}, err
	}
	defer f.Close()

	result := FormulaMap{HasCharts: hasChartParts(f)}
	for _, name := range f.GetSheetList() {
		detail := extractSheet(ctx, f, name)
		if detail.Hidden {
			result.HiddenSheets = append(result.HiddenSheets, name)
		}
		if detail.HasPivot {
			result.HasPivot = true
		}
		result.FormulaCellCount += len(detail.Cells)
		result.Sheets = append(result.Sheets, detail)
	}
	return result, nil
}

func open(ctx context.Context, path string) (*excelize.File, error) {
	type openResult struct {
		file *excelize.File
		err  error
	}
	done := make(chan openResult, 1)
	go func() {
		f, err := excelize.OpenFile(path)
		done <- openResult{file: f, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, res.err)
		}
		return res.file, nil
	}
}

func extractSheet(ctx context.Context, f *excelize.File, name string) SheetDetail {
	detail := SheetDetail{Name: name}

	if visible, err := f.GetSheetVisible(name); err == nil {
		detail.Hidden = !visible
	}
	if dimension, err := f.GetSheetDimension(name); err == nil {
		detail.UsedRange = dimension
	}
	if pivots, err := f.GetPivotTables(name); err == nil && len(pivots) > 0 {
		detail.HasPivot = true
	}

	rows, err := f.GetRows(name)
	if err != nil {
		detail.Error = err.Error()
		return detail
	}

	functions := map[string]struct{}{}
	maxCols := 0
	for rowIdx, row := range rows {
		if ctx.Err() != nil {
			detail.Error = ctx.Err().Error()
			return detail
		}
		if len(row) > maxCols {
			maxCols = len(row)
		}
		for colIdx, value := range row {
			address, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(name, address)
			if err != nil {
				detail.Error = err.Error()
				continue
			}
			if formula == "" {
				if value != "" {
					detail.Values = append(detail.Values, FormulaCell{Address: address, Value: value})
				}
				continue
			}
			detail.Cells = append(detail.Cells, FormulaCell{
				Address: address,
				Value:   value,
				Formula: formula,
			})
			for _, match := range functionNamePattern.FindAllStringSubmatch(strings.ToUpper(formula), -1) {
				functions[match[1]] = struct{}{}
			}
		}
	}

	detail.FunctionsUsed = sortedKeys(functions)
	detail.HiddenRows = hiddenRows(f, name, len(rows))
	detail.HiddenCols = hiddenCols(f, name, maxCols)
	return detail
}

func countFormulas(ctx context.Context, f *excelize.File, sheet string) (int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, err
	}
	count := 0
	for rowIdx, row := range rows {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		for colIdx := range row {
			address, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				continue
			}
			if formula, err := f.GetCellFormula(sheet, address); err == nil && formula != "" {
				count++
			}
		}
	}
	return count, nil
}

func hiddenRows(f *excelize.File, sheet string, rowCount int) []int {
	var hidden []int
	for row := 1; row <= rowCount; row++ {
		if visible, err := f.GetRowVisible(sheet, row); err == nil && !visible {
			hidden = append(hidden, row)
		}
	}
	return hidden
}

func hiddenCols(f *excelize.File, sheet string, colCount int) []string {
	var hidden []string
	for col := 1; col <= colCount; col++ {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			continue
		}
		if visible, err := f.GetColVisible(sheet, name); err == nil && !visible {
			hidden = append(hidden, name)
		}
	}
	return hidden
}

// hasChartParts scans the package parts for chart XML. excelize has no read
// API for charts, so presence of the chart parts is the signal.
func hasChartParts(f *excelize.File) bool {
	found := false
	f.Pkg.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok && strings.HasPrefix(name, "xl/charts/chart") {
			found = true
			return false
		}
		return true
	})
	return found
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
