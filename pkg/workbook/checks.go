package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Check kinds understood by Evaluate.
const (
	CheckRangeHasFormulas  = "range_must_have_formulas"
	CheckRangeNotHardcoded = "range_not_hardcoded"
	CheckMustUseFunctions  = "must_use_functions"
	CheckMustHavePivot     = "must_have_pivot"
)

// Check is one structural assertion over a workbook. Sheet is optional and
// defaults to the first sheet; Range applies to the range-scoped kinds.
type Check struct {
	Type      string   `json:"type"`
	Sheet     string   `json:"sheet,omitempty"`
	Range     string   `json:"range,omitempty"`
	Functions []string `json:"functions,omitempty"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Check  Check  `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Evaluate runs each check against an already-extracted formula map. It is a
// pure read; the workbook file is not touched.
func Evaluate(m FormulaMap, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, evaluateOne(m, check))
	}
	return results
}

func evaluateOne(m FormulaMap, check Check) CheckResult {
	switch check.Type {
	case CheckRangeHasFormulas:
		return checkRangeFormulas(m, check, true)
	case CheckRangeNotHardcoded:
		return checkRangeFormulas(m, check, false)
	case CheckMustUseFunctions:
		return checkFunctions(m, check)
	case CheckMustHavePivot:
		if m.HasPivot {
			return CheckResult{Check: check, Passed: true, Detail: "workbook contains a pivot table"}
		}
		return CheckResult{Check: check, Passed: false, Detail: "no pivot table found in workbook"}
	default:
		return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("unknown check type %q", check.Type)}
	}
}

// checkRangeFormulas verifies formula presence across a range. With
// requireAll every cell in the range must carry a formula; otherwise only
// cells holding a literal value without a formula fail (empty cells pass).
func checkRangeFormulas(m FormulaMap, check Check, requireAll bool) CheckResult {
	sheet, ok := m.SheetByName(check.Sheet)
	if !ok {
		return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("sheet %q not found", check.Sheet)}
	}
	if sheet.Error != "" {
		return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("sheet %q could not be fully analyzed: %s", sheet.Name, sheet.Error)}
	}

	cells, err := expandRange(check.Range)
	if err != nil {
		return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("invalid range %q: %v", check.Range, err)}
	}

	formulas := make(map[string]struct{}, len(sheet.Cells))
	for _, cell := range sheet.Cells {
		formulas[cell.Address] = struct{}{}
	}

	var failing []string
	for _, address := range cells {
		if _, ok := formulas[address]; ok {
			continue
		}
		if requireAll || sheet.hasValue(address) {
			failing = append(failing, address)
		}
	}

	if len(failing) == 0 {
		return CheckResult{Check: check, Passed: true, Detail: fmt.Sprintf("all cells in %s satisfy the formula requirement", check.Range)}
	}
	return CheckResult{
		Check:  check,
		Passed: false,
		Detail: fmt.Sprintf("cells without formulas in %s: %s", check.Range, strings.Join(failing, ", ")),
	}
}

func checkFunctions(m FormulaMap, check Check) CheckResult {
	used := map[string]struct{}{}
	if check.Sheet != "" {
		sheet, ok := m.SheetByName(check.Sheet)
		if !ok {
			return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("sheet %q not found", check.Sheet)}
		}
		for _, fn := range sheet.FunctionsUsed {
			used[fn] = struct{}{}
		}
	} else {
		for _, sheet := range m.Sheets {
			for _, fn := range sheet.FunctionsUsed {
				used[fn] = struct{}{}
			}
		}
	}

	var missing []string
	for _, fn := range check.Functions {
		if _, ok := used[strings.ToUpper(fn)]; !ok {
			missing = append(missing, strings.ToUpper(fn))
		}
	}

	if len(missing) == 0 {
		return CheckResult{Check: check, Passed: true, Detail: fmt.Sprintf("required functions present: %s", strings.Join(check.Functions, ", "))}
	}
	return CheckResult{Check: check, Passed: false, Detail: fmt.Sprintf("missing required functions: %s", strings.Join(missing, ", "))}
}

// hasValue reports whether the sheet holds a literal (non-formula) value at
// the address.
func (s SheetDetail) hasValue(address string) bool {
	for _, cell := range s.Values {
		if cell.Address == address {
			return cell.Value != ""
		}
	}
	return false
}

func expandRange(rangeRef string) ([]string, error) {
	parts := strings.SplitN(rangeRef, ":", 2)
	startCol, startRow, err := excelize.CellNameToCoordinates(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	endCol, endRow := startCol, startRow
	if len(parts) == 2 {
		endCol, endRow, err = excelize.CellNameToCoordinates(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
	}
	if endCol < startCol || endRow < startRow {
		return nil, fmt.Errorf("range end precedes start")
	}

	var cells []string
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			address, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return nil, err
			}
			cells = append(cells, address)
		}
	}
	return cells, nil
}
