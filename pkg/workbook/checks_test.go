package workbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func gradedSheet() SheetDetail {
	return SheetDetail{
		Name: "Sheet1",
		Cells: []FormulaCell{
			{Address: "B2", Value: "10", Formula: "SUM(A1:A10)"},
			{Address: "B3", Value: "20", Formula: "AVERAGE(A1:A10)"},
			{Address: "B4", Value: "30", Formula: "B2+B3"},
		},
		Values: []FormulaCell{
			{Address: "B5", Value: "42"},
			{Address: "A1", Value: "data"},
		},
		FunctionsUsed: []string{"AVERAGE", "SUM"},
	}
}

func TestRangeMustHaveFormulas(t *testing.T) {
	m := FormulaMap{Sheets: []SheetDetail{gradedSheet()}}

	passing := Evaluate(m, []Check{{Type: CheckRangeHasFormulas, Range: "B2:B4"}})
	require.Len(t, passing, 1)
	require.True(t, passing[0].Passed)

	failing := Evaluate(m, []Check{{Type: CheckRangeHasFormulas, Range: "B2:B6"}})
	require.False(t, failing[0].Passed)
	require.Contains(t, failing[0].Detail, "B5")
	require.Contains(t, failing[0].Detail, "B6")
}

func TestRangeNotHardcodedIgnoresEmptyCells(t *testing.T) {
	m := FormulaMap{Sheets: []SheetDetail{gradedSheet()}}

	// B6:B10 is empty, so nothing is hardcoded there.
	empty := Evaluate(m, []Check{{Type: CheckRangeNotHardcoded, Range: "B6:B10"}})
	require.True(t, empty[0].Passed)

	// B5 holds a literal value without a formula.
	hardcoded := Evaluate(m, []Check{{Type: CheckRangeNotHardcoded, Range: "B2:B10"}})
	require.False(t, hardcoded[0].Passed)
	require.Contains(t, hardcoded[0].Detail, "B5")
	require.NotContains(t, hardcoded[0].Detail, "B6")
}

func TestMustUseFunctions(t *testing.T) {
	m := FormulaMap{Sheets: []SheetDetail{gradedSheet()}}

	passing := Evaluate(m, []Check{{Type: CheckMustUseFunctions, Functions: []string{"sum", "average"}}})
	require.True(t, passing[0].Passed)

	failing := Evaluate(m, []Check{{Type: CheckMustUseFunctions, Functions: []string{"VLOOKUP"}}})
	require.False(t, failing[0].Passed)
	require.Contains(t, failing[0].Detail, "VLOOKUP")
}

func TestMustHavePivot(t *testing.T) {
	with := FormulaMap{HasPivot: true}
	without := FormulaMap{}

	require.True(t, Evaluate(with, []Check{{Type: CheckMustHavePivot}})[0].Passed)
	require.False(t, Evaluate(without, []Check{{Type: CheckMustHavePivot}})[0].Passed)
}

func TestUnknownSheetAndRange(t *testing.T) {
	m := FormulaMap{Sheets: []SheetDetail{gradedSheet()}}

	missingSheet := Evaluate(m, []Check{{Type: CheckRangeHasFormulas, Sheet: "Other", Range: "A1"}})
	require.False(t, missingSheet[0].Passed)

	badRange := Evaluate(m, []Check{{Type: CheckRangeHasFormulas, Range: "not-a-range"}})
	require.False(t, badRange[0].Passed)

	unknownType := Evaluate(m, []Check{{Type: "mystery"}})
	require.False(t, unknownType[0].Passed)
}

func TestPartialSheetFailsRangeChecks(t *testing.T) {
	sheet := gradedSheet()
	sheet.Error = "row 7 unreadable"
	m := FormulaMap{Sheets: []SheetDetail{sheet}}

	result := Evaluate(m, []Check{{Type: CheckRangeHasFormulas, Range: "B2:B4"}})
	require.False(t, result[0].Passed)
	require.Contains(t, result[0].Detail, "could not be fully analyzed")
}

func TestExpandRangeSingleCell(t *testing.T) {
	cells, err := expandRange("C3")
	require.NoError(t, err)
	require.Equal(t, []string{"C3"}, cells)

	_, err = expandRange("B4:B2")
	require.Error(t, err)
}
