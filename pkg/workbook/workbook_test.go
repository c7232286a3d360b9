package workbook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 2))
	require.NoError(t, f.SetCellFormula("Sheet1", "B2", "SUM(A1:A2)"))
	require.NoError(t, f.SetCellFormula("Sheet1", "B3", "AVERAGE(A1:A2)"))
	require.NoError(t, f.SetCellValue("Sheet1", "C1", "hardcoded"))

	_, err := f.NewSheet("Scratch")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetVisible("Scratch", false))

	path := filepath.Join(t.TempDir(), "homework.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestAnalyzeCountsFormulas(t *testing.T) {
	path := writeWorkbook(t)

	summary, err := Analyze(context.Background(), path)
	require.NoError(t, err)
	require.Contains(t, summary.SheetNames, "Sheet1")
	require.Equal(t, 2, summary.FormulaCellCount)
}

func TestExtractBuildsFormulaMap(t *testing.T) {
	path := writeWorkbook(t)

	m, err := Extract(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, m.FormulaCellCount)
	require.Contains(t, m.HiddenSheets, "Scratch")
	require.False(t, m.HasPivot)

	sheet, ok := m.SheetByName("Sheet1")
	require.True(t, ok)
	require.Contains(t, sheet.FunctionsUsed, "SUM")
	require.Contains(t, sheet.FunctionsUsed, "AVERAGE")

	addresses := map[string]string{}
	for _, cell := range sheet.Cells {
		addresses[cell.Address] = cell.Formula
	}
	require.Contains(t, addresses, "B2")
	require.Contains(t, addresses["B2"], "SUM")

	require.True(t, sheet.hasValue("C1"))
	require.False(t, sheet.hasValue("D1"))
}

func TestExtractEvaluateRoundTrip(t *testing.T) {
	path := writeWorkbook(t)

	m, err := Extract(context.Background(), path)
	require.NoError(t, err)

	results := Evaluate(m, []Check{
		{Type: CheckRangeHasFormulas, Range: "B2:B3"},
		{Type: CheckRangeNotHardcoded, Range: "C1"},
		{Type: CheckMustUseFunctions, Functions: []string{"SUM"}},
	})
	require.True(t, results[0].Passed)
	require.False(t, results[1].Passed)
	require.True(t, results[2].Passed)
}

func TestOpenUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.xlsx")
	_, err := Analyze(context.Background(), path)
	require.ErrorIs(t, err, ErrWorkbookUnreadable)
}
