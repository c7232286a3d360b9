package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func writeSpreadsheet(t *testing.T) string {
	t.Helper()

	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", 2))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", 3))
	require.NoError(t, wb.SetCellFormula("Sheet1", "B2", "=SUM(A1:A2)"))
	require.NoError(t, wb.SetCellFormula("Sheet1", "B3", "=A1*A2"))
	require.NoError(t, wb.SetCellFormula("Sheet1", "B4", "=AVERAGE(A1:A2)"))

	path := filepath.Join(t.TempDir(), "workbook.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())
	return path
}

func (f *fixture) seedFile(t *testing.T, submissionID uint, relPath, cachePath, category string, corrupt bool) models.SubmissionFile {
	t.Helper()

	file := models.SubmissionFile{
		SubmissionID: submissionID,
		RelPath:      relPath,
		CachePath:    cachePath,
		Category:     category,
		IsCorrupt:    corrupt,
	}
	require.NoError(t, f.db.Create(&file).Error)
	return file
}

func newWorkbooks(t *testing.T, f *fixture, redisClient *redis.Client) service.WorkbookService {
	t.Helper()

	svc := service.NewWorkbookService(
		f.submissions, f.assignments, repository.NewAnalysisRepository(f.db),
		redisClient, nil, nil,
		time.Hour, 10*time.Second, 2, testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Start(ctx)
	return svc
}

func TestRequestFormulaMapCompletesAndCaches(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	file := f.seedFile(t, submission.ID, "workbook.xlsx", writeSpreadsheet(t), models.FileSpreadsheet, false)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	workbooks := newWorkbooks(t, f, redisClient)
	ctx := context.Background()

	first, err := workbooks.RequestFormulaMap(ctx, submission.ID, "workbook.xlsx")
	require.NoError(t, err)
	require.Equal(t, dto.TaskStatusPending, first.Status)
	require.False(t, first.Cached)

	require.Eventually(t, func() bool {
		task, err := workbooks.Task(ctx, first.TaskID)
		return err == nil && task.Status == dto.TaskStatusDone
	}, 5*time.Second, 20*time.Millisecond)

	task, err := workbooks.Task(ctx, first.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.Result)
	require.Equal(t, 3, task.Result.FormulaCellCount)

	var analysis models.FormulaAnalysis
	require.NoError(t, f.db.Where("submission_file_id = ?", file.ID).First(&analysis).Error)
	require.Equal(t, 3, analysis.FormulaCellCount)
	require.Len(t, analysis.ContentHash, 64)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Equal(t, fmt.Sprintf("gradehub:formulamap:%d:%s", file.ID, analysis.ContentHash), keys[0])

	// A second request for the unchanged file is answered from the cache.
	second, err := workbooks.RequestFormulaMap(ctx, submission.ID, "workbook.xlsx")
	require.NoError(t, err)
	require.Equal(t, dto.TaskStatusDone, second.Status)
	require.True(t, second.Cached)
	require.NotNil(t, second.Result)
}

func TestRequestFormulaMapFallsBackToStoredAnalysis(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	f.seedFile(t, submission.ID, "workbook.xlsx", writeSpreadsheet(t), models.FileSpreadsheet, false)

	// No redis at all; the persisted analysis row serves repeat requests.
	workbooks := newWorkbooks(t, f, nil)
	ctx := context.Background()

	first, err := workbooks.RequestFormulaMap(ctx, submission.ID, "workbook.xlsx")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := workbooks.Task(ctx, first.TaskID)
		return err == nil && task.Status == dto.TaskStatusDone
	}, 5*time.Second, 20*time.Millisecond)

	second, err := workbooks.RequestFormulaMap(ctx, submission.ID, "workbook.xlsx")
	require.NoError(t, err)
	require.True(t, second.Cached)
}

func TestRunChecksDefaultsToRubricChecks(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, twoQuestionRubric)
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	f.seedFile(t, submission.ID, "workbook.xlsx", writeSpreadsheet(t), models.FileSpreadsheet, false)

	workbooks := newWorkbooks(t, f, nil)

	results, err := workbooks.RunChecks(context.Background(), submission.ID, dto.RunChecksRequest{FilePath: "workbook.xlsx"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byType := map[string]bool{}
	for _, result := range results {
		byType[result.Check.Type] = result.Passed
	}
	require.True(t, byType["range_must_have_formulas"])
	require.False(t, byType["must_have_pivot"])
}

func TestAnalyzeGuardsFileCategory(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	f.seedFile(t, submission.ID, "notes.txt", filepath.Join(t.TempDir(), "notes.txt"), models.FileText, false)
	f.seedFile(t, submission.ID, "broken.xlsx", filepath.Join(t.TempDir(), "broken.xlsx"), models.FileSpreadsheet, true)

	workbooks := newWorkbooks(t, f, nil)
	ctx := context.Background()

	_, err := workbooks.Analyze(ctx, submission.ID, "notes.txt")
	require.ErrorIs(t, err, service.ErrNotSpreadsheet)

	_, err = workbooks.Analyze(ctx, submission.ID, "broken.xlsx")
	require.ErrorIs(t, err, service.ErrFileCorrupt)

	_, err = workbooks.Analyze(ctx, submission.ID, "missing.xlsx")
	require.ErrorIs(t, err, service.ErrFileNotFound)
}

func TestAnalyzeReturnsSummary(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	submission := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	f.seedFile(t, submission.ID, "workbook.xlsx", writeSpreadsheet(t), models.FileSpreadsheet, false)

	workbooks := newWorkbooks(t, f, nil)

	summary, err := workbooks.Analyze(context.Background(), submission.ID, "workbook.xlsx")
	require.NoError(t, err)
	require.Equal(t, []string{"Sheet1"}, summary.SheetNames)
	require.Equal(t, 3, summary.FormulaCellCount)
}

func TestTaskUnknownID(t *testing.T) {
	f := newFixture(t)
	workbooks := newWorkbooks(t, f, nil)

	_, err := workbooks.Task(context.Background(), "no-such-task")
	require.ErrorIs(t, err, service.ErrTaskNotFound)
}
