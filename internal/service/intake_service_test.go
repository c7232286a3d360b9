package service_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradehub-api/internal/archive"
	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func writeArchive(t *testing.T, name string, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for entryName, content := range entries {
		entry, err := w.Create(entryName)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func newIntake(t *testing.T, f *fixture) service.IntakeService {
	t.Helper()

	matcher := service.NewMatcherService(f.submissions, f.students, f.assignments, f.audit, 0.8, testLogger())
	return service.NewIntakeService(
		f.submissions, f.assignments, f.students, matcher, f.audit,
		t.TempDir(), archive.DefaultLimits(), 2, testLogger(),
	)
}

func TestImportMatchesAndExtracts(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	student := f.seedStudent(t, course.ID, "S10293", "Ada Lovelace")
	assignment := f.seedAssignment(t, course.ID, "")
	intake := newIntake(t, f)

	path := writeArchive(t, "S10293_hw1.zip", map[string]string{
		"workbook.xlsx": "fake workbook",
		"notes.txt":     "scratch notes",
	})

	results, err := intake.Import(context.Background(), assignment.ID, []string{path}, service.Actor{ID: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, dto.ImportStatusImported, results[0].Status)
	require.NotNil(t, results[0].SubmissionID)
	require.NotNil(t, results[0].StudentID)
	require.Equal(t, "S10293", *results[0].StudentID)

	submission, err := f.submissions.GetByID(context.Background(), *results[0].SubmissionID)
	require.NoError(t, err)
	require.Len(t, submission.Files, 2)
	require.NotNil(t, submission.StudentID)
	require.Equal(t, student.ID, *submission.StudentID)
	require.Equal(t, models.MatchMethodFilename, submission.MatchMethod)
	require.Equal(t, models.StatusUnstarted, submission.Status)
	require.Len(t, submission.ContentHash, 64)
}

func TestImportDeduplicatesIdenticalArchives(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	intake := newIntake(t, f)
	ctx := context.Background()
	actor := service.Actor{ID: 1}

	path := writeArchive(t, "hw1.zip", map[string]string{"main.txt": "same bytes"})

	first, err := intake.Import(ctx, assignment.ID, []string{path}, actor)
	require.NoError(t, err)
	require.Equal(t, dto.ImportStatusImported, first[0].Status)

	second, err := intake.Import(ctx, assignment.ID, []string{path}, actor)
	require.NoError(t, err)
	require.Equal(t, dto.ImportStatusDuplicate, second[0].Status)
	require.Equal(t, *first[0].SubmissionID, *second[0].SubmissionID)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestImportDuplicateInSameBatch(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	intake := newIntake(t, f)

	path := writeArchive(t, "hw1.zip", map[string]string{"main.txt": "same bytes"})
	copyPath := filepath.Join(t.TempDir(), "hw1_copy.zip")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(copyPath, content, 0o644))

	results, err := intake.Import(context.Background(), assignment.ID, []string{path, copyPath}, service.Actor{ID: 1})
	require.NoError(t, err)

	statuses := []string{results[0].Status, results[1].Status}
	require.Contains(t, statuses, dto.ImportStatusImported)
	require.Contains(t, statuses, dto.ImportStatusDuplicate)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestImportConcurrentDuplicatesCreateOneRow(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	intake := newIntake(t, f)

	path := writeArchive(t, "hw1.zip", map[string]string{"main.txt": "same bytes"})

	// Two batches race on the same archive; the insert lock resolves the
	// overlap to one row no matter how extraction interleaves.
	var wg sync.WaitGroup
	outcomes := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results, err := intake.Import(context.Background(), assignment.ID, []string{path}, service.Actor{ID: 1})
			errs[slot] = err
			if err == nil {
				outcomes[slot] = results[0].Status
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Contains(t, outcomes, dto.ImportStatusImported)
	require.Contains(t, outcomes, dto.ImportStatusDuplicate)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestImportBrokenArchiveDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, "")
	intake := newIntake(t, f)

	broken := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o644))
	good := writeArchive(t, "good.zip", map[string]string{"main.txt": "fine"})

	results, err := intake.Import(context.Background(), assignment.ID, []string{broken, good}, service.Actor{ID: 1})
	require.NoError(t, err)
	require.Equal(t, dto.ImportStatusError, results[0].Status)
	require.Equal(t, dto.ImportStatusImported, results[1].Status)
}

func TestImportUnknownAssignment(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(t, f)

	_, err := intake.Import(context.Background(), 999, []string{"whatever.zip"}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrAssignmentNotFound)
}
