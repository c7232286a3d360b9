package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func newRoster(f *fixture) service.RosterService {
	return service.NewRosterService(f.courses, f.students, testValidator(), f.audit, testLogger())
}

func TestUpsertRosterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	roster := newRoster(f)
	ctx := context.Background()
	actor := service.Actor{ID: 1}

	payload := dto.RosterUpsertRequest{Students: []dto.RosterStudent{
		{StudentID: "S10293", Name: "Ada Lovelace", Email: "ada@example.edu", Section: "A"},
		{StudentID: "S20417", Name: "Grace Hopper"},
	}}

	first, err := roster.UpsertRoster(ctx, course.ID, payload, actor)
	require.NoError(t, err)
	require.EqualValues(t, 2, first.Upserted)

	// Re-import refreshes rows in place.
	payload.Students[0].Section = "B"
	_, err = roster.UpsertRoster(ctx, course.ID, payload, actor)
	require.NoError(t, err)

	students, err := roster.ListStudents(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)

	ada, err := f.students.GetByExternalID(ctx, course.ID, "S10293")
	require.NoError(t, err)
	require.Equal(t, "B", ada.Section)

	require.Contains(t, f.auditActions(t), "roster.imported")
}

func TestUpsertRosterUnknownCourse(t *testing.T) {
	f := newFixture(t)

	_, err := newRoster(f).UpsertRoster(context.Background(), 99, dto.RosterUpsertRequest{
		Students: []dto.RosterStudent{{StudentID: "S1", Name: "X"}},
	}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrCourseNotFound)
}

func TestParseRosterWorkbook(t *testing.T) {
	f := newFixture(t)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"Student_ID", "Name", "Email", "Section", "Advisor"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"S10293", "Ada Lovelace", "ada@example.edu", "A", "Babbage"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]interface{}{"", "No ID Row"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A4", &[]interface{}{" S20417 ", "Grace Hopper"}))

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	rows, err := newRoster(f).ParseRosterWorkbook(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "S10293", rows[0].StudentID)
	require.Equal(t, "Ada Lovelace", rows[0].Name)
	require.Equal(t, "ada@example.edu", rows[0].Email)
	require.Equal(t, "A", rows[0].Section)
	require.Equal(t, "Babbage", rows[0].Extra["advisor"])

	require.Equal(t, "S20417", rows[1].StudentID)
}

func TestParseRosterWorkbookRejectsBadFiles(t *testing.T) {
	f := newFixture(t)
	roster := newRoster(f)
	ctx := context.Background()

	_, err := roster.ParseRosterWorkbook(ctx, filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"student_id", "name"}))
	empty := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, wb.SaveAs(empty))
	require.NoError(t, wb.Close())

	_, err = roster.ParseRosterWorkbook(ctx, empty)
	require.Error(t, err)
}

func TestCreateGraderNormalizesInitials(t *testing.T) {
	f := newFixture(t)

	grader, err := newRoster(f).CreateGrader(context.Background(), dto.GraderCreateRequest{
		DisplayName: "Jordan Li",
		Initials:    "jl",
		Email:       "jl@example.edu",
	})
	require.NoError(t, err)
	require.Equal(t, "JL", grader.Initials)
	require.NotZero(t, grader.ID)
}
