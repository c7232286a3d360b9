package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Course{}, &models.Grader{}, &models.Student{},
		&models.Assignment{}, &models.Submission{}, &models.SubmissionFile{},
		&models.Grade{}, &models.GradeTotal{},
		&models.AuditLogEntry{}, &models.FormulaAnalysis{},
	))
	return db
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type fixture struct {
	db          *gorm.DB
	courses     repository.CourseRepository
	students    repository.StudentRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	audit       service.AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)
	return &fixture{
		db:          db,
		courses:     repository.NewCourseRepository(db),
		students:    repository.NewStudentRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		grades:      repository.NewGradeRepository(db),
		audit:       service.NewAuditService(repository.NewAuditLogRepository(db), testLogger()),
	}
}

func (f *fixture) seedCourse(t *testing.T) models.Course {
	t.Helper()

	course := models.Course{Name: "Intro Spreadsheets", Term: "Fall 2026"}
	require.NoError(t, f.courses.Create(context.Background(), &course))
	return course
}

func (f *fixture) seedStudent(t *testing.T, courseID uint, externalID, name string) models.Student {
	t.Helper()

	students := []models.Student{{CourseID: courseID, ExternalID: externalID, Name: name}}
	_, err := f.students.UpsertBatch(context.Background(), students)
	require.NoError(t, err)

	student, err := f.students.GetByExternalID(context.Background(), courseID, externalID)
	require.NoError(t, err)
	return student
}

func (f *fixture) seedAssignment(t *testing.T, courseID uint, rubric string) models.Assignment {
	t.Helper()

	assignment := models.Assignment{CourseID: courseID, Title: "Homework 1"}
	if rubric != "" {
		assignment.Rubric = datatypes.JSON(rubric)
	}
	require.NoError(t, f.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (f *fixture) seedSubmission(t *testing.T, assignmentID uint, studentID *uint, status string) models.Submission {
	t.Helper()

	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		ArchivePath:  "/tmp/archive.zip",
		ContentHash:  uuid.NewString(),
		CacheDir:     t.TempDir(),
		ReceivedAt:   f.db.NowFunc(),
		MatchMethod:  models.MatchMethodNone,
		Status:       status,
	}
	require.NoError(t, f.submissions.Create(context.Background(), &submission))
	return submission
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()

	var entries []models.AuditLogEntry
	require.NoError(t, f.db.Order("id ASC").Find(&entries).Error)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

const twoQuestionRubric = `{
  "questions": [
    {"question_id": "q1", "title": "Totals", "max_points": 10,
     "checks": [{"type": "range_must_have_formulas", "range": "B2:B4"}]},
    {"question_id": "q2", "title": "Pivot", "max_points": 5,
     "checks": [{"type": "must_have_pivot"}]}
  ]
}`
