package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/service"
)

func newGrading(f *fixture) service.GradingService {
	return service.NewGradingService(f.grades, f.submissions, f.assignments, testValidator(), f.audit, testLogger())
}

func gradingFixture(t *testing.T) (*fixture, models.Submission, models.Student) {
	t.Helper()

	f := newFixture(t)
	course := f.seedCourse(t)
	student := f.seedStudent(t, course.ID, "S10293", "Ada Lovelace")
	assignment := f.seedAssignment(t, course.ID, twoQuestionRubric)
	submission := f.seedSubmission(t, assignment.ID, &student.ID, models.StatusInProgress)
	return f, submission, student
}

func TestSaveGradeUpdatesTotal(t *testing.T) {
	f, submission, student := gradingFixture(t)
	grading := newGrading(f)
	actor := service.Actor{ID: 1}
	ctx := context.Background()

	s := 8.0
	grade, err := grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &s, Comment: "good work"}, actor)
	require.NoError(t, err)
	require.Equal(t, student.ID, grade.StudentID)
	require.Equal(t, 8.0, *grade.Score)

	s2 := 3.0
	_, err = grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q2", Score: &s2}, actor)
	require.NoError(t, err)

	grades, err := grading.Grades(ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, grades.Grades, 2)
	require.NotNil(t, grades.Total)
	require.InDelta(t, 11.0, grades.Total.TotalScore, 1e-9)
}

func TestSaveGradeRejectsOutOfRangeScore(t *testing.T) {
	f, submission, student := gradingFixture(t)
	grading := newGrading(f)
	ctx := context.Background()

	over := 11.0
	_, err := grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &over}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrScoreOutOfRange)

	negative := -1.0
	_, err = grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &negative}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrScoreOutOfRange)

	// Nothing was written; no total row exists.
	var count int64
	require.NoError(t, f.db.Model(&models.Grade{}).Count(&count).Error)
	require.Zero(t, count)
	_, err = f.grades.GetTotal(ctx, submission.AssignmentID, student.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaveGradeRejectsUnknownQuestion(t *testing.T) {
	f, submission, _ := gradingFixture(t)
	grading := newGrading(f)

	s := 1.0
	_, err := grading.SaveGrade(context.Background(), submission.ID, dto.SaveGradeRequest{QuestionID: "q9", Score: &s}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrUnknownQuestion)
}

func TestSaveGradeRequiresMatchedSubmission(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t)
	assignment := f.seedAssignment(t, course.ID, twoQuestionRubric)
	unmatched := f.seedSubmission(t, assignment.ID, nil, models.StatusInProgress)
	grading := newGrading(f)

	s := 1.0
	_, err := grading.SaveGrade(context.Background(), unmatched.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &s}, service.Actor{ID: 1})
	require.ErrorIs(t, err, service.ErrSubmissionUnmatched)
}

func TestSaveGradeSanitizesComment(t *testing.T) {
	f, submission, _ := gradingFixture(t)
	grading := newGrading(f)

	s := 5.0
	grade, err := grading.SaveGrade(context.Background(), submission.ID, dto.SaveGradeRequest{
		QuestionID: "q1",
		Score:      &s,
		Comment:    "<script>alert(1)</script>missing labels",
	}, service.Actor{ID: 1})
	require.NoError(t, err)
	require.Equal(t, "missing labels", grade.Comment)
}

func TestFinalizeFreezesTotalUntilUnfinalized(t *testing.T) {
	f, submission, student := gradingFixture(t)
	grading := newGrading(f)
	actor := service.Actor{ID: 4}
	ctx := context.Background()

	s := 8.0
	_, err := grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &s}, actor)
	require.NoError(t, err)

	total, err := grading.Finalize(ctx, submission.AssignmentID, student.ID, actor)
	require.NoError(t, err)
	require.True(t, total.Finalized)
	require.InDelta(t, 8.0, total.TotalScore, 1e-9)

	// Edits while frozen land in the grade rows but not the total.
	s = 2.0
	_, err = grading.SaveGrade(ctx, submission.ID, dto.SaveGradeRequest{QuestionID: "q1", Score: &s}, actor)
	require.NoError(t, err)

	grades, err := grading.Grades(ctx, submission.ID)
	require.NoError(t, err)
	require.InDelta(t, 8.0, grades.Total.TotalScore, 1e-9)

	total, err = grading.Unfinalize(ctx, submission.AssignmentID, student.ID, actor)
	require.NoError(t, err)
	require.False(t, total.Finalized)
	require.InDelta(t, 2.0, total.TotalScore, 1e-9)

	actions := f.auditActions(t)
	require.Contains(t, actions, "grade_total.finalized")
	require.Contains(t, actions, "grade_total.unfinalized")
}
