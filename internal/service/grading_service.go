package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrScoreOutOfRange indicates a score outside [0, question max].
var ErrScoreOutOfRange = errors.New("score out of range")

// ErrUnknownQuestion indicates a question id missing from the rubric.
var ErrUnknownQuestion = errors.New("question not in rubric")

// ErrSubmissionUnmatched indicates grading was attempted before the
// submission was linked to a student.
var ErrSubmissionUnmatched = errors.New("submission has no matched student")

// GradingService persists per-question scores and maintains the derived
// totals, including the finalize freeze.
type GradingService interface {
	Grades(ctx context.Context, submissionID uint) (dto.GradesResponse, error)
	SaveGrade(ctx context.Context, submissionID uint, payload dto.SaveGradeRequest, actor Actor) (dto.GradeResponse, error)
	Finalize(ctx context.Context, assignmentID, studentID uint, actor Actor) (dto.GradeTotalResponse, error)
	Unfinalize(ctx context.Context, assignmentID, studentID uint, actor Actor) (dto.GradeTotalResponse, error)
}

type gradingService struct {
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	audit       AuditRecorder
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading store.
func NewGradingService(
	grades repository.GradeRepository,
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	validate *validator.Validate,
	audit AuditRecorder,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		grades:      grades,
		submissions: submissions,
		assignments: assignments,
		validator:   validate,
		audit:       audit,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gradehub-api/internal/service/grading"),
	}
}

func (s *gradingService) Grades(ctx context.Context, submissionID uint) (dto.GradesResponse, error) {
	submission, err := s.matchedSubmission(ctx, submissionID)
	if err != nil {
		return dto.GradesResponse{}, err
	}

	grades, err := s.grades.List(ctx, submission.AssignmentID, *submission.StudentID)
	if err != nil {
		return dto.GradesResponse{}, fmt.Errorf("list grades: %w", err)
	}

	response := dto.GradesResponse{Grades: make([]dto.GradeResponse, 0, len(grades))}
	for _, grade := range grades {
		response.Grades = append(response.Grades, dto.NewGradeResponse(grade))
	}

	if total, err := s.grades.GetTotal(ctx, submission.AssignmentID, *submission.StudentID); err == nil {
		mapped := dto.NewGradeTotalResponse(total)
		response.Total = &mapped
	}
	return response, nil
}

// SaveGrade upserts one question score. Out-of-range scores are rejected
// outright; nothing is clamped and no partial write happens. The repository
// recomputes the unfinalized total in the same transaction.
func (s *gradingService) SaveGrade(ctx context.Context, submissionID uint, payload dto.SaveGradeRequest, actor Actor) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.save")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.String("grading.question_id", payload.QuestionID),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	submission, err := s.matchedSubmission(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return dto.GradeResponse{}, fmt.Errorf("load assignment: %w", err)
	}
	rubric, err := models.ParseRubric(assignment.Rubric)
	if err != nil {
		return dto.GradeResponse{}, fmt.Errorf("parse rubric: %w", err)
	}
	question, ok := rubric.QuestionByID(payload.QuestionID)
	if !ok {
		return dto.GradeResponse{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, payload.QuestionID)
	}
	if payload.Score != nil && (*payload.Score < 0 || *payload.Score > question.MaxPoints) {
		err := fmt.Errorf("%w: %.2f not in [0, %.2f]", ErrScoreOutOfRange, *payload.Score, question.MaxPoints)
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.GradeResponse{}, err
	}

	grade := models.Grade{
		AssignmentID: submission.AssignmentID,
		StudentID:    *submission.StudentID,
		QuestionID:   payload.QuestionID,
		Score:        payload.Score,
		Comment:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment)),
		EditedByID:   actor.ID,
	}
	if len(payload.PresetLabels) > 0 {
		raw, err := json.Marshal(payload.PresetLabels)
		if err != nil {
			return dto.GradeResponse{}, fmt.Errorf("encode preset selection: %w", err)
		}
		grade.SelectedPresets = raw
	}

	if err := s.grades.Save(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_save_failed")
		return dto.GradeResponse{}, fmt.Errorf("save grade: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "grade.saved",
		EntityType: "grade",
		EntityID:   &grade.ID,
		Detail: map[string]interface{}{
			"assignment_id": grade.AssignmentID,
			"student_id":    grade.StudentID,
			"question_id":   grade.QuestionID,
			"score":         payload.Score,
		},
	})

	return dto.NewGradeResponse(grade), nil
}

// Finalize freezes the student's total. Grade rows stay editable but the
// total stops tracking them until unfinalized.
func (s *gradingService) Finalize(ctx context.Context, assignmentID, studentID uint, actor Actor) (dto.GradeTotalResponse, error) {
	total, err := s.grades.Finalize(ctx, assignmentID, studentID, actor.ID)
	if err != nil {
		return dto.GradeTotalResponse{}, fmt.Errorf("finalize total: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "grade_total.finalized",
		EntityType: "grade_total",
		EntityID:   &total.ID,
		Detail: map[string]interface{}{
			"assignment_id": assignmentID,
			"student_id":    studentID,
			"total_score":   total.TotalScore,
		},
	})
	return dto.NewGradeTotalResponse(total), nil
}

// Unfinalize lifts the freeze and recomputes the total from current rows.
func (s *gradingService) Unfinalize(ctx context.Context, assignmentID, studentID uint, actor Actor) (dto.GradeTotalResponse, error) {
	total, err := s.grades.Unfinalize(ctx, assignmentID, studentID)
	if err != nil {
		return dto.GradeTotalResponse{}, fmt.Errorf("unfinalize total: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "grade_total.unfinalized",
		EntityType: "grade_total",
		EntityID:   &total.ID,
		Detail: map[string]interface{}{
			"assignment_id": assignmentID,
			"student_id":    studentID,
			"total_score":   total.TotalScore,
		},
	})
	return dto.NewGradeTotalResponse(total), nil
}

func (s *gradingService) matchedSubmission(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	if submission.StudentID == nil {
		return models.Submission{}, ErrSubmissionUnmatched
	}
	return submission, nil
}
