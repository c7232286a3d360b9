package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ExportService writes an assignment's gradebook to a spreadsheet file.
type ExportService interface {
	ExportGradebook(ctx context.Context, assignmentID uint, payload dto.ExportRequest, actor Actor) (string, error)
}

type exportService struct {
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	grades      repository.GradeRepository
	validator   *validator.Validate
	audit       AuditRecorder
	logger      zerolog.Logger
}

// NewExportService constructs the gradebook exporter.
func NewExportService(
	assignments repository.AssignmentRepository,
	students repository.StudentRepository,
	grades repository.GradeRepository,
	validate *validator.Validate,
	audit AuditRecorder,
	logger zerolog.Logger,
) ExportService {
	return &exportService{
		assignments: assignments,
		students:    students,
		grades:      grades,
		validator:   validate,
		audit:       audit,
		logger:      logger.With().Str("component", "export_service").Logger(),
	}
}

// ExportGradebook writes one row per roster student with per-question score
// and comment columns followed by the stored total. Students without grades
// get an empty row so the sheet always mirrors the full roster.
func (s *exportService) ExportGradebook(ctx context.Context, assignmentID uint, payload dto.ExportRequest, actor Actor) (string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return "", err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAssignmentNotFound
		}
		return "", err
	}
	rubric, err := models.ParseRubric(assignment.Rubric)
	if err != nil {
		return "", fmt.Errorf("parse rubric: %w", err)
	}

	students, err := s.students.ListByCourse(ctx, assignment.CourseID)
	if err != nil {
		return "", fmt.Errorf("list students: %w", err)
	}
	grades, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return "", fmt.Errorf("list grades: %w", err)
	}
	totals, err := s.grades.ListTotalsByAssignment(ctx, assignmentID)
	if err != nil {
		return "", fmt.Errorf("list totals: %w", err)
	}

	gradesByStudent := map[uint]map[string]models.Grade{}
	for _, grade := range grades {
		if gradesByStudent[grade.StudentID] == nil {
			gradesByStudent[grade.StudentID] = map[string]models.Grade{}
		}
		gradesByStudent[grade.StudentID][grade.QuestionID] = grade
	}
	totalsByStudent := make(map[uint]models.GradeTotal, len(totals))
	for _, total := range totals {
		totalsByStudent[total.StudentID] = total
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Gradebook"
	f.SetSheetName("Sheet1", sheet)

	headers := []interface{}{"Student ID", "Name", "Email", "Section"}
	for _, question := range rubric.Questions {
		headers = append(headers,
			fmt.Sprintf("%s (%g)", question.Title, question.MaxPoints),
			fmt.Sprintf("%s comment", question.Title),
		)
	}
	headers = append(headers, "Total", "Finalized")
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return "", err
	}

	for i, student := range students {
		row := []interface{}{student.ExternalID, student.Name, student.Email, student.Section}
		byQuestion := gradesByStudent[student.ID]
		for _, question := range rubric.Questions {
			grade, ok := byQuestion[question.ID]
			if ok && grade.Score != nil {
				row = append(row, *grade.Score, grade.Comment)
			} else if ok {
				row = append(row, "", grade.Comment)
			} else {
				row = append(row, "", "")
			}
		}
		if total, ok := totalsByStudent[student.ID]; ok {
			row = append(row, total.TotalScore, total.Finalized)
		} else {
			row = append(row, "", false)
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(payload.OutputPath); err != nil {
		return "", fmt.Errorf("write gradebook: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "gradebook.exported",
		EntityType: "assignment",
		EntityID:   &assignmentID,
		Detail: map[string]interface{}{
			"output_path": payload.OutputPath,
			"students":    len(students),
		},
	})
	return payload.OutputPath, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
