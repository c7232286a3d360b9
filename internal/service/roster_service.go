package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrCourseNotFound indicates the course does not exist.
var ErrCourseNotFound = errors.New("course not found")

// RosterService manages courses, graders and roster imports. These are thin
// collaborators around the grading core.
type RosterService interface {
	CreateCourse(ctx context.Context, payload dto.CourseCreateRequest) (models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	CreateGrader(ctx context.Context, payload dto.GraderCreateRequest) (models.Grader, error)
	ListGraders(ctx context.Context) ([]models.Grader, error)
	UpsertRoster(ctx context.Context, courseID uint, payload dto.RosterUpsertRequest, actor Actor) (dto.RosterUpsertResponse, error)
	ListStudents(ctx context.Context, courseID uint) ([]dto.StudentResponse, error)
	ParseRosterWorkbook(ctx context.Context, path string) ([]dto.RosterStudent, error)
}

type rosterService struct {
	courses   repository.CourseRepository
	students  repository.StudentRepository
	validator *validator.Validate
	audit     AuditRecorder
	logger    zerolog.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(
	courses repository.CourseRepository,
	students repository.StudentRepository,
	validate *validator.Validate,
	audit AuditRecorder,
	logger zerolog.Logger,
) RosterService {
	return &rosterService{
		courses:   courses,
		students:  students,
		validator: validate,
		audit:     audit,
		logger:    logger.With().Str("component", "roster_service").Logger(),
	}
}

func (s *rosterService) CreateCourse(ctx context.Context, payload dto.CourseCreateRequest) (models.Course, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Course{}, err
	}
	course := models.Course{Name: payload.Name, Term: payload.Term}
	if err := s.courses.Create(ctx, &course); err != nil {
		return models.Course{}, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

func (s *rosterService) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.courses.List(ctx)
}

func (s *rosterService) CreateGrader(ctx context.Context, payload dto.GraderCreateRequest) (models.Grader, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Grader{}, err
	}
	grader := models.Grader{
		DisplayName: payload.DisplayName,
		Initials:    strings.ToUpper(payload.Initials),
		Email:       payload.Email,
	}
	if err := s.courses.CreateGrader(ctx, &grader); err != nil {
		return models.Grader{}, fmt.Errorf("create grader: %w", err)
	}
	return grader, nil
}

func (s *rosterService) ListGraders(ctx context.Context) ([]models.Grader, error) {
	return s.courses.ListGraders(ctx)
}

// UpsertRoster imports roster rows keyed on (course, student id). Re-import
// refreshes existing rows instead of duplicating them.
func (s *rosterService) UpsertRoster(ctx context.Context, courseID uint, payload dto.RosterUpsertRequest, actor Actor) (dto.RosterUpsertResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RosterUpsertResponse{}, err
	}
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RosterUpsertResponse{}, ErrCourseNotFound
		}
		return dto.RosterUpsertResponse{}, err
	}

	students := make([]models.Student, 0, len(payload.Students))
	for _, row := range payload.Students {
		student := models.Student{
			CourseID:   courseID,
			ExternalID: strings.TrimSpace(row.StudentID),
			Name:       strings.TrimSpace(row.Name),
			Email:      strings.TrimSpace(row.Email),
			Section:    strings.TrimSpace(row.Section),
		}
		if len(row.Extra) > 0 {
			student.Extra = datatypes.JSONMap(row.Extra)
		}
		students = append(students, student)
	}

	affected, err := s.students.UpsertBatch(ctx, students)
	if err != nil {
		return dto.RosterUpsertResponse{}, fmt.Errorf("upsert roster: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "roster.imported",
		EntityType: "course",
		EntityID:   &courseID,
		Detail:     map[string]interface{}{"rows": len(students)},
	})
	return dto.RosterUpsertResponse{Upserted: affected}, nil
}

func (s *rosterService) ListStudents(ctx context.Context, courseID uint) ([]dto.StudentResponse, error) {
	students, err := s.students.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	responses := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, dto.NewStudentResponse(student))
	}
	return responses, nil
}

// ParseRosterWorkbook reads the first sheet of a roster spreadsheet and maps
// it to candidate roster rows using the header row. Recognized headers are
// student_id, name, email and section (case-insensitive); anything else
// lands in Extra.
func (s *rosterService) ParseRosterWorkbook(_ context.Context, path string) ([]dto.RosterStudent, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read roster sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("roster sheet has no data rows")
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	var students []dto.RosterStudent
	for _, row := range rows[1:] {
		student := dto.RosterStudent{Extra: map[string]interface{}{}}
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			value := strings.TrimSpace(cell)
			switch headers[i] {
			case "student_id", "id":
				student.StudentID = value
			case "name":
				student.Name = value
			case "email":
				student.Email = value
			case "section":
				student.Section = value
			default:
				if value != "" {
					student.Extra[headers[i]] = value
				}
			}
		}
		if student.StudentID != "" {
			students = append(students, student)
		}
	}
	return students, nil
}
