package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrAssignmentNotFound indicates the assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrInvalidRubric indicates the rubric document failed validation.
var ErrInvalidRubric = errors.New("invalid rubric")

// rubricSchema guards the rubric document shape before the typed parse.
const rubricSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question_id", "title", "max_points"],
        "properties": {
          "question_id": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "max_points": {"type": "number", "minimum": 0},
          "description": {"type": "string"},
          "comment_presets": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["label", "text"],
              "properties": {
                "label": {"type": "string", "minLength": 1},
                "text": {"type": "string", "minLength": 1},
                "deduction": {"type": "number"}
              }
            }
          },
          "checks": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {
                "type": {
                  "type": "string",
                  "enum": ["range_must_have_formulas", "range_not_hardcoded", "must_use_functions", "must_have_pivot"]
                },
                "sheet": {"type": "string"},
                "range": {"type": "string"},
                "functions": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

// AssignmentService manages assignments and their rubric documents.
type AssignmentService interface {
	Create(ctx context.Context, courseID uint, payload dto.AssignmentCreateRequest) (models.Assignment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error)
	Get(ctx context.Context, id uint) (models.Assignment, error)
	UpdateRubric(ctx context.Context, id uint, raw []byte, actor Actor) (models.Rubric, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	schema      *jsonschema.Schema
	audit       AuditRecorder
	logger      zerolog.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	validate *validator.Validate,
	audit AuditRecorder,
	logger zerolog.Logger,
) (AssignmentService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rubric.json", strings.NewReader(rubricSchema)); err != nil {
		return nil, fmt.Errorf("register rubric schema: %w", err)
	}
	schema, err := compiler.Compile("rubric.json")
	if err != nil {
		return nil, fmt.Errorf("compile rubric schema: %w", err)
	}

	return &assignmentService{
		assignments: assignments,
		validator:   validate,
		schema:      schema,
		audit:       audit,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
	}, nil
}

func (s *assignmentService) Create(ctx context.Context, courseID uint, payload dto.AssignmentCreateRequest) (models.Assignment, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Assignment{}, err
	}
	assignment := models.Assignment{
		CourseID:    courseID,
		Title:       payload.Title,
		Description: payload.Description,
		DueDate:     payload.DueDate,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return models.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

func (s *assignmentService) ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error) {
	return s.assignments.ListByCourse(ctx, courseID)
}

func (s *assignmentService) Get(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

// UpdateRubric validates the raw rubric document against the schema, then
// parses and structurally validates the typed tree before persisting.
// Rubrics are checked at write time so reads never re-validate.
func (s *assignmentService) UpdateRubric(ctx context.Context, id uint, raw []byte, actor Actor) (models.Rubric, error) {
	if _, err := s.assignments.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rubric{}, ErrAssignmentNotFound
		}
		return models.Rubric{}, err
	}

	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}
	if err := s.schema.Validate(document); err != nil {
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	rubric, err := models.ParseRubric(raw)
	if err != nil {
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}
	if err := s.validator.Struct(rubric); err != nil {
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}
	if err := uniqueQuestionIDs(rubric); err != nil {
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	if err := s.assignments.UpdateRubric(ctx, id, datatypes.JSON(raw)); err != nil {
		return models.Rubric{}, fmt.Errorf("persist rubric: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "assignment.rubric_updated",
		EntityType: "assignment",
		EntityID:   &id,
		Detail:     map[string]interface{}{"questions": len(rubric.Questions)},
	})
	return rubric, nil
}

func uniqueQuestionIDs(rubric models.Rubric) error {
	seen := make(map[string]struct{}, len(rubric.Questions))
	for _, question := range rubric.Questions {
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("duplicate question id %q", question.ID)
		}
		seen[question.ID] = struct{}{}
	}
	return nil
}
