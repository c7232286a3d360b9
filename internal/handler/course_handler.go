package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/service"
	"github.com/noah-isme/gradehub-api/internal/utils"
)

// CourseHandler manages course, grader and roster endpoints.
type CourseHandler struct {
	service service.RosterService
	logger  zerolog.Logger
}

// NewCourseHandler builds a course handler instance.
func NewCourseHandler(service service.RosterService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Post("/courses", h.createCourse)
	router.Get("/courses", h.listCourses)
	router.Post("/graders", h.createGrader)
	router.Get("/graders", h.listGraders)
	router.Put("/courses/:id/roster", h.upsertRoster)
	router.Get("/courses/:id/students", h.listStudents)
	router.Post("/roster/parse", h.parseRoster)
}

func (h *CourseHandler) createCourse(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.service.CreateCourse(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) listCourses(c *fiber.Ctx) error {
	courses, err := h.service.ListCourses(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *CourseHandler) createGrader(c *fiber.Ctx) error {
	var payload dto.GraderCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	grader, err := h.service.CreateGrader(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grader created", grader)
}

func (h *CourseHandler) listGraders(c *fiber.Ctx) error {
	graders, err := h.service.ListGraders(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "graders retrieved", graders)
}

func (h *CourseHandler) upsertRoster(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.RosterUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.UpsertRoster(c.Context(), courseID, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "roster imported", result)
}

func (h *CourseHandler) listStudents(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	students, err := h.service.ListStudents(c.Context(), courseID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

// parseRoster maps a roster spreadsheet on disk to candidate rows without
// persisting anything. The caller reviews and submits them via upsertRoster.
func (h *CourseHandler) parseRoster(c *fiber.Ctx) error {
	var payload struct {
		Path string `json:"path"`
	}
	if err := c.BodyParser(&payload); err != nil || payload.Path == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "path is required")
	}

	students, err := h.service.ParseRosterWorkbook(c.Context(), payload.Path)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	return utils.SendSuccess(c, "roster parsed", students)
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
