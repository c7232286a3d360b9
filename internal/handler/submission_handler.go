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

// SubmissionHandler manages the grading queue, identity fixes and claims.
type SubmissionHandler struct {
	submissions service.SubmissionService
	matcher     service.MatcherService
	claims      service.ClaimService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(
	submissions service.SubmissionService,
	matcher service.MatcherService,
	claims service.ClaimService,
	validator *validator.Validate,
	logger zerolog.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		matcher:     matcher,
		claims:      claims,
		validator:   validator,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/assignments/:id/submissions", h.list)
	router.Get("/assignments/:id/submissions/unmatched", h.listUnmatched)
	router.Get("/assignments/:id/bookmark", h.bookmark)
	router.Get("/submissions/:id", h.detail)
	router.Get("/submissions/:id/file", h.readFile)
	router.Post("/submissions/:id/match", h.manualMatch)
	router.Post("/submissions/:id/quarantine", h.quarantine)
	router.Post("/submissions/:id/claim", h.claim)
	router.Post("/submissions/:id/release", h.release)
	router.Post("/submissions/:id/touch", h.touch)
	router.Put("/submissions/:id/status", h.updateStatus)
}

// RegisterAdmin attaches routes restricted to admin graders. The guard is
// applied per route so it never leaks onto sibling submission routes.
func (h *SubmissionHandler) RegisterAdmin(router fiber.Router, guard fiber.Handler) {
	router.Post("/submissions/:id/force-claim", guard, h.forceClaim)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var status *string
	if value := c.Query("status"); value != "" {
		status = &value
	}

	items, err := h.submissions.List(c.Context(), assignmentID, status)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", items)
}

func (h *SubmissionHandler) listUnmatched(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	items, err := h.matcher.ListUnmatched(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "unmatched submissions retrieved", items)
}

func (h *SubmissionHandler) bookmark(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	bookmark, err := h.claims.Bookmark(c.Context(), assignmentID, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "bookmark retrieved", bookmark)
}

func (h *SubmissionHandler) detail(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	detail, err := h.submissions.Detail(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", detail)
}

// readFile streams the raw cached bytes of one extracted file. The recorded
// MIME type drives the content type; decoding is left to the viewer.
func (h *SubmissionHandler) readFile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}
	relPath := c.Query("path")
	if relPath == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "path query parameter is required")
	}

	content, file, err := h.submissions.ReadFile(c.Context(), id, relPath)
	if err != nil {
		return h.handleError(c, err)
	}

	if file.MIME != "" {
		c.Set(fiber.HeaderContentType, file.MIME)
	}
	return c.Send(content)
}

func (h *SubmissionHandler) manualMatch(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ManualMatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.matcher.ManualMatch(c.Context(), id, payload.StudentID, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission matched", nil)
}

func (h *SubmissionHandler) quarantine(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.QuarantineRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.matcher.Quarantine(c.Context(), id, payload.Reason, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission quarantined", nil)
}

func (h *SubmissionHandler) claim(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.claims.Claim(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission claimed", nil)
}

func (h *SubmissionHandler) release(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.claims.Release(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "claim released", nil)
}

func (h *SubmissionHandler) forceClaim(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.claims.ForceClaim(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission claimed", nil)
}

func (h *SubmissionHandler) touch(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.claims.Touch(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission touched", nil)
}

func (h *SubmissionHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.StatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.claims.UpdateStatus(c.Context(), id, payload.Status, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "status updated", nil)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrFileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrStudentOutsideCourse):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrClaimedByOther):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
