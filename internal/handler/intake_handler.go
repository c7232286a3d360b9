package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/middleware"
	"github.com/noah-isme/gradehub-api/internal/service"
	"github.com/noah-isme/gradehub-api/internal/utils"
)

// IntakeHandler manages submission import endpoints.
type IntakeHandler struct {
	service   service.IntakeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewIntakeHandler builds an intake handler instance.
func NewIntakeHandler(service service.IntakeService, validator *validator.Validate, logger zerolog.Logger) *IntakeHandler {
	return &IntakeHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "intake_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Imports are
// rate limited per grader; a batch already fans out internally.
func (h *IntakeHandler) Register(router fiber.Router) {
	router.Post("/assignments/:id/import", middleware.RateLimit("intake", 10, time.Minute), h.importArchives)
}

// importArchives ingests a batch of archives for the assignment. Per-archive
// outcomes come back in input order; a failed archive never fails the batch.
func (h *IntakeHandler) importArchives(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var payload dto.ImportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.Import(c.Context(), assignmentID, payload.ArchivePaths, actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, "import completed", results)
}
