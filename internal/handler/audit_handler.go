package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/repository"
	"github.com/noah-isme/gradehub-api/internal/service"
	"github.com/noah-isme/gradehub-api/internal/utils"
)

// AuditHandler serves the action history.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler builds an audit handler instance.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("/audit", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	filter := repository.AuditLogFilter{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if page, err := parseQueryInt(c, "page"); err == nil {
		filter.Page = page
	}
	if pageSize, err := parseQueryInt(c, "page_size"); err == nil {
		filter.PageSize = pageSize
	}
	if graderID, err := parseQueryUint(c, "grader_id"); err == nil && graderID != nil {
		filter.GraderID = graderID
	}

	entries, err := h.service.List(c.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, "audit entries retrieved", entries)
}
