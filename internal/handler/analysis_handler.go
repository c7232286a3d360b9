package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/service"
	"github.com/noah-isme/gradehub-api/internal/utils"
	"github.com/noah-isme/gradehub-api/pkg/preview"
	"github.com/noah-isme/gradehub-api/pkg/workbook"
)

// AnalysisHandler manages workbook analysis and preview endpoints.
type AnalysisHandler struct {
	service   service.WorkbookService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAnalysisHandler builds an analysis handler instance.
func NewAnalysisHandler(service service.WorkbookService, validator *validator.Validate, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AnalysisHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/analysis/summary", h.summary)
	router.Post("/submissions/:id/analysis/formula-map", h.requestFormulaMap)
	router.Get("/analysis/tasks/:taskID", h.task)
	router.Post("/submissions/:id/analysis/checks", h.runChecks)
	router.Post("/submissions/:id/preview", h.renderPreview)
}

func (h *AnalysisHandler) summary(c *fiber.Ctx) error {
	id, payload, ok := h.parseTarget(c)
	if !ok {
		return nil
	}

	summary, err := h.service.Analyze(c.Context(), id, payload.FilePath)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "workbook analyzed", summary)
}

func (h *AnalysisHandler) requestFormulaMap(c *fiber.Ctx) error {
	id, payload, ok := h.parseTarget(c)
	if !ok {
		return nil
	}

	task, err := h.service.RequestFormulaMap(c.Context(), id, payload.FilePath)
	if err != nil {
		return h.handleError(c, err)
	}
	status := fiber.StatusAccepted
	if task.Status == dto.TaskStatusDone {
		status = fiber.StatusOK
	}
	return utils.SendSuccessWithStatus(c, status, "formula map requested", task)
}

func (h *AnalysisHandler) task(c *fiber.Ctx) error {
	task, err := h.service.Task(c.Context(), c.Params("taskID"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *AnalysisHandler) runChecks(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.RunChecksRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.RunChecks(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "checks evaluated", results)
}

func (h *AnalysisHandler) renderPreview(c *fiber.Ctx) error {
	id, payload, ok := h.parseTarget(c)
	if !ok {
		return nil
	}

	result, err := h.service.RenderPreview(c.Context(), id, payload.FilePath)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "preview rendered", result)
}

// parseTarget extracts the submission id and file path shared by the
// analysis endpoints. On failure the error response is already written.
func (h *AnalysisHandler) parseTarget(c *fiber.Ctx) (uint, dto.AnalyzeRequest, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		_ = utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
		return 0, dto.AnalyzeRequest{}, false
	}

	var payload dto.AnalyzeRequest
	if err := c.BodyParser(&payload); err != nil {
		_ = utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		return 0, dto.AnalyzeRequest{}, false
	}
	if err := h.validator.Struct(payload); err != nil {
		_ = utils.SendError(c, fiber.StatusBadRequest, err.Error())
		return 0, dto.AnalyzeRequest{}, false
	}
	return id, payload, true
}

func (h *AnalysisHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrFileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrNotSpreadsheet):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "file is not a spreadsheet")
	case errors.Is(err, service.ErrFileCorrupt):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "file is corrupt")
	case errors.Is(err, workbook.ErrWorkbookUnreadable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, preview.ErrConverterUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "preview converter unavailable")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
