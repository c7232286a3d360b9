package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// Actor identifies the grader performing a mutating call. It is threaded
// explicitly through every service; there is no ambient session.
type Actor struct {
	ID uint
}

// AuditEntry captures the details required to persist one audit record.
type AuditEntry struct {
	GraderID   *uint
	Action     string
	EntityType string
	EntityID   *uint
	Detail     map[string]interface{}
}

// AuditRecorder defines behaviour for recording audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditService exposes methods to persist and query the action history.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, filter repository.AuditLogFilter) (dto.AuditListResponse, error)
}

type auditService struct {
	repo   repository.AuditLogRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit log service.
func NewAuditService(repo repository.AuditLogRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

// Record appends one entry. Audit writes observe mutations that already
// happened, so failures are logged rather than propagated to the caller.
func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if action == "" || entityType == "" {
		s.logger.Error().Str("action", entry.Action).Str("entity_type", entry.EntityType).
			Msg("refusing to record audit entry without action and entity type")
		return
	}

	model := models.AuditLogEntry{
		GraderID:   entry.GraderID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Detail:     entry.Detail,
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit entry")
	}
}

func (s *auditService) List(ctx context.Context, filter repository.AuditLogFilter) (dto.AuditListResponse, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, fmt.Errorf("list audit entries: %w", err)
	}

	response := dto.AuditListResponse{
		Entries: make([]dto.AuditEntryResponse, 0, len(entries)),
		Total:   total,
	}
	for _, entry := range entries {
		response.Entries = append(response.Entries, dto.NewAuditEntryResponse(entry))
	}
	return response, nil
}

func auditActorID(actor Actor) *uint {
	if actor.ID == 0 {
		return nil
	}
	id := actor.ID
	return &id
}
