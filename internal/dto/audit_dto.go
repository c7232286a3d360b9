package dto

import (
	"time"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// AuditEntryResponse is the wire form of one audit log entry.
type AuditEntryResponse struct {
	ID         uint                   `json:"id"`
	GraderID   *uint                  `json:"grader_id,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewAuditEntryResponse maps an audit entry to its wire form.
func NewAuditEntryResponse(entry models.AuditLogEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         entry.ID,
		GraderID:   entry.GraderID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Detail:     entry.Detail,
		CreatedAt:  entry.CreatedAt,
	}
}

// AuditListResponse is a paged audit log slice.
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Total   int64                `json:"total"`
}
