package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry records one mutating action. Entries are append-only and
// ordered by the auto-incremented ID; nothing in normal operation updates
// or deletes them.
type AuditLogEntry struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	GraderID   *uint             `json:"grader_id"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Detail     datatypes.JSONMap `gorm:"type:json" json:"detail,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
