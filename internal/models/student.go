package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student is one roster row. Identity within a course is the external
// student number, so re-imports upsert on (course_id, external_id).
type Student struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CourseID   uint              `gorm:"not null;uniqueIndex:idx_students_course_external" json:"course_id"`
	ExternalID string            `gorm:"size:64;not null;uniqueIndex:idx_students_course_external" json:"student_id"`
	Name       string            `gorm:"size:255;not null" json:"name"`
	Email      string            `gorm:"size:255" json:"email"`
	Section    string            `gorm:"size:64" json:"section"`
	Extra      datatypes.JSONMap `gorm:"type:json" json:"extra,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
