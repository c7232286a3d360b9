package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assignment is one graded deliverable within a course. The rubric is stored
// as a JSON document and parsed into the typed tree in rubric.go.
type Assignment struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     *time.Time     `json:"due_date"`
	Rubric      datatypes.JSON `gorm:"type:json" json:"rubric,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Submissions []Submission   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}
