package dto

import (
	"time"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// CourseCreateRequest is the payload for creating a course.
type CourseCreateRequest struct {
	Name string `json:"name" validate:"required"`
	Term string `json:"term" validate:"required"`
}

// GraderCreateRequest is the payload for registering a grader.
type GraderCreateRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
	Initials    string `json:"initials" validate:"required,max=8"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// RosterStudent is one incoming roster row.
type RosterStudent struct {
	StudentID string                 `json:"student_id" validate:"required"`
	Name      string                 `json:"name" validate:"required"`
	Email     string                 `json:"email" validate:"omitempty,email"`
	Section   string                 `json:"section"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// RosterUpsertRequest carries a roster import batch.
type RosterUpsertRequest struct {
	Students []RosterStudent `json:"students" validate:"required,min=1,dive"`
}

// RosterUpsertResponse reports the affected row count.
type RosterUpsertResponse struct {
	Upserted int64 `json:"upserted"`
}

// StudentResponse is the wire form of a roster row.
type StudentResponse struct {
	ID        uint      `json:"id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Section   string    `json:"section,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStudentResponse maps a roster model to its wire form.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:        student.ID,
		StudentID: student.ExternalID,
		Name:      student.Name,
		Email:     student.Email,
		Section:   student.Section,
		CreatedAt: student.CreatedAt,
	}
}
