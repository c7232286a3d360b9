package dto

import "time"

// AssignmentCreateRequest is the payload for creating an assignment.
type AssignmentCreateRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}
