package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// SaveGradeRequest upserts one question score for a submission's student.
type SaveGradeRequest struct {
	QuestionID   string   `json:"question_id" validate:"required"`
	Score        *float64 `json:"score"`
	Comment      string   `json:"comment"`
	PresetLabels []string `json:"preset_labels,omitempty"`
}

// GradeResponse is the wire form of one grade row.
type GradeResponse struct {
	AssignmentID    uint      `json:"assignment_id"`
	StudentID       uint      `json:"student_id"`
	QuestionID      string    `json:"question_id"`
	Score           *float64  `json:"score"`
	Comment         string    `json:"comment,omitempty"`
	SelectedPresets []string  `json:"selected_presets,omitempty"`
	EditedByID      uint      `json:"edited_by_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewGradeResponse maps a grade model to its wire form.
func NewGradeResponse(grade models.Grade) GradeResponse {
	response := GradeResponse{
		AssignmentID: grade.AssignmentID,
		StudentID:    grade.StudentID,
		QuestionID:   grade.QuestionID,
		Score:        grade.Score,
		Comment:      grade.Comment,
		EditedByID:   grade.EditedByID,
		UpdatedAt:    grade.UpdatedAt,
	}
	if len(grade.SelectedPresets) > 0 {
		_ = json.Unmarshal(grade.SelectedPresets, &response.SelectedPresets)
	}
	return response
}

// GradeTotalResponse is the wire form of a derived total.
type GradeTotalResponse struct {
	AssignmentID  uint       `json:"assignment_id"`
	StudentID     uint       `json:"student_id"`
	TotalScore    float64    `json:"total_score"`
	Finalized     bool       `json:"finalized"`
	FinalizedByID *uint      `json:"finalized_by_id,omitempty"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
}

// NewGradeTotalResponse maps a total model to its wire form.
func NewGradeTotalResponse(total models.GradeTotal) GradeTotalResponse {
	return GradeTotalResponse{
		AssignmentID:  total.AssignmentID,
		StudentID:     total.StudentID,
		TotalScore:    total.TotalScore,
		Finalized:     total.Finalized,
		FinalizedByID: total.FinalizedByID,
		FinalizedAt:   total.FinalizedAt,
	}
}

// GradesResponse bundles a submission's grades with the running total.
type GradesResponse struct {
	Grades []GradeResponse     `json:"grades"`
	Total  *GradeTotalResponse `json:"total,omitempty"`
}
