package models

import (
	"time"

	"gorm.io/datatypes"
)

// Grade is one question score for one student within an assignment. Grades
// are keyed on (assignment, student, question) rather than on the submission
// so they survive a submission being reassigned.
type Grade struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	AssignmentID    uint           `gorm:"not null;uniqueIndex:idx_grades_assignment_student_question" json:"assignment_id"`
	StudentID       uint           `gorm:"not null;uniqueIndex:idx_grades_assignment_student_question" json:"student_id"`
	QuestionID      string         `gorm:"size:64;not null;uniqueIndex:idx_grades_assignment_student_question" json:"question_id"`
	Score           *float64       `json:"score"`
	Comment         string         `gorm:"type:text" json:"comment"`
	SelectedPresets datatypes.JSON `gorm:"type:json" json:"selected_presets,omitempty"`
	EditedByID      uint           `json:"edited_by_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// GradeTotal is the derived per-student aggregate. While Finalized is false
// TotalScore always equals the sum of the matching grade rows; finalizing
// freezes it as a snapshot.
type GradeTotal struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AssignmentID  uint       `gorm:"not null;uniqueIndex:idx_grade_totals_assignment_student" json:"assignment_id"`
	StudentID     uint       `gorm:"not null;uniqueIndex:idx_grade_totals_assignment_student" json:"student_id"`
	TotalScore    float64    `json:"total_score"`
	Finalized     bool       `json:"finalized"`
	FinalizedByID *uint      `json:"finalized_by_id"`
	FinalizedAt   *time.Time `json:"finalized_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
