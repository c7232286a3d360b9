package models

import "time"

// Course groups a roster of students and a set of assignments for one term.
type Course struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Term        string       `gorm:"size:64;not null" json:"term"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Students    []Student    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Assignments []Assignment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Grader is a TA or instructor who reviews submissions.
type Grader struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"size:255;not null" json:"display_name"`
	Initials    string    `gorm:"size:8;not null" json:"initials"`
	Email       string    `gorm:"size:255" json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}
