package models

import "time"

// Submission is one imported archive of student work for an assignment.
// StudentID stays nil until the identity resolver (or a grader) matches it.
type Submission struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	AssignmentID    uint             `gorm:"not null;uniqueIndex:idx_submissions_assignment_hash" json:"assignment_id"`
	StudentID       *uint            `gorm:"index" json:"student_id"`
	ArchivePath     string           `gorm:"size:1024;not null" json:"archive_path"`
	ContentHash     string           `gorm:"size:64;not null;uniqueIndex:idx_submissions_assignment_hash" json:"content_hash"`
	CacheDir        string           `gorm:"size:1024;not null" json:"cache_dir"`
	ReceivedAt      time.Time        `gorm:"not null" json:"received_at"`
	MatchConfidence float64          `json:"match_confidence"`
	MatchMethod     string           `gorm:"size:32;not null;default:none" json:"match_method"`
	Status          string           `gorm:"size:32;not null;default:unstarted" json:"status"`
	ClaimedByID     *uint            `json:"claimed_by_id"`
	ClaimedAt       *time.Time       `json:"claimed_at"`
	LastOpenedAt    *time.Time       `json:"last_opened_at"`
	Notes           string           `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Files           []SubmissionFile `gorm:"constraint:OnDelete:CASCADE" json:"files,omitempty"`
	Student         *Student         `json:"student,omitempty"`
	ClaimedBy       *Grader          `gorm:"foreignKey:ClaimedByID" json:"claimed_by,omitempty"`
}

// Submission statuses.
const (
	StatusUnstarted  = "unstarted"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFlagged    = "flagged"
	StatusError      = "error"
)

// Match methods recorded on a submission.
const (
	MatchMethodFilename = "filename"
	MatchMethodMetadata = "metadata"
	MatchMethodManual   = "manual"
	MatchMethodNone     = "none"
)

// ValidStatus reports whether s names a known submission status.
func ValidStatus(s string) bool {
	switch s {
	case StatusUnstarted, StatusInProgress, StatusDone, StatusFlagged, StatusError:
		return true
	}
	return false
}

// ValidTransition reports whether a status change is allowed. Flagged and
// error are reachable from any state; done and flagged can be re-opened.
func ValidTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	if to == StatusFlagged || to == StatusError {
		return true
	}
	switch from {
	case StatusUnstarted:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusDone
	case StatusDone, StatusFlagged:
		return to == StatusInProgress
	}
	return false
}

// IsMatched reports whether the submission has been linked to a roster row.
func (s Submission) IsMatched() bool {
	return s.StudentID != nil
}
