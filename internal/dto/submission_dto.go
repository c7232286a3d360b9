package dto

import (
	"time"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// QueueItem is one row in the grading queue listing.
type QueueItem struct {
	ID              uint       `json:"id"`
	AssignmentID    uint       `json:"assignment_id"`
	StudentID       *string    `json:"student_id,omitempty"`
	StudentName     *string    `json:"student_name,omitempty"`
	Status          string     `json:"status"`
	MatchMethod     string     `json:"match_method"`
	MatchConfidence float64    `json:"match_confidence"`
	ClaimedBy       *string    `json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	LastOpenedAt    *time.Time `json:"last_opened_at,omitempty"`
	ReceivedAt      time.Time  `json:"received_at"`
	Notes           string     `json:"notes,omitempty"`
}

// NewQueueItem maps a submission to its queue listing form.
func NewQueueItem(submission models.Submission) QueueItem {
	item := QueueItem{
		ID:              submission.ID,
		AssignmentID:    submission.AssignmentID,
		Status:          submission.Status,
		MatchMethod:     submission.MatchMethod,
		MatchConfidence: submission.MatchConfidence,
		ClaimedAt:       submission.ClaimedAt,
		LastOpenedAt:    submission.LastOpenedAt,
		ReceivedAt:      submission.ReceivedAt,
		Notes:           submission.Notes,
	}
	if submission.Student != nil {
		item.StudentID = &submission.Student.ExternalID
		item.StudentName = &submission.Student.Name
	}
	if submission.ClaimedBy != nil {
		item.ClaimedBy = &submission.ClaimedBy.DisplayName
	}
	return item
}

// FileInfo is one extracted file in a submission detail response.
type FileInfo struct {
	ID        uint   `json:"id"`
	RelPath   string `json:"rel_path"`
	Category  string `json:"category"`
	MIME      string `json:"mime,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	IsCorrupt bool   `json:"is_corrupt"`
	Encoding  string `json:"encoding,omitempty"`
}

// SubmissionDetail is the full submission view with its file listing.
type SubmissionDetail struct {
	QueueItem
	ArchivePath string     `json:"archive_path"`
	ContentHash string     `json:"content_hash"`
	Files       []FileInfo `json:"files"`
}

// NewSubmissionDetail maps a submission and its files to the detail form.
func NewSubmissionDetail(submission models.Submission) SubmissionDetail {
	detail := SubmissionDetail{
		QueueItem:   NewQueueItem(submission),
		ArchivePath: submission.ArchivePath,
		ContentHash: submission.ContentHash,
		Files:       make([]FileInfo, 0, len(submission.Files)),
	}
	for _, file := range submission.Files {
		detail.Files = append(detail.Files, FileInfo{
			ID:        file.ID,
			RelPath:   file.RelPath,
			Category:  file.Category,
			MIME:      file.MIME,
			SizeBytes: file.SizeBytes,
			IsCorrupt: file.IsCorrupt,
			Encoding:  file.Encoding,
		})
	}
	return detail
}

// ManualMatchRequest links a submission to a roster row.
type ManualMatchRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
}

// QuarantineRequest flags a submission out of the active queue.
type QuarantineRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// StatusUpdateRequest changes a submission's workflow status.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// BookmarkResponse points a grader back at their last open submission.
type BookmarkResponse struct {
	SubmissionID *uint `json:"submission_id"`
}
