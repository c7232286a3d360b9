package dto

// ImportRequest carries the archive paths for one intake batch.
type ImportRequest struct {
	ArchivePaths []string `json:"archive_paths" validate:"required,min=1,dive,required"`
}

// Per-archive import outcomes.
const (
	ImportStatusImported  = "imported"
	ImportStatusDuplicate = "duplicate"
	ImportStatusError     = "error"
)

// ImportResult is the per-archive outcome of an intake batch.
type ImportResult struct {
	Filename     string  `json:"filename"`
	Status       string  `json:"status"`
	SubmissionID *uint   `json:"submission_id,omitempty"`
	StudentID    *string `json:"student_id,omitempty"`
	Message      string  `json:"message,omitempty"`
}
