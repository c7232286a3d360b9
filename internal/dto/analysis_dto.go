package dto

import (
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/pkg/workbook"
)

// AnalyzeRequest targets one file inside a submission's cache.
type AnalyzeRequest struct {
	FilePath string `json:"file_path" validate:"required"`
}

// RunChecksRequest evaluates range checks against a file. When Checks is
// empty the assignment rubric's checks are used.
type RunChecksRequest struct {
	FilePath string                 `json:"file_path" validate:"required"`
	Checks   []models.WorkbookCheck `json:"checks,omitempty" validate:"dive"`
}

// Analysis task states.
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// AnalysisTaskResponse is the async handle for a formula map request.
type AnalysisTaskResponse struct {
	TaskID string               `json:"task_id"`
	Status string               `json:"status"`
	Cached bool                 `json:"cached"`
	Result *workbook.FormulaMap `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// PreviewResponse points at a rendered preview artifact.
type PreviewResponse struct {
	PDFPath string `json:"pdf_path"`
}

// ExportRequest names the gradebook output file.
type ExportRequest struct {
	OutputPath string `json:"output_path" validate:"required"`
}
