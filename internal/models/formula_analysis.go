package models

import (
	"time"

	"gorm.io/datatypes"
)

// FormulaAnalysis is the persisted result of one workbook analysis run.
// One row per submission file; re-analysis replaces the row wholesale since
// workbook structure can change between re-imports.
type FormulaAnalysis struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubmissionFileID uint           `gorm:"not null;uniqueIndex" json:"submission_file_id"`
	ContentHash      string         `gorm:"size:64;not null" json:"content_hash"`
	SheetCount       int            `json:"sheet_count"`
	FormulaCellCount int            `json:"formula_cell_count"`
	HasPivot         bool           `json:"has_pivot"`
	HasCharts        bool           `json:"has_charts"`
	HiddenSheets     datatypes.JSON `gorm:"type:json" json:"hidden_sheets,omitempty"`
	Payload          datatypes.JSON `gorm:"type:json" json:"payload,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
