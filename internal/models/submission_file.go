package models

import "time"

// SubmissionFile is one extracted archive entry living in the cache area.
type SubmissionFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	RelPath      string    `gorm:"size:1024;not null" json:"rel_path"`
	CachePath    string    `gorm:"size:1024;not null" json:"cache_path"`
	Category     string    `gorm:"size:32;not null;default:other" json:"category"`
	MIME         string    `gorm:"size:255" json:"mime"`
	SizeBytes    int64     `json:"size_bytes"`
	IsCorrupt    bool      `json:"is_corrupt"`
	Encoding     string    `gorm:"size:64" json:"encoding"`
	CreatedAt    time.Time `json:"created_at"`
}

// File categories, decided once at intake from the file extension.
const (
	FileSpreadsheet = "spreadsheet"
	FileText        = "text"
	FilePDF         = "pdf"
	FileImage       = "image"
	FileDocument    = "document"
	FileOther       = "other"
)
