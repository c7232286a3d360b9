package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// AnalysisRepository persists workbook analysis results, one row per file.
type AnalysisRepository interface {
	Replace(ctx context.Context, analysis *models.FormulaAnalysis) error
	GetByFileID(ctx context.Context, fileID uint) (models.FormulaAnalysis, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository instantiates the repository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

// Replace swaps the stored analysis for the file wholesale. Results are
// never merged; a re-analysis supersedes whatever was there.
func (r *analysisRepository) Replace(ctx context.Context, analysis *models.FormulaAnalysis) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_file_id = ?", analysis.SubmissionFileID).
			Delete(&models.FormulaAnalysis{}).Error; err != nil {
			return err
		}
		return tx.Create(analysis).Error
	})
}

func (r *analysisRepository) GetByFileID(ctx context.Context, fileID uint) (models.FormulaAnalysis, error) {
	var analysis models.FormulaAnalysis
	if err := r.db.WithContext(ctx).
		Where("submission_file_id = ?", fileID).
		First(&analysis).Error; err != nil {
		return models.FormulaAnalysis{}, err
	}
	return analysis, nil
}
