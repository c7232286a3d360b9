package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// ErrTotalFinalized indicates the grade total is frozen.
var ErrTotalFinalized = errors.New("grade total is finalized")

// GradeRepository persists per-question grades and the derived totals.
// Save recomputes the total in the same transaction as the grade write so
// the total/sum invariant holds after every mutation.
type GradeRepository interface {
	Save(ctx context.Context, grade *models.Grade) error
	List(ctx context.Context, assignmentID, studentID uint) ([]models.Grade, error)
	GetTotal(ctx context.Context, assignmentID, studentID uint) (models.GradeTotal, error)
	Finalize(ctx context.Context, assignmentID, studentID, graderID uint) (models.GradeTotal, error)
	Unfinalize(ctx context.Context, assignmentID, studentID uint) (models.GradeTotal, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Grade, error)
	ListTotalsByAssignment(ctx context.Context, assignmentID uint) ([]models.GradeTotal, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Save(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "comment", "selected_presets", "edited_by_id", "updated_at",
			}),
		}).Create(grade).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, grade.AssignmentID, grade.StudentID)
	})
}

// recomputeTotal refreshes the derived total unless it is finalized.
func recomputeTotal(tx *gorm.DB, assignmentID, studentID uint) error {
	var total models.GradeTotal
	err := tx.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && total.Finalized {
		return nil
	}

	var sum float64
	if err := tx.Model(&models.Grade{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Select("COALESCE(SUM(score), 0)").
		Scan(&sum).Error; err != nil {
		return err
	}

	total.AssignmentID = assignmentID
	total.StudentID = studentID
	total.TotalScore = sum
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_score", "updated_at"}),
	}).Create(&total).Error
}

func (r *gradeRepository) List(ctx context.Context, assignmentID, studentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Order("question_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) GetTotal(ctx context.Context, assignmentID, studentID uint) (models.GradeTotal, error) {
	var total models.GradeTotal
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&total).Error; err != nil {
		return models.GradeTotal{}, err
	}
	return total, nil
}

func (r *gradeRepository) Finalize(ctx context.Context, assignmentID, studentID, graderID uint) (models.GradeTotal, error) {
	var total models.GradeTotal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recomputeTotal(tx, assignmentID, studentID); err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
			First(&total).Error; err != nil {
			return err
		}
		now := time.Now()
		total.Finalized = true
		total.FinalizedByID = &graderID
		total.FinalizedAt = &now
		return tx.Save(&total).Error
	})
	if err != nil {
		return models.GradeTotal{}, err
	}
	return total, nil
}

func (r *gradeRepository) Unfinalize(ctx context.Context, assignmentID, studentID uint) (models.GradeTotal, error) {
	var total models.GradeTotal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
			First(&total).Error; err != nil {
			return err
		}
		total.Finalized = false
		total.FinalizedByID = nil
		total.FinalizedAt = nil
		if err := tx.Save(&total).Error; err != nil {
			return err
		}
		// Catch up on grade edits made while the total was frozen.
		if err := recomputeTotal(tx, assignmentID, studentID); err != nil {
			return err
		}
		return tx.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
			First(&total).Error
	})
	if err != nil {
		return models.GradeTotal{}, err
	}
	return total, nil
}

func (r *gradeRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) ListTotalsByAssignment(ctx context.Context, assignmentID uint) ([]models.GradeTotal, error) {
	var totals []models.GradeTotal
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Find(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
