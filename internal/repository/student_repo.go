package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// StudentRepository persists roster rows.
type StudentRepository interface {
	UpsertBatch(ctx context.Context, students []models.Student) (int64, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Student, error)
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByExternalID(ctx context.Context, courseID uint, externalID string) (models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

// UpsertBatch inserts or refreshes roster rows keyed on (course, student id).
func (r *studentRepository) UpsertBatch(ctx context.Context, students []models.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "section", "extra", "updated_at"}),
	}).Create(&students)
	return result.RowsAffected, result.Error
}

func (r *studentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("name ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByExternalID(ctx context.Context, courseID uint, externalID string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Where("external_id = ?", externalID).
		First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}
