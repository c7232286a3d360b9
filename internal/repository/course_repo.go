package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// CourseRepository defines data operations for courses and graders.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	List(ctx context.Context) ([]models.Course, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	CreateGrader(ctx context.Context, grader *models.Grader) error
	ListGraders(ctx context.Context) ([]models.Grader, error)
	GetGrader(ctx context.Context, id uint) (models.Grader, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates the repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) List(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) CreateGrader(ctx context.Context, grader *models.Grader) error {
	return r.db.WithContext(ctx).Create(grader).Error
}

func (r *courseRepository) ListGraders(ctx context.Context) ([]models.Grader, error) {
	var graders []models.Grader
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&graders).Error; err != nil {
		return nil, err
	}
	return graders, nil
}

func (r *courseRepository) GetGrader(ctx context.Context, id uint) (models.Grader, error) {
	var grader models.Grader
	if err := r.db.WithContext(ctx).First(&grader, id).Error; err != nil {
		return models.Grader{}, err
	}
	return grader, nil
}
