package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/models"
)

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	AssignmentID  *uint
	Status        *string
	UnmatchedOnly bool
}

// SubmissionRepository defines data operations for submissions and their
// extracted files.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndHash(ctx context.Context, assignmentID uint, hash string) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	FindBookmark(ctx context.Context, assignmentID, graderID uint) (models.Submission, error)
	GetFile(ctx context.Context, submissionID uint, relPath string) (models.SubmissionFile, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Student").
		Preload("ClaimedBy")
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// UpdateFields persists a narrow field set, used by claim and touch so
// concurrent writers on different fields do not clobber each other.
func (r *submissionRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).Preload("Files").First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndHash(ctx context.Context, assignmentID uint, hash string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("content_hash = ?", hash).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UnmatchedOnly {
		query = query.Where("student_id IS NULL").Where("status <> ?", models.StatusFlagged)
	}

	var submissions []models.Submission
	if err := query.Order("received_at ASC, id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// FindBookmark returns the grader's most recently opened in-progress
// submission within the assignment, for session resume.
func (r *submissionRepository) FindBookmark(ctx context.Context, assignmentID, graderID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("claimed_by_id = ?", graderID).
		Where("status = ?", models.StatusInProgress).
		Order("last_opened_at DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetFile(ctx context.Context, submissionID uint, relPath string) (models.SubmissionFile, error) {
	var file models.SubmissionFile
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Where("rel_path = ?", relPath).
		First(&file).Error; err != nil {
		return models.SubmissionFile{}, err
	}
	return file, nil
}
