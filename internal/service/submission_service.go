package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrFileNotFound indicates the requested file is not part of the submission.
var ErrFileNotFound = errors.New("submission file not found")

// SubmissionService serves the grading queue and submission details.
type SubmissionService interface {
	List(ctx context.Context, assignmentID uint, status *string) ([]dto.QueueItem, error)
	Detail(ctx context.Context, submissionID uint) (dto.SubmissionDetail, error)
	ReadFile(ctx context.Context, submissionID uint, relPath string) ([]byte, models.SubmissionFile, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
}

// NewSubmissionService constructs the submission query service.
func NewSubmissionService(submissions repository.SubmissionRepository, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) List(ctx context.Context, assignmentID uint, status *string) ([]dto.QueueItem, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID: &assignmentID,
		Status:       status,
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	items := make([]dto.QueueItem, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.NewQueueItem(submission))
	}
	return items, nil
}

func (s *submissionService) Detail(ctx context.Context, submissionID uint) (dto.SubmissionDetail, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetail{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetail{}, err
	}
	return dto.NewSubmissionDetail(submission), nil
}

// ReadFile returns the raw cached bytes of one extracted file. Decoding per
// the recorded encoding is left to viewers.
func (s *submissionService) ReadFile(ctx context.Context, submissionID uint, relPath string) ([]byte, models.SubmissionFile, error) {
	file, err := s.submissions.GetFile(ctx, submissionID, relPath)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.SubmissionFile{}, ErrFileNotFound
		}
		return nil, models.SubmissionFile{}, err
	}

	content, err := os.ReadFile(file.CachePath)
	if err != nil {
		return nil, file, fmt.Errorf("read cached file: %w", err)
	}
	return content, file, nil
}
