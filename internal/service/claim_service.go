package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrInvalidTransition indicates a disallowed status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrClaimedByOther indicates a release attempt on someone else's claim.
var ErrClaimedByOther = errors.New("submission is claimed by another grader")

// ClaimService coordinates advisory claims and the submission status state
// machine. Claims warn, they do not lock: a takeover succeeds and is
// recorded in the audit log so disputes can be reconstructed.
type ClaimService interface {
	Claim(ctx context.Context, submissionID uint, actor Actor) error
	Release(ctx context.Context, submissionID uint, actor Actor) error
	ForceClaim(ctx context.Context, submissionID uint, actor Actor) error
	Touch(ctx context.Context, submissionID uint) error
	UpdateStatus(ctx context.Context, submissionID uint, newStatus string, actor Actor) error
	Bookmark(ctx context.Context, assignmentID uint, actor Actor) (dto.BookmarkResponse, error)
}

type claimService struct {
	submissions repository.SubmissionRepository
	audit       AuditRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewClaimService constructs the claim coordinator.
func NewClaimService(submissions repository.SubmissionRepository, audit AuditRecorder, logger zerolog.Logger) ClaimService {
	return &claimService{
		submissions: submissions,
		audit:       audit,
		logger:      logger.With().Str("component", "claim_service").Logger(),
		now:         time.Now,
	}
}

// Claim marks the submission as being reviewed by the actor. An existing
// claim by another grader is overwritten, not rejected; the previous
// claimant lands in the audit detail so takeovers stay detectable.
// Re-claiming a done or flagged submission re-opens it to in_progress.
func (s *claimService) Claim(ctx context.Context, submissionID uint, actor Actor) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	now := s.now()
	fields := map[string]interface{}{
		"claimed_by_id":  actor.ID,
		"claimed_at":     now,
		"last_opened_at": now,
	}
	if status, ok := reopenedStatus(submission.Status); ok {
		fields["status"] = status
	}
	if err := s.submissions.UpdateFields(ctx, submissionID, fields); err != nil {
		return fmt.Errorf("persist claim: %w", err)
	}

	detail := map[string]interface{}{}
	if submission.ClaimedByID != nil && *submission.ClaimedByID != actor.ID {
		detail["previous_grader_id"] = *submission.ClaimedByID
		s.logger.Info().
			Uint("submission_id", submissionID).
			Uint("previous_grader_id", *submission.ClaimedByID).
			Uint("grader_id", actor.ID).
			Msg("claim overwritten")
	}
	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.claim",
		EntityType: "submission",
		EntityID:   &submissionID,
		Detail:     detail,
	})
	return nil
}

// Release drops the actor's own claim. Releasing someone else's claim is
// rejected; ForceClaim exists for deliberate takeover.
func (s *claimService) Release(ctx context.Context, submissionID uint, actor Actor) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if submission.ClaimedByID == nil {
		return nil
	}
	if *submission.ClaimedByID != actor.ID {
		return ErrClaimedByOther
	}

	if err := s.submissions.UpdateFields(ctx, submissionID, map[string]interface{}{
		"claimed_by_id": nil,
		"claimed_at":    nil,
	}); err != nil {
		return fmt.Errorf("persist release: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.release",
		EntityType: "submission",
		EntityID:   &submissionID,
	})
	return nil
}

// ForceClaim takes over a submission regardless of the current claimant.
func (s *claimService) ForceClaim(ctx context.Context, submissionID uint, actor Actor) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	now := s.now()
	fields := map[string]interface{}{
		"claimed_by_id":  actor.ID,
		"claimed_at":     now,
		"last_opened_at": now,
	}
	if status, ok := reopenedStatus(submission.Status); ok {
		fields["status"] = status
	}
	if err := s.submissions.UpdateFields(ctx, submissionID, fields); err != nil {
		return fmt.Errorf("persist force claim: %w", err)
	}

	detail := map[string]interface{}{}
	if submission.ClaimedByID != nil {
		detail["previous_grader_id"] = *submission.ClaimedByID
	}
	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.force_claim",
		EntityType: "submission",
		EntityID:   &submissionID,
		Detail:     detail,
	})
	return nil
}

// Touch refreshes last_opened_at without re-claiming, keeping session
// resume state fresh.
func (s *claimService) Touch(ctx context.Context, submissionID uint) error {
	if _, err := s.getSubmission(ctx, submissionID); err != nil {
		return err
	}
	if err := s.submissions.UpdateFields(ctx, submissionID, map[string]interface{}{
		"last_opened_at": s.now(),
	}); err != nil {
		return fmt.Errorf("persist touch: %w", err)
	}
	return nil
}

// reopenedStatus maps the current status to the one a claim should apply.
// Claiming re-opens unstarted, done and flagged submissions to in_progress;
// error stays put until a grader resolves it through set-status.
func reopenedStatus(current string) (string, bool) {
	if current == models.StatusInProgress {
		return "", false
	}
	if !models.ValidTransition(current, models.StatusInProgress) {
		return "", false
	}
	return models.StatusInProgress, true
}

// UpdateStatus validates and applies a state-machine transition. An illegal
// transition leaves the stored status untouched.
func (s *claimService) UpdateStatus(ctx context.Context, submissionID uint, newStatus string, actor Actor) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if !models.ValidTransition(submission.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, submission.Status, newStatus)
	}
	if submission.Status == newStatus {
		return nil
	}

	if err := s.submissions.UpdateFields(ctx, submissionID, map[string]interface{}{
		"status": newStatus,
	}); err != nil {
		return fmt.Errorf("persist status change: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.status_change",
		EntityType: "submission",
		EntityID:   &submissionID,
		Detail: map[string]interface{}{
			"old_status": submission.Status,
			"new_status": newStatus,
		},
	})
	return nil
}

// Bookmark finds the actor's most recently opened in-progress submission.
func (s *claimService) Bookmark(ctx context.Context, assignmentID uint, actor Actor) (dto.BookmarkResponse, error) {
	submission, err := s.submissions.FindBookmark(ctx, assignmentID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BookmarkResponse{}, nil
		}
		return dto.BookmarkResponse{}, err
	}
	return dto.BookmarkResponse{SubmissionID: &submission.ID}, nil
}

func (s *claimService) getSubmission(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}
