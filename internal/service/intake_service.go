package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/archive"
	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/observability"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// IntakeService turns raw archive paths into deduplicated, classified
// submissions and hands each new one to the identity resolver.
type IntakeService interface {
	Import(ctx context.Context, assignmentID uint, paths []string, actor Actor) ([]dto.ImportResult, error)
}

type intakeService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	matcher     MatcherService
	audit       AuditRecorder
	cacheRoot   string
	limits      archive.Limits
	concurrency int
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	// dedupMu serializes the (assignment, hash) existence checks and the
	// insert so parallel workers cannot race in duplicate rows. Extraction
	// runs outside it.
	dedupMu sync.Mutex
}

func (s *intakeService) lookupDuplicate(ctx context.Context, assignmentID uint, hash string) (models.Submission, error) {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()
	return s.submissions.GetByAssignmentAndHash(ctx, assignmentID, hash)
}

// NewIntakeService constructs the intake pipeline.
func NewIntakeService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	students repository.StudentRepository,
	matcher MatcherService,
	audit AuditRecorder,
	cacheRoot string,
	limits archive.Limits,
	concurrency int,
	logger zerolog.Logger,
) IntakeService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &intakeService{
		submissions: submissions,
		assignments: assignments,
		students:    students,
		matcher:     matcher,
		audit:       audit,
		cacheRoot:   cacheRoot,
		limits:      limits,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "intake_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gradehub-api/internal/service/intake"),
		now:         time.Now,
	}
}

// Import processes a batch of archives. Extraction and hashing run in
// parallel per archive; results come back in input order. An archive that
// fails never aborts the rest of the batch.
func (s *intakeService) Import(ctx context.Context, assignmentID uint, paths []string, actor Actor) ([]dto.ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "intake.import")
	span.SetAttributes(
		attribute.Int64("intake.assignment_id", int64(assignmentID)),
		attribute.Int("intake.archive_count", len(paths)),
	)
	defer span.End()

	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	results := make([]dto.ImportResult, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for worker := 0; worker < s.concurrency; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.importOne(ctx, assignmentID, paths[idx], actor)
			}
		}()
	}
	for idx := range paths {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

func (s *intakeService) importOne(ctx context.Context, assignmentID uint, archivePath string, actor Actor) dto.ImportResult {
	started := time.Now()
	filename := filepath.Base(archivePath)
	result := dto.ImportResult{Filename: filename}

	finish := func(status string) dto.ImportResult {
		result.Status = status
		observability.IntakeArchives().WithLabelValues(status).Inc()
		observability.IntakeDuration().Observe(time.Since(started).Seconds())
		return result
	}

	hash, err := archive.HashFile(archivePath)
	if err != nil {
		result.Message = fmt.Sprintf("failed to hash archive: %v", err)
		return finish(dto.ImportStatusError)
	}

	// Cheap duplicate check before doing any extraction work. Only the
	// lookup itself runs under the lock; extraction stays parallel.
	switch existing, err := s.lookupDuplicate(ctx, assignmentID, hash); {
	case err == nil:
		result.SubmissionID = &existing.ID
		result.Message = "identical archive already imported"
		return finish(dto.ImportStatusDuplicate)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		result.Message = fmt.Sprintf("duplicate lookup failed: %v", err)
		return finish(dto.ImportStatusError)
	}

	// The cache dir is keyed by content hash, so a same-batch duplicate
	// extracts the same bytes into the same place. That makes the loser of
	// the row-creation race below harmless; nothing to clean up.
	cacheDir := filepath.Join(s.cacheRoot, fmt.Sprintf("assignment_%d", assignmentID), hash)
	entries, extractErr := archive.Extract(archivePath, cacheDir, s.limits)
	if extractErr != nil && len(entries) == 0 {
		result.Message = fmt.Sprintf("extraction failed: %v", extractErr)
		return finish(dto.ImportStatusError)
	}

	submission := models.Submission{
		AssignmentID: assignmentID,
		ArchivePath:  archivePath,
		ContentHash:  hash,
		CacheDir:     cacheDir,
		ReceivedAt:   s.now(),
		MatchMethod:  models.MatchMethodNone,
		Status:       models.StatusUnstarted,
		Files:        make([]models.SubmissionFile, 0, len(entries)),
	}
	for _, entry := range entries {
		submission.Files = append(submission.Files, models.SubmissionFile{
			RelPath:   entry.RelPath,
			CachePath: entry.CachePath,
			Category:  entry.Category,
			MIME:      entry.MIME,
			SizeBytes: entry.SizeBytes,
			IsCorrupt: entry.IsCorrupt,
			Encoding:  entry.Encoding,
		})
	}
	// Re-check and insert under the lock; a same-batch duplicate that
	// extracted concurrently resolves to the winner's row here.
	s.dedupMu.Lock()
	existing, err := s.submissions.GetByAssignmentAndHash(ctx, assignmentID, hash)
	if err == nil {
		s.dedupMu.Unlock()
		result.SubmissionID = &existing.ID
		result.Message = "identical archive already imported"
		return finish(dto.ImportStatusDuplicate)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.dedupMu.Unlock()
		result.Message = fmt.Sprintf("duplicate lookup failed: %v", err)
		return finish(dto.ImportStatusError)
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		s.dedupMu.Unlock()
		result.Message = fmt.Sprintf("failed to persist submission: %v", err)
		return finish(dto.ImportStatusError)
	}
	s.dedupMu.Unlock()

	result.SubmissionID = &submission.ID
	if extractErr != nil {
		result.Message = fmt.Sprintf("partial extraction: %v", extractErr)
	}

	s.resolveIdentity(ctx, &submission, &result)

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.imported",
		EntityType: "submission",
		EntityID:   &submission.ID,
		Detail: map[string]interface{}{
			"assignment_id": assignmentID,
			"archive":       filename,
			"content_hash":  hash,
			"file_count":    len(submission.Files),
			"match_method":  submission.MatchMethod,
		},
	})

	return finish(dto.ImportStatusImported)
}

// resolveIdentity runs the matcher synchronously for the freshly imported
// submission and persists the outcome.
func (s *intakeService) resolveIdentity(ctx context.Context, submission *models.Submission, result *dto.ImportResult) {
	match, err := s.matcher.Resolve(ctx, submission.AssignmentID, result.Filename, submission.Files)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("identity resolution failed")
		return
	}
	if match.StudentID == nil {
		return
	}

	if err := s.submissions.UpdateFields(ctx, submission.ID, map[string]interface{}{
		"student_id":       *match.StudentID,
		"match_method":     match.Method,
		"match_confidence": match.Confidence,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist identity match")
		return
	}
	submission.StudentID = match.StudentID
	submission.MatchMethod = match.Method
	submission.MatchConfidence = match.Confidence

	if student, err := s.students.GetByID(ctx, *match.StudentID); err == nil {
		result.StudentID = &student.ExternalID
	}
}
