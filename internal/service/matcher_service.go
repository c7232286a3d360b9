package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
)

// ErrSubmissionNotFound indicates the submission does not exist.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrStudentNotFound indicates the student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrStudentOutsideCourse indicates a manual match across course boundaries.
var ErrStudentOutsideCourse = errors.New("student does not belong to the assignment's course")

// Match is the outcome of automatic identity resolution.
type Match struct {
	StudentID  *uint
	Method     string
	Confidence float64
}

// MatcherService resolves submissions to roster students and serves the
// manual fallback queue.
type MatcherService interface {
	Resolve(ctx context.Context, assignmentID uint, archiveName string, files []models.SubmissionFile) (Match, error)
	ListUnmatched(ctx context.Context, assignmentID uint) ([]dto.QueueItem, error)
	ManualMatch(ctx context.Context, submissionID, studentID uint, actor Actor) error
	Quarantine(ctx context.Context, submissionID uint, reason string, actor Actor) error
}

type matcherService struct {
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	assignments repository.AssignmentRepository
	audit       AuditRecorder
	threshold   float64
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewMatcherService constructs the identity resolver. threshold is the
// minimum fuzzy-name similarity accepted as an automatic match.
func NewMatcherService(
	submissions repository.SubmissionRepository,
	students repository.StudentRepository,
	assignments repository.AssignmentRepository,
	audit AuditRecorder,
	threshold float64,
	logger zerolog.Logger,
) MatcherService {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &matcherService{
		submissions: submissions,
		students:    students,
		assignments: assignments,
		audit:       audit,
		threshold:   threshold,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "matcher_service").Logger(),
	}
}

var idTokenPattern = regexp.MustCompile(`[A-Za-z]{0,4}\d{4,12}`)

// Resolve attempts filename then metadata resolution against the course
// roster. A miss is not an error; the returned match has method "none".
func (s *matcherService) Resolve(ctx context.Context, assignmentID uint, archiveName string, files []models.SubmissionFile) (Match, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return Match{}, fmt.Errorf("load assignment %d: %w", assignmentID, err)
	}
	roster, err := s.students.ListByCourse(ctx, assignment.CourseID)
	if err != nil {
		return Match{}, fmt.Errorf("load roster for course %d: %w", assignment.CourseID, err)
	}
	if len(roster) == 0 {
		return Match{Method: models.MatchMethodNone}, nil
	}

	if match, ok := s.matchFilename(archiveName, roster); ok {
		return match, nil
	}
	if match, ok := s.matchMetadata(files, roster); ok {
		return match, nil
	}
	return Match{Method: models.MatchMethodNone}, nil
}

// matchFilename looks for an exact roster identifier embedded in the archive
// name, then falls back to fuzzy matching the student name.
func (s *matcherService) matchFilename(archiveName string, roster []models.Student) (Match, bool) {
	base := strings.TrimSuffix(path.Base(archiveName), path.Ext(archiveName))

	for _, token := range idTokenPattern.FindAllString(base, -1) {
		for i := range roster {
			if strings.EqualFold(token, roster[i].ExternalID) {
				return Match{StudentID: &roster[i].ID, Method: models.MatchMethodFilename, Confidence: 1.0}, true
			}
		}
	}

	normalized := normalizeForMatch(base)
	bestScore := 0.0
	bestIdx := -1
	for i := range roster {
		score := nameSimilarity(normalized, normalizeForMatch(roster[i].Name))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 && bestScore >= s.threshold {
		return Match{StudentID: &roster[bestIdx].ID, Method: models.MatchMethodFilename, Confidence: bestScore}, true
	}
	return Match{}, false
}

// matchMetadata scans small extracted text files for an embedded roster
// identifier, covering submissions that carry a student_id file or header.
func (s *matcherService) matchMetadata(files []models.SubmissionFile, roster []models.Student) (Match, bool) {
	const maxSniffBytes = 4096

	for _, file := range files {
		if file.IsCorrupt || file.Category != models.FileText || file.SizeBytes > maxSniffBytes {
			continue
		}
		content, err := os.ReadFile(file.CachePath)
		if err != nil {
			continue
		}
		for _, token := range idTokenPattern.FindAllString(string(content), -1) {
			for i := range roster {
				if strings.EqualFold(token, roster[i].ExternalID) {
					confidence := 0.9
					if strings.Contains(strings.ToLower(filepath.Base(file.RelPath)), "student") {
						confidence = 1.0
					}
					return Match{StudentID: &roster[i].ID, Method: models.MatchMethodMetadata, Confidence: confidence}, true
				}
			}
		}
	}
	return Match{}, false
}

func (s *matcherService) ListUnmatched(ctx context.Context, assignmentID uint) ([]dto.QueueItem, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID:  &assignmentID,
		UnmatchedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list unmatched submissions: %w", err)
	}

	items := make([]dto.QueueItem, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.NewQueueItem(submission))
	}
	return items, nil
}

// ManualMatch links a submission to a roster row. Calling it again with the
// same student reaches the same end state.
func (s *matcherService) ManualMatch(ctx context.Context, submissionID, studentID uint, actor Actor) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return fmt.Errorf("load assignment %d: %w", submission.AssignmentID, err)
	}
	if student.CourseID != assignment.CourseID {
		return ErrStudentOutsideCourse
	}

	if err := s.submissions.UpdateFields(ctx, submissionID, map[string]interface{}{
		"student_id":       studentID,
		"match_method":     models.MatchMethodManual,
		"match_confidence": 1.0,
	}); err != nil {
		return fmt.Errorf("persist manual match: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.manual_match",
		EntityType: "submission",
		EntityID:   &submissionID,
		Detail: map[string]interface{}{
			"student_id":          studentID,
			"previous_student_id": submission.StudentID,
			"previous_method":     submission.MatchMethod,
		},
	})
	return nil
}

// Quarantine parks a submission outside the active queue while keeping it
// visible. The student link stays empty and the reason lands in the notes.
func (s *matcherService) Quarantine(ctx context.Context, submissionID uint, reason string, actor Actor) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	reason = strings.TrimSpace(s.sanitizer.Sanitize(reason))
	notes := submission.Notes
	if !strings.Contains(notes, reason) {
		if notes != "" {
			notes += "\n"
		}
		notes += "quarantined: " + reason
	}

	if err := s.submissions.UpdateFields(ctx, submissionID, map[string]interface{}{
		"status": models.StatusFlagged,
		"notes":  notes,
	}); err != nil {
		return fmt.Errorf("persist quarantine: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		GraderID:   auditActorID(actor),
		Action:     "submission.quarantine",
		EntityType: "submission",
		EntityID:   &submissionID,
		Detail: map[string]interface{}{
			"reason":          reason,
			"previous_status": submission.Status,
		},
	})
	return nil
}

func normalizeForMatch(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nameSimilarity scores two normalized strings in [0,1]. A contained name
// counts as a strong match; otherwise edit distance is scaled by length.
func nameSimilarity(haystack, name string) float64 {
	if name == "" || haystack == "" {
		return 0
	}
	if strings.Contains(haystack, name) {
		return 0.95
	}
	distance := levenshtein.ComputeDistance(haystack, name)
	longest := len(haystack)
	if len(name) > longest {
		longest = len(name)
	}
	if longest == 0 {
		return 0
	}
	score := 1.0 - float64(distance)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}
