package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradehub-api/internal/archive"
	"github.com/noah-isme/gradehub-api/internal/dto"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/observability"
	"github.com/noah-isme/gradehub-api/internal/repository"
	"github.com/noah-isme/gradehub-api/pkg/preview"
	"github.com/noah-isme/gradehub-api/pkg/workbook"
)

// ErrNotSpreadsheet indicates the target file is not a spreadsheet.
var ErrNotSpreadsheet = errors.New("file is not a spreadsheet")

// ErrFileCorrupt indicates the file was flagged corrupt during intake.
var ErrFileCorrupt = errors.New("file is corrupt")

// ErrTaskNotFound indicates an unknown analysis task id.
var ErrTaskNotFound = errors.New("analysis task not found")

// WorkbookService runs spreadsheet analysis off the interactive path on a
// bounded worker pool. Full extractions are cached in redis keyed by
// (file id, content hash) and persisted as FormulaAnalysis rows; completion
// events are published for interested clients.
type WorkbookService interface {
	Analyze(ctx context.Context, submissionID uint, filePath string) (workbook.Summary, error)
	RequestFormulaMap(ctx context.Context, submissionID uint, filePath string) (dto.AnalysisTaskResponse, error)
	Task(ctx context.Context, taskID string) (dto.AnalysisTaskResponse, error)
	RunChecks(ctx context.Context, submissionID uint, payload dto.RunChecksRequest) ([]workbook.CheckResult, error)
	RenderPreview(ctx context.Context, submissionID uint, filePath string) (dto.PreviewResponse, error)
	Start(ctx context.Context)
}

type analysisTask struct {
	id       string
	fileID   uint
	path     string
	hash     string
	status   string
	result   *workbook.FormulaMap
	errorMsg string
}

type workbookService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	analyses    repository.AnalysisRepository
	redis       *redis.Client
	nats        *nats.Conn
	natsSubject string
	converter   *preview.Converter
	cacheTTL    time.Duration
	parseBudget time.Duration
	workers     int
	logger      zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*analysisTask
	queue chan *analysisTask
}

// NewWorkbookService constructs the analysis engine front end.
func NewWorkbookService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	analyses repository.AnalysisRepository,
	redisClient *redis.Client,
	natsConn *nats.Conn,
	converter *preview.Converter,
	cacheTTL, parseBudget time.Duration,
	workers int,
	logger zerolog.Logger,
) WorkbookService {
	if workers <= 0 {
		workers = 2
	}
	if parseBudget <= 0 {
		parseBudget = 30 * time.Second
	}
	return &workbookService{
		submissions: submissions,
		assignments: assignments,
		analyses:    analyses,
		redis:       redisClient,
		nats:        natsConn,
		natsSubject: "gradehub.analysis.completed",
		converter:   converter,
		cacheTTL:    cacheTTL,
		parseBudget: parseBudget,
		workers:     workers,
		logger:      logger.With().Str("component", "workbook_service").Logger(),
		tasks:       map[string]*analysisTask{},
		queue:       make(chan *analysisTask, 64),
	}
}

// Start launches the analysis workers. They exit when ctx is done.
func (s *workbookService) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-s.queue:
					s.runTask(ctx, task)
				}
			}
		}()
	}
}

// Analyze is the coarse synchronous pass, cheap enough for interactive use.
func (s *workbookService) Analyze(ctx context.Context, submissionID uint, filePath string) (workbook.Summary, error) {
	file, err := s.spreadsheetFile(ctx, submissionID, filePath)
	if err != nil {
		return workbook.Summary{}, err
	}

	parseCtx, cancel := context.WithTimeout(ctx, s.parseBudget)
	defer cancel()
	return workbook.Analyze(parseCtx, file.CachePath)
}

// RequestFormulaMap returns the cached map immediately when fresh, or
// enqueues an extraction task and hands back its id. A re-request for a
// changed file simply supersedes the stored result when it completes.
func (s *workbookService) RequestFormulaMap(ctx context.Context, submissionID uint, filePath string) (dto.AnalysisTaskResponse, error) {
	file, err := s.spreadsheetFile(ctx, submissionID, filePath)
	if err != nil {
		return dto.AnalysisTaskResponse{}, err
	}
	hash, err := archive.HashFile(file.CachePath)
	if err != nil {
		return dto.AnalysisTaskResponse{}, fmt.Errorf("hash workbook: %w", err)
	}

	if cached, ok := s.cachedMap(ctx, file.ID, hash); ok {
		return dto.AnalysisTaskResponse{
			TaskID: uuid.NewString(),
			Status: dto.TaskStatusDone,
			Cached: true,
			Result: cached,
		}, nil
	}

	task := &analysisTask{
		id:     uuid.NewString(),
		fileID: file.ID,
		path:   file.CachePath,
		hash:   hash,
		status: dto.TaskStatusPending,
	}
	s.mu.Lock()
	s.tasks[task.id] = task
	s.mu.Unlock()

	select {
	case s.queue <- task:
	default:
		s.mu.Lock()
		delete(s.tasks, task.id)
		s.mu.Unlock()
		return dto.AnalysisTaskResponse{}, fmt.Errorf("analysis queue is full")
	}

	return dto.AnalysisTaskResponse{TaskID: task.id, Status: dto.TaskStatusPending}, nil
}

func (s *workbookService) Task(_ context.Context, taskID string) (dto.AnalysisTaskResponse, error) {
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok {
		return dto.AnalysisTaskResponse{}, ErrTaskNotFound
	}

	response := dto.AnalysisTaskResponse{TaskID: task.id, Status: task.status, Error: task.errorMsg}
	if task.status == dto.TaskStatusDone {
		response.Result = task.result
	}
	return response, nil
}

// RunChecks evaluates range checks against the file's formula map. With no
// explicit checks the assignment rubric's checks are used. Evaluation is a
// pure read over extracted data.
func (s *workbookService) RunChecks(ctx context.Context, submissionID uint, payload dto.RunChecksRequest) ([]workbook.CheckResult, error) {
	file, err := s.spreadsheetFile(ctx, submissionID, payload.FilePath)
	if err != nil {
		return nil, err
	}

	checks := payload.Checks
	if len(checks) == 0 {
		submission, err := s.submissions.GetByID(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
		if err != nil {
			return nil, err
		}
		rubric, err := models.ParseRubric(assignment.Rubric)
		if err != nil {
			return nil, fmt.Errorf("parse rubric: %w", err)
		}
		checks = rubric.AllChecks()
	}

	hash, err := archive.HashFile(file.CachePath)
	if err != nil {
		return nil, fmt.Errorf("hash workbook: %w", err)
	}

	formulaMap, ok := s.cachedMap(ctx, file.ID, hash)
	if !ok {
		parseCtx, cancel := context.WithTimeout(ctx, s.parseBudget)
		defer cancel()
		extracted, err := workbook.Extract(parseCtx, file.CachePath)
		if err != nil {
			return nil, err
		}
		formulaMap = &extracted
		s.storeResult(ctx, file.ID, hash, extracted)
	}

	converted := make([]workbook.Check, 0, len(checks))
	for _, check := range checks {
		converted = append(converted, workbook.Check{
			Type:      check.Type,
			Sheet:     check.Sheet,
			Range:     check.Range,
			Functions: check.Functions,
		})
	}
	return workbook.Evaluate(*formulaMap, converted), nil
}

// RenderPreview converts the file to a PDF next to its cached copy. Best
// effort; failures never affect grading state.
func (s *workbookService) RenderPreview(ctx context.Context, submissionID uint, filePath string) (dto.PreviewResponse, error) {
	file, err := s.cachedFile(ctx, submissionID, filePath)
	if err != nil {
		return dto.PreviewResponse{}, err
	}
	if file.Category != models.FileSpreadsheet && file.Category != models.FileDocument {
		return dto.PreviewResponse{}, fmt.Errorf("no preview renderer for category %q", file.Category)
	}
	if s.converter == nil {
		return dto.PreviewResponse{}, preview.ErrConverterUnavailable
	}

	pdfPath, err := s.converter.ToPDF(ctx, file.CachePath)
	if err != nil {
		return dto.PreviewResponse{}, err
	}
	return dto.PreviewResponse{PDFPath: pdfPath}, nil
}

func (s *workbookService) runTask(ctx context.Context, task *analysisTask) {
	started := time.Now()
	s.setStatus(task, dto.TaskStatusRunning)

	parseCtx, cancel := context.WithTimeout(ctx, s.parseBudget)
	defer cancel()
	result, err := workbook.Extract(parseCtx, task.path)
	if err != nil {
		s.mu.Lock()
		task.status = dto.TaskStatusFailed
		task.errorMsg = err.Error()
		s.mu.Unlock()
		observability.AnalysisTasks().WithLabelValues("failed").Inc()
		s.publishCompletion(task)
		return
	}

	s.storeResult(ctx, task.fileID, task.hash, result)

	s.mu.Lock()
	task.status = dto.TaskStatusDone
	task.result = &result
	s.mu.Unlock()

	observability.AnalysisTasks().WithLabelValues("done").Inc()
	observability.AnalysisDuration().Observe(time.Since(started).Seconds())
	s.publishCompletion(task)
}

// storeResult persists the analysis row (full replace) and refreshes the
// redis cache.
func (s *workbookService) storeResult(ctx context.Context, fileID uint, hash string, result workbook.FormulaMap) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Uint("file_id", fileID).Msg("failed to encode analysis payload")
		return
	}
	hiddenSheets, _ := json.Marshal(result.HiddenSheets)

	analysis := models.FormulaAnalysis{
		SubmissionFileID: fileID,
		ContentHash:      hash,
		SheetCount:       len(result.Sheets),
		FormulaCellCount: result.FormulaCellCount,
		HasPivot:         result.HasPivot,
		HasCharts:        result.HasCharts,
		HiddenSheets:     datatypes.JSON(hiddenSheets),
		Payload:          datatypes.JSON(payload),
	}
	if err := s.analyses.Replace(ctx, &analysis); err != nil {
		s.logger.Error().Err(err).Uint("file_id", fileID).Msg("failed to persist analysis")
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, s.cacheKey(fileID, hash), payload, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache analysis")
		}
	}
}

func (s *workbookService) cachedMap(ctx context.Context, fileID uint, hash string) (*workbook.FormulaMap, bool) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, s.cacheKey(fileID, hash)).Bytes()
		if err == nil {
			var cached workbook.FormulaMap
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, true
			}
		}
	}

	analysis, err := s.analyses.GetByFileID(ctx, fileID)
	if err != nil || analysis.ContentHash != hash {
		return nil, false
	}
	var cached workbook.FormulaMap
	if err := json.Unmarshal(analysis.Payload, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (s *workbookService) publishCompletion(task *analysisTask) {
	if s.nats == nil {
		return
	}
	event, err := json.Marshal(map[string]interface{}{
		"task_id": task.id,
		"file_id": task.fileID,
		"status":  task.status,
	})
	if err != nil {
		return
	}
	if err := s.nats.Publish(s.natsSubject, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish analysis completion")
	}
}

func (s *workbookService) setStatus(task *analysisTask, status string) {
	s.mu.Lock()
	task.status = status
	s.mu.Unlock()
}

func (s *workbookService) cacheKey(fileID uint, hash string) string {
	return fmt.Sprintf("gradehub:formulamap:%d:%s", fileID, hash)
}

func (s *workbookService) spreadsheetFile(ctx context.Context, submissionID uint, filePath string) (models.SubmissionFile, error) {
	file, err := s.cachedFile(ctx, submissionID, filePath)
	if err != nil {
		return models.SubmissionFile{}, err
	}
	if file.Category != models.FileSpreadsheet {
		return models.SubmissionFile{}, ErrNotSpreadsheet
	}
	if file.IsCorrupt {
		return models.SubmissionFile{}, ErrFileCorrupt
	}
	return file, nil
}

func (s *workbookService) cachedFile(ctx context.Context, submissionID uint, filePath string) (models.SubmissionFile, error) {
	file, err := s.submissions.GetFile(ctx, submissionID, filePath)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SubmissionFile{}, ErrFileNotFound
		}
		return models.SubmissionFile{}, err
	}
	return file, nil
}
