package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"question-bank-backend/config"
	"question-bank-backend/db/models"
	"question-bank-backend/uploads/repositories"
	"question-bank-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrNotFound      = errors.New("upload job not found")
	ErrForbidden     = errors.New("upload job belongs to a different owner")
	ErrConflict      = errors.New("an identical question already exists")
	ErrStorage       = errors.New("object storage is unavailable")
)

const (
	// MaxUploadBytes caps the accepted workbook size at 10 MB.
	MaxUploadBytes = 10 << 20

	sourceKeyPrefix = "BulkUploadRequest"
	resultKeyPrefix = "BulkUploadResponse"

	// errorDetailsCap bounds the error sample persisted on the job record.
	errorDetailsCap = 100
)

var allowedExtensions = map[string]bool{".xlsx": true, ".xls": true}

// Committer persists one validated row in its own transaction.
type Committer interface {
	Commit(ctx context.Context, rec *NormalizedRecord) (string, error)
}

// CommitterFactory builds a per-job committer carrying that job's caches.
type CommitterFactory interface {
	NewCommitter(owner models.OwnerContext, createdBy string) Committer
}

// Dispatcher hands a queued job to the executor pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// CancelFlags is the cooperative cancellation channel between the API and a
// running worker.
type CancelFlags interface {
	Set(ctx context.Context, jobID uuid.UUID) error
	IsSet(ctx context.Context, jobID uuid.UUID) (bool, error)
	Clear(ctx context.Context, jobID uuid.UUID) error
}

// QuestionIndexer feeds committed questions into the search index. Indexing
// failures are logged and never fail the row.
type QuestionIndexer interface {
	IndexQuestion(orgID uuid.UUID, questionCode string, rec *NormalizedRecord) error
}

// Mailer notifies the uploader when a job finishes with errors.
type Mailer interface {
	SendJobCompletionEmail(job *models.UploadJob) error
}

// JobManager owns the upload job lifecycle: submission, the row-processing
// loop, cancellation, and the read-side status projection.
type JobManager struct {
	jobs       repositories.JobRepository
	schema     *Schema
	validator  *Validator
	committers CommitterFactory
	storage    utils.FileStorage
	dispatcher Dispatcher
	cancels    CancelFlags

	indexer QuestionIndexer
	mailer  Mailer
}

func NewJobManager(
	jobs repositories.JobRepository,
	schema *Schema,
	validator *Validator,
	committers CommitterFactory,
	storage utils.FileStorage,
	dispatcher Dispatcher,
	cancels CancelFlags,
) *JobManager {
	return &JobManager{
		jobs:       jobs,
		schema:     schema,
		validator:  validator,
		committers: committers,
		storage:    storage,
		dispatcher: dispatcher,
		cancels:    cancels,
	}
}

// WithIndexer attaches an optional search indexer.
func (m *JobManager) WithIndexer(indexer QuestionIndexer) *JobManager {
	m.indexer = indexer
	return m
}

// WithMailer attaches an optional completion mailer.
func (m *JobManager) WithMailer(mailer Mailer) *JobManager {
	m.mailer = mailer
	return m
}

// Schema exposes the registry this manager validates against.
func (m *JobManager) Schema() *Schema {
	return m.schema
}

// Submit validates the upload eagerly, stores the source bytes, creates the
// job in queued state and hands it to the executor pool. It never waits on
// row processing.
func (m *JobManager) Submit(ctx context.Context, filename string, size int64, file io.Reader, owner models.OwnerContext) (*models.UploadJob, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q, expected .xlsx or .xls", ErrInvalidUpload, ext)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if size > MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds the %d MB limit", ErrInvalidUpload, MaxUploadBytes/(1<<20))
	}

	jobID := uuid.New()
	sourceKey := fmt.Sprintf("%s/%s/%s", sourceKeyPrefix, jobID, filepath.Base(filename))
	if _, err := m.storage.UploadFileFromReader(file, sourceKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	job := &models.UploadJob{
		ID:             jobID,
		Filename:       filepath.Base(filename),
		Status:         models.JobStatusQueued,
		UploadedBy:     owner.UserEmail,
		OrganizationID: owner.OrganizationID,
		SourceFileRef:  utils.StringPtr(sourceKey),
	}
	if _, err := m.jobs.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create upload job: %w", err)
	}

	if err := m.dispatcher.Dispatch(ctx, jobID); err != nil {
		// The job exists but will never run; finalize it so polling clients
		// are not left watching a queued job forever.
		summary := "failed to enqueue job for processing"
		if _, ferr := m.jobs.FinishJob(jobID, models.JobStatusFailed, &summary, nil); ferr != nil {
			config.Logger.Error("Failed to finalize undispatchable job",
				zap.String("job_id", jobID.String()), zap.Error(ferr))
		}
		config.Logger.Error("Failed to dispatch upload job",
			zap.String("job_id", jobID.String()), zap.Error(err))
		job.Status = models.JobStatusFailed
		job.ErrorSummary = &summary
	}

	return job, nil
}

// GetStatus returns the job projection for polling. Organizational isolation
// is enforced here, not only during validation.
func (m *JobManager) GetStatus(jobID uuid.UUID, owner models.OwnerContext) (*models.UploadJob, error) {
	job, err := m.jobs.GetJobByID(jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !m.ownerMatches(job, owner) {
		return nil, ErrForbidden
	}
	return job, nil
}

// GetRowOutcomes returns the per-row outcomes in row order.
func (m *JobManager) GetRowOutcomes(jobID uuid.UUID, owner models.OwnerContext) ([]models.RowOutcome, error) {
	if _, err := m.GetStatus(jobID, owner); err != nil {
		return nil, err
	}
	return m.jobs.GetRowOutcomes(jobID)
}

// ListJobs lists the organization's jobs with optional status, filename and
// uploader filters.
func (m *JobManager) ListJobs(owner models.OwnerContext, pageSize, offset int, filters map[string]string) ([]models.UploadJob, int64, error) {
	return m.jobs.GetFilteredJobs(owner.OrganizationID, pageSize, offset, filters)
}

// Cancel requests cooperative cancellation. Cancelling an already terminal
// job is a no-op that reports the existing state.
func (m *JobManager) Cancel(ctx context.Context, jobID uuid.UUID, owner models.OwnerContext) (*models.UploadJob, error) {
	job, err := m.GetStatus(jobID, owner)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	// The flag covers a worker that has already picked the job up; the
	// guarded update covers a job still sitting in the queue.
	if err := m.cancels.Set(ctx, jobID); err != nil {
		return nil, fmt.Errorf("failed to set cancellation flag: %w", err)
	}
	if _, err := m.jobs.CancelIfQueued(jobID); err != nil {
		return nil, err
	}

	return m.jobs.GetJobByID(jobID)
}

// GetTemplate produces the upload template workbook.
func (m *JobManager) GetTemplate() (*bytes.Buffer, error) {
	return GenerateTemplate(m.schema)
}

// GetResultArtifact streams the result workbook for a terminal job. The
// reference is stable, so repeated calls return the same artifact.
func (m *JobManager) GetResultArtifact(jobID uuid.UUID, owner models.OwnerContext) (io.ReadCloser, *models.UploadJob, error) {
	job, err := m.GetStatus(jobID, owner)
	if err != nil {
		return nil, nil, err
	}
	if job.ResultArtifactRef == nil {
		return nil, nil, fmt.Errorf("%w: job has no result artifact", ErrNotFound)
	}
	rc, err := m.storage.DownloadFile(*job.ResultArtifactRef)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return rc, job, nil
}

// ProcessJob is the worker entry point: it owns the job for its full run.
// The executor pool guarantees at most one active call per job id.
func (m *JobManager) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.jobs.GetJobByID(jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			// Purged by retention before the task ran; nothing to do.
			return nil
		}
		return err
	}

	ok, err := m.jobs.MarkRunning(jobID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// Cancelled before dispatch, or another worker already owns it.
		config.Logger.Info("Skipping job not in queued state",
			zap.String("job_id", jobID.String()), zap.String("status", string(job.Status)))
		return nil
	}

	defer func() {
		if err := m.cancels.Clear(ctx, jobID); err != nil {
			config.Logger.Warn("Failed to clear cancellation flag",
				zap.String("job_id", jobID.String()), zap.Error(err))
		}
	}()

	owner := models.OwnerContext{UserEmail: job.UploadedBy, OrganizationID: job.OrganizationID}

	records, err := m.parseSource(job)
	if err != nil {
		summary := err.Error()
		if _, ferr := m.jobs.FinishJob(jobID, models.JobStatusFailed, &summary, nil); ferr != nil {
			return ferr
		}
		config.Logger.Warn("Upload job failed before processing rows",
			zap.String("job_id", jobID.String()), zap.Error(err))
		return nil
	}

	if err := m.jobs.SetTotalRows(jobID, len(records)); err != nil {
		return err
	}

	reports, cancelled, fatal := m.processRows(ctx, jobID, owner, records)

	var status models.JobStatus
	var summary *string
	switch {
	case fatal != nil:
		status = models.JobStatusFailed
		summary = utils.StringPtr(fatal.Error())
	case cancelled:
		status = models.JobStatusCancelled
	default:
		status = models.JobStatusCompleted
		for _, r := range reports {
			if r.Result != models.RowResultSuccess {
				status = models.JobStatusCompletedWithErrors
				break
			}
		}
	}

	details := errorDetailsSample(reports)
	if _, err := m.jobs.FinishJob(jobID, status, summary, details); err != nil {
		return err
	}

	if len(reports) > 0 {
		m.writeArtifact(jobID, records, reports)
	}

	if status == models.JobStatusCompletedWithErrors && m.mailer != nil {
		finished, err := m.jobs.GetJobByID(jobID)
		if err == nil {
			if err := m.mailer.SendJobCompletionEmail(finished); err != nil {
				config.Logger.Warn("Failed to send job completion email",
					zap.String("job_id", jobID.String()), zap.Error(err))
			}
		}
	}

	config.Logger.Info("Upload job finished",
		zap.String("job_id", jobID.String()),
		zap.String("status", string(status)),
		zap.Int("rows", len(records)),
	)
	return nil
}

func (m *JobManager) parseSource(job *models.UploadJob) ([]RowRecord, error) {
	if job.SourceFileRef == nil {
		return nil, errors.New("source file reference is missing")
	}
	src, err := m.storage.DownloadFile(*job.SourceFileRef)
	if err != nil {
		return nil, fmt.Errorf("source file unavailable: %w", err)
	}
	defer src.Close()

	return ParseWorkbook(src, m.schema)
}

// processRows runs the sequential row loop. The cancellation flag is checked
// between rows; a row already handed to the committer finishes normally.
func (m *JobManager) processRows(ctx context.Context, jobID uuid.UUID, owner models.OwnerContext, records []RowRecord) (reports []RowReport, cancelled bool, fatal error) {
	tracker := NewDuplicateTracker()
	committer := m.committers.NewCommitter(owner, owner.UserEmail)
	reports = make([]RowReport, 0, len(records))

	for i, rec := range records {
		flagged, err := m.cancels.IsSet(ctx, jobID)
		if err != nil {
			config.Logger.Warn("Failed to read cancellation flag",
				zap.String("job_id", jobID.String()), zap.Error(err))
		}
		if flagged {
			// Remaining rows are recorded as skipped so the outcome
			// sequence stays contiguous; they do not count as processed.
			for _, rest := range records[i:] {
				report := RowReport{RowNumber: rest.RowNumber, Result: models.RowResultSkipped}
				if err := m.appendOutcome(jobID, report); err != nil {
					return reports, true, err
				}
				reports = append(reports, report)
			}
			return reports, true, nil
		}

		report, err := m.processOneRow(ctx, owner, committer, rec, tracker)
		if err != nil {
			return reports, false, err
		}

		if err := m.appendOutcome(jobID, report); err != nil {
			return reports, false, err
		}
		reports = append(reports, report)

		succeeded, failed := 0, 1
		if report.Result == models.RowResultSuccess {
			succeeded, failed = 1, 0
		}
		if err := m.jobs.IncrementCounters(jobID, 1, succeeded, failed); err != nil {
			return reports, false, err
		}
	}
	return reports, false, nil
}

func (m *JobManager) processOneRow(ctx context.Context, owner models.OwnerContext, committer Committer, rec RowRecord, tracker *DuplicateTracker) (RowReport, error) {
	normalized, fieldErrors, err := m.validator.ValidateRow(ctx, owner, rec, tracker)
	if err != nil {
		return RowReport{}, err
	}
	if len(fieldErrors) > 0 {
		return RowReport{
			RowNumber: rec.RowNumber,
			Result:    models.RowResultValidationError,
			Errors:    fieldErrors,
		}, nil
	}

	entityRef, err := committer.Commit(ctx, normalized)
	if errors.Is(err, ErrConflict) {
		return RowReport{
			RowNumber: rec.RowNumber,
			Result:    models.RowResultConflict,
			Errors: []models.FieldError{{
				Field:   "question_text",
				Code:    models.ErrCodeDuplicateInStore,
				Message: "an identical question already exists in your organization",
			}},
		}, nil
	}
	if err != nil {
		return RowReport{}, fmt.Errorf("commit failed on row %d: %w", rec.RowNumber, err)
	}

	if m.indexer != nil {
		if err := m.indexer.IndexQuestion(owner.OrganizationID, entityRef, normalized); err != nil {
			config.Logger.Warn("Failed to index committed question",
				zap.String("question_code", entityRef), zap.Error(err))
		}
	}

	return RowReport{
		RowNumber: rec.RowNumber,
		Result:    models.RowResultSuccess,
		EntityRef: entityRef,
	}, nil
}

func (m *JobManager) appendOutcome(jobID uuid.UUID, report RowReport) error {
	outcome := &models.RowOutcome{
		JobID:     jobID,
		RowNumber: report.RowNumber,
		Result:    report.Result,
	}
	if len(report.Errors) > 0 {
		raw, err := json.Marshal(report.Errors)
		if err != nil {
			return err
		}
		outcome.Errors = datatypes.JSON(raw)
	}
	if report.EntityRef != "" {
		outcome.CommittedEntityRef = utils.StringPtr(report.EntityRef)
	}
	return m.jobs.AppendRowOutcome(outcome)
}

// writeArtifact serializes and stores the result workbook. A storage failure
// leaves the job's terminal state intact and records a warning instead.
func (m *JobManager) writeArtifact(jobID uuid.UUID, records []RowRecord, reports []RowReport) {
	buf, err := WriteResultWorkbook(m.schema, records, reports)
	if err != nil {
		m.recordArtifactWarning(jobID, err)
		return
	}

	key := fmt.Sprintf("%s/%s/result.xlsx", resultKeyPrefix, jobID)
	if _, err := m.storage.UploadFileFromReader(buf, key); err != nil {
		m.recordArtifactWarning(jobID, err)
		return
	}

	if err := m.jobs.SetResultArtifact(jobID, key); err != nil {
		config.Logger.Error("Failed to record result artifact reference",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

func (m *JobManager) recordArtifactWarning(jobID uuid.UUID, cause error) {
	config.Logger.Error("Failed to write result artifact",
		zap.String("job_id", jobID.String()), zap.Error(cause))
	warning := fmt.Sprintf("result artifact could not be written: %v", cause)
	if err := m.jobs.SetResultWarning(jobID, warning); err != nil {
		config.Logger.Error("Failed to record result warning",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

func (m *JobManager) ownerMatches(job *models.UploadJob, owner models.OwnerContext) bool {
	return owner.Matches(models.OwnerContext{
		UserEmail:      job.UploadedBy,
		OrganizationID: job.OrganizationID,
	})
}

type errorDetail struct {
	RowNumber int                 `json:"row_number"`
	Result    models.RowResult    `json:"result"`
	Errors    []models.FieldError `json:"errors"`
}

// errorDetailsSample captures at most the first errorDetailsCap failed rows
// for the job record.
func errorDetailsSample(reports []RowReport) []byte {
	var sample []errorDetail
	for _, r := range reports {
		if r.Result == models.RowResultSuccess || r.Result == models.RowResultSkipped {
			continue
		}
		sample = append(sample, errorDetail{RowNumber: r.RowNumber, Result: r.Result, Errors: r.Errors})
		if len(sample) == errorDetailsCap {
			break
		}
	}
	if len(sample) == 0 {
		return nil
	}
	raw, err := json.Marshal(sample)
	if err != nil {
		return nil
	}
	return raw
}
