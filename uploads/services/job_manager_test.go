package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"question-bank-backend/config"
	"question-bank-backend/db/models"
	qrepositories "question-bank-backend/questions/repositories"
	"question-bank-backend/uploads/repositories"
	"question-bank-backend/uploads/services"
	"question-bank-backend/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingDispatcher stands in for the asynq client. Jobs are driven
// synchronously by calling ProcessJob from the test.
type recordingDispatcher struct {
	jobIDs []uuid.UUID
	fail   bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	if d.fail {
		return errors.New("queue unavailable")
	}
	d.jobIDs = append(d.jobIDs, jobID)
	return nil
}

type memoryCancelFlags struct {
	mu    sync.Mutex
	flags map[uuid.UUID]bool
}

func newMemoryCancelFlags() *memoryCancelFlags {
	return &memoryCancelFlags{flags: make(map[uuid.UUID]bool)}
}

func (f *memoryCancelFlags) Set(ctx context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[jobID] = true
	return nil
}

func (f *memoryCancelFlags) IsSet(ctx context.Context, jobID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[jobID], nil
}

func (f *memoryCancelFlags) Clear(ctx context.Context, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, jobID)
	return nil
}

// flakyStorage delegates to real storage but refuses writes under one key
// prefix, to exercise the result-artifact failure path.
type flakyStorage struct {
	utils.FileStorage
	failPrefix string
}

func (s *flakyStorage) UploadFileFromReader(src io.Reader, key string) (string, error) {
	if strings.HasPrefix(key, s.failPrefix) {
		return "", errors.New("disk full")
	}
	return s.FileStorage.UploadFileFromReader(src, key)
}

type harness struct {
	db         *gorm.DB
	jobs       repositories.JobRepository
	questions  qrepositories.QuestionRepository
	schema     *services.Schema
	validator  *services.Validator
	storage    utils.FileStorage
	dispatcher *recordingDispatcher
	cancels    *memoryCancelFlags
	manager    *services.JobManager
	owner      models.OwnerContext
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	config.InitTestLogger()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.Board{},
		&models.State{},
		&models.Medium{},
		&models.Subject{},
		&models.CognitiveLearning{},
		&models.Difficulty{},
		&models.Taxonomy{},
		&models.Question{},
		&models.UploadJob{},
		&models.RowOutcome{},
	))

	org := models.Organization{Name: "Test School"}
	require.NoError(t, db.Create(&org).Error)
	owner := models.OwnerContext{UserEmail: "teacher@school.test", OrganizationID: org.ID}

	// Master data matching the schema samples: Science for class 8 in
	// English, plus the referenced cognitive level and difficulty.
	medium := models.Medium{Name: "English", OrganizationID: org.ID, CreatedBy: "seed"}
	require.NoError(t, db.Create(&medium).Error)
	require.NoError(t, db.Create(&models.Subject{
		Name: "Science", Standard: "8", MediumID: medium.ID,
		OrganizationID: org.ID, IsActive: true, CreatedBy: "seed",
	}).Error)
	require.NoError(t, db.Create(&models.CognitiveLearning{
		Name: "Understanding", OrganizationID: org.ID, CreatedBy: "seed",
	}).Error)
	require.NoError(t, db.Create(&models.Difficulty{
		Name: "Easy", OrganizationID: org.ID, CreatedBy: "seed",
	}).Error)

	jobs := repositories.NewJobRepository(db)
	questions := qrepositories.NewQuestionRepository(db)
	schema := services.QuestionSchema()
	validator := services.NewValidator(schema, questions)
	storage := utils.NewLocalFileStorage(t.TempDir())
	dispatcher := &recordingDispatcher{}
	cancels := newMemoryCancelFlags()

	return &harness{
		db:         db,
		jobs:       jobs,
		questions:  questions,
		schema:     schema,
		validator:  validator,
		storage:    storage,
		dispatcher: dispatcher,
		cancels:    cancels,
		manager:    services.NewJobManager(jobs, schema, validator, questions, storage, dispatcher, cancels),
		owner:      owner,
	}
}

// uploadRow returns the sample row with a distinct question text so rows do
// not collide on the natural key.
func uploadRow(schema *services.Schema, n int) []string {
	row := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		if col.Name == "question_text" {
			row = append(row, fmt.Sprintf("What is test question number %d?", n))
			continue
		}
		row = append(row, col.Sample)
	}
	return row
}

func setCell(row []string, schema *services.Schema, name, value string) []string {
	for i, col := range schema.Columns {
		if col.Name == name {
			row[i] = value
		}
	}
	return row
}

func uploadWorkbook(t *testing.T, schema *services.Schema, rows [][]string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, col := range schema.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, col.Header))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func (h *harness) submit(t *testing.T, buf *bytes.Buffer) *models.UploadJob {
	t.Helper()
	job, err := h.manager.Submit(context.Background(), "questions.xlsx", int64(buf.Len()), buf, h.owner)
	require.NoError(t, err)
	return job
}

func TestSubmit_RejectsInvalidUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.manager.Submit(ctx, "questions.csv", 100, strings.NewReader("x"), h.owner)
	assert.ErrorIs(t, err, services.ErrInvalidUpload)

	_, err = h.manager.Submit(ctx, "questions.xlsx", 0, strings.NewReader(""), h.owner)
	assert.ErrorIs(t, err, services.ErrInvalidUpload)

	_, err = h.manager.Submit(ctx, "questions.xlsx", services.MaxUploadBytes+1, strings.NewReader("x"), h.owner)
	assert.ErrorIs(t, err, services.ErrInvalidUpload)

	assert.Empty(t, h.dispatcher.jobIDs, "rejected uploads must never reach the queue")
}

func TestSubmit_DispatchFailureFinalizesJob(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.fail = true

	buf := uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)})
	job := h.submit(t, buf)

	assert.Equal(t, models.JobStatusFailed, job.Status)

	stored, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorSummary)
	require.NotNil(t, stored.CompletedAt)
}

func TestProcessJob_AllRowsValid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rows := [][]string{
		uploadRow(h.schema, 1),
		uploadRow(h.schema, 2),
		uploadRow(h.schema, 3),
	}
	job := h.submit(t, uploadWorkbook(t, h.schema, rows))
	assert.Equal(t, models.JobStatusQueued, job.Status)
	require.Equal(t, []uuid.UUID{job.ID}, h.dispatcher.jobIDs)

	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 3, done.TotalRows)
	assert.Equal(t, 3, done.ProcessedRows)
	assert.Equal(t, 3, done.SucceededRows)
	assert.Equal(t, 0, done.FailedRows)
	assert.Equal(t, done.ProcessedRows, done.SucceededRows+done.FailedRows)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.ResultWarning)
	require.NotNil(t, done.ResultArtifactRef)

	outcomes, err := h.manager.GetRowOutcomes(job.ID, h.owner)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, outcome := range outcomes {
		assert.Equal(t, i+1, outcome.RowNumber)
		assert.Equal(t, models.RowResultSuccess, outcome.Result)
		require.NotNil(t, outcome.CommittedEntityRef)
		assert.True(t, strings.HasPrefix(*outcome.CommittedEntityRef, "Q"))
	}

	var count int64
	require.NoError(t, h.db.Model(&models.Question{}).
		Where("organization_id = ?", h.owner.OrganizationID).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	// The artifact reference is stable across reads.
	rc, first, err := h.manager.GetResultArtifact(job.ID, h.owner)
	require.NoError(t, err)
	rc.Close()
	rc, second, err := h.manager.GetResultArtifact(job.ID, h.owner)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, *first.ResultArtifactRef, *second.ResultArtifactRef)
}

func TestProcessJob_MixedOutcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Six valid rows, three missing the question text, one referencing a
	// subject the organization does not have.
	var rows [][]string
	for n := 1; n <= 6; n++ {
		rows = append(rows, uploadRow(h.schema, n))
	}
	for n := 7; n <= 9; n++ {
		rows = append(rows, setCell(uploadRow(h.schema, n), h.schema, "question_text", ""))
	}
	rows = append(rows, setCell(uploadRow(h.schema, 10), h.schema, "subject", "History"))

	job := h.submit(t, uploadWorkbook(t, h.schema, rows))
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompletedWithErrors, done.Status)
	assert.Equal(t, 10, done.TotalRows)
	assert.Equal(t, 10, done.ProcessedRows)
	assert.Equal(t, 6, done.SucceededRows)
	assert.Equal(t, 4, done.FailedRows)
	assert.NotEmpty(t, done.ErrorDetails)

	outcomes, err := h.manager.GetRowOutcomes(job.ID, h.owner)
	require.NoError(t, err)
	require.Len(t, outcomes, 10)

	withErrors := 0
	for i, outcome := range outcomes {
		assert.Equal(t, i+1, outcome.RowNumber, "outcomes must be contiguous and in row order")
		if outcome.Result == models.RowResultValidationError {
			withErrors++
			assert.NotEmpty(t, outcome.Errors)
		}
	}
	assert.Equal(t, 4, withErrors)
}

func TestProcessJob_DuplicateWithinFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := uploadRow(h.schema, 1)
	second := setCell(uploadRow(h.schema, 2), h.schema,
		"question_text", "  WHAT IS test   question number 1?  ")
	job := h.submit(t, uploadWorkbook(t, h.schema, [][]string{first, second}))
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompletedWithErrors, done.Status)
	assert.Equal(t, 1, done.SucceededRows)
	assert.Equal(t, 1, done.FailedRows)

	outcomes, err := h.manager.GetRowOutcomes(job.ID, h.owner)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.RowResultSuccess, outcomes[0].Result)
	assert.Equal(t, models.RowResultValidationError, outcomes[1].Result)
	assert.Contains(t, string(outcomes[1].Errors), models.ErrCodeDuplicateInFile)
	assert.Contains(t, string(outcomes[1].Errors), "row 1")
}

func TestProcessJob_ConflictWithExistingQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	jobA := h.submit(t, uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)}))
	require.NoError(t, h.manager.ProcessJob(ctx, jobA.ID))

	jobB := h.submit(t, uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)}))
	require.NoError(t, h.manager.ProcessJob(ctx, jobB.ID))

	done, err := h.manager.GetStatus(jobB.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompletedWithErrors, done.Status)

	outcomes, err := h.manager.GetRowOutcomes(jobB.ID, h.owner)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.RowResultConflict, outcomes[0].Result)

	// Cross-file conflicts carry their own code, distinct from in-file
	// duplicates.
	assert.Contains(t, string(outcomes[0].Errors), models.ErrCodeDuplicateInStore)
	assert.NotContains(t, string(outcomes[0].Errors), models.ErrCodeDuplicateInFile)

	var count int64
	require.NoError(t, h.db.Model(&models.Question{}).
		Where("organization_id = ?", h.owner.OrganizationID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProcessJob_UnreadableSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.manager.Submit(ctx, "questions.xlsx", 9,
		strings.NewReader("not xlsx"), h.owner)
	require.NoError(t, err)
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.ErrorSummary)
	assert.Nil(t, done.ResultArtifactRef, "a job that failed before row processing has no artifact")
}

func TestCancel_BeforeProcessingStarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := h.submit(t, uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)}))

	cancelled, err := h.manager.Cancel(ctx, job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	firstCompleted := cancelled.CompletedAt
	require.NotNil(t, firstCompleted)

	// The queued task still fires; the worker must observe the terminal
	// state and back off.
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, done.Status)
	assert.Equal(t, 0, done.ProcessedRows)
	assert.True(t, firstCompleted.Equal(*done.CompletedAt))

	outcomes, err := h.manager.GetRowOutcomes(job.ID, h.owner)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	// Cancelling a terminal job is a no-op.
	again, err := h.manager.Cancel(ctx, job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, again.Status)
}

func TestCancel_MidRunSkipsRemainingRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rows := [][]string{
		uploadRow(h.schema, 1),
		uploadRow(h.schema, 2),
		uploadRow(h.schema, 3),
	}
	job := h.submit(t, uploadWorkbook(t, h.schema, rows))

	// Raise the flag without touching the queued status, as an API cancel
	// racing a worker that has already claimed the job would.
	require.NoError(t, h.cancels.Set(ctx, job.ID))
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, done.Status)
	assert.Equal(t, 0, done.ProcessedRows)
	assert.Equal(t, done.ProcessedRows, done.SucceededRows+done.FailedRows)

	// Skipped rows still get outcomes so the sequence stays contiguous.
	outcomes, err := h.manager.GetRowOutcomes(job.ID, h.owner)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, outcome := range outcomes {
		assert.Equal(t, i+1, outcome.RowNumber)
		assert.Equal(t, models.RowResultSkipped, outcome.Result)
	}

	flagged, err := h.cancels.IsSet(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, flagged, "the flag is cleared once the worker finishes")
}

func TestOwnerIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := h.submit(t, uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)}))

	stranger := models.OwnerContext{UserEmail: "other@elsewhere.test", OrganizationID: uuid.New()}

	_, err := h.manager.GetStatus(job.ID, stranger)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = h.manager.GetRowOutcomes(job.ID, stranger)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = h.manager.Cancel(ctx, job.ID, stranger)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, _, err = h.manager.GetResultArtifact(job.ID, stranger)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = h.manager.GetStatus(uuid.New(), h.owner)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestTemplateRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tmpl, err := h.manager.GetTemplate()
	require.NoError(t, err)

	// The template's own sample row must pass validation against the
	// seeded master data.
	job := h.submit(t, tmpl)
	require.NoError(t, h.manager.ProcessJob(ctx, job.ID))

	done, err := h.manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 1, done.SucceededRows)
	assert.Equal(t, 0, done.FailedRows)
}

func TestProcessJob_ArtifactStorageFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	flaky := &flakyStorage{FileStorage: h.storage, failPrefix: "BulkUploadResponse"}
	manager := services.NewJobManager(h.jobs, h.schema, h.validator, h.questions,
		flaky, h.dispatcher, h.cancels)

	buf := uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, 1)})
	job, err := manager.Submit(ctx, "questions.xlsx", int64(buf.Len()), buf, h.owner)
	require.NoError(t, err)
	require.NoError(t, manager.ProcessJob(ctx, job.ID))

	// The terminal state survives; only the artifact is missing, and the
	// warning says so.
	done, err := manager.GetStatus(job.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Nil(t, done.ResultArtifactRef)
	require.NotNil(t, done.ResultWarning)
	assert.Contains(t, *done.ResultWarning, "result artifact")

	_, _, err = manager.GetResultArtifact(job.ID, h.owner)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	h := newHarness(t)

	for n := 1; n <= 3; n++ {
		h.submit(t, uploadWorkbook(t, h.schema, [][]string{uploadRow(h.schema, n)}))
	}

	jobs, total, err := h.manager.ListJobs(h.owner, 10, 0, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, jobs, 3)

	jobs, total, err = h.manager.ListJobs(h.owner, 10, 0,
		map[string]string{"status": string(models.JobStatusQueued)})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	stranger := models.OwnerContext{UserEmail: "other@elsewhere.test", OrganizationID: uuid.New()}
	_, total, err = h.manager.ListJobs(stranger, 10, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}
