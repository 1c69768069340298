package repositories

import (
	"errors"
	"time"

	"question-bank-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("upload job not found")

type JobRepository interface {
	CreateJob(job *models.UploadJob) (*models.UploadJob, error)
	GetJobByID(jobID uuid.UUID) (*models.UploadJob, error)
	GetFilteredJobs(orgID uuid.UUID, pageSize int, offset int, filters map[string]string) ([]models.UploadJob, int64, error)

	MarkRunning(jobID uuid.UUID, startedAt time.Time) (bool, error)
	CancelIfQueued(jobID uuid.UUID) (bool, error)
	FinishJob(jobID uuid.UUID, status models.JobStatus, errorSummary *string, errorDetails []byte) (bool, error)

	SetTotalRows(jobID uuid.UUID, total int) error
	IncrementCounters(jobID uuid.UUID, processed, succeeded, failed int) error
	SetResultArtifact(jobID uuid.UUID, ref string) error
	SetResultWarning(jobID uuid.UUID, warning string) error

	AppendRowOutcome(outcome *models.RowOutcome) error
	GetRowOutcomes(jobID uuid.UUID) ([]models.RowOutcome, error)

	GetJobsCompletedBefore(cutoff time.Time) ([]models.UploadJob, error)
	DeleteJob(jobID uuid.UUID) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{
		db: db,
	}
}

func (r *jobRepository) CreateJob(job *models.UploadJob) (*models.UploadJob, error) {
	if err := r.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) GetJobByID(jobID uuid.UUID) (*models.UploadJob, error) {
	var job models.UploadJob
	err := r.db.First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// GetFilteredJobs retrieves jobs for one organization with filtering and
// pagination, newest first.
func (r *jobRepository) GetFilteredJobs(orgID uuid.UUID, pageSize int, offset int, filters map[string]string) ([]models.UploadJob, int64, error) {
	var jobs []models.UploadJob
	var total int64

	db := r.db.Model(&models.UploadJob{}).Where("organization_id = ?", orgID)

	for key, value := range filters {
		switch key {
		case "status":
			db = db.Where("status = ?", value)
		case "filename":
			db = db.Where("LOWER(filename) LIKE ?", "%"+value+"%")
		case "uploaded_by":
			db = db.Where("uploaded_by = ?", value)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// MarkRunning transitions queued -> running with a guarded update. Returns
// false when the job was not in queued state, which covers both an already
// running executor and a cancellation that won the race.
func (r *jobRepository) MarkRunning(jobID uuid.UUID, startedAt time.Time) (bool, error) {
	res := r.db.Model(&models.UploadJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"started_at": startedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CancelIfQueued finalizes a job that was cancelled before any worker picked
// it up. Returns false when the job had already left the queued state.
func (r *jobRepository) CancelIfQueued(jobID uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.UploadJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCancelled,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FinishJob moves a job into a terminal state. The guard on completed_at
// ensures the terminal transition, and the timestamp, happen exactly once.
func (r *jobRepository) FinishJob(jobID uuid.UUID, status models.JobStatus, errorSummary *string, errorDetails []byte) (bool, error) {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": time.Now(),
	}
	if errorSummary != nil {
		updates["error_summary"] = *errorSummary
	}
	if errorDetails != nil {
		updates["error_details"] = errorDetails
	}

	res := r.db.Model(&models.UploadJob{}).
		Where("id = ? AND completed_at IS NULL", jobID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepository) SetTotalRows(jobID uuid.UUID, total int) error {
	return r.db.Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("total_rows", total).Error
}

// IncrementCounters bumps all three counters in one statement so any status
// read observes processed_rows == succeeded_rows + failed_rows.
func (r *jobRepository) IncrementCounters(jobID uuid.UUID, processed, succeeded, failed int) error {
	return r.db.Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"processed_rows": gorm.Expr("processed_rows + ?", processed),
			"succeeded_rows": gorm.Expr("succeeded_rows + ?", succeeded),
			"failed_rows":    gorm.Expr("failed_rows + ?", failed),
		}).Error
}

func (r *jobRepository) SetResultArtifact(jobID uuid.UUID, ref string) error {
	return r.db.Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("result_artifact_ref", ref).Error
}

func (r *jobRepository) SetResultWarning(jobID uuid.UUID, warning string) error {
	return r.db.Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("result_warning", warning).Error
}

func (r *jobRepository) AppendRowOutcome(outcome *models.RowOutcome) error {
	return r.db.Create(outcome).Error
}

func (r *jobRepository) GetRowOutcomes(jobID uuid.UUID) ([]models.RowOutcome, error) {
	var outcomes []models.RowOutcome
	err := r.db.Where("job_id = ?", jobID).
		Order("row_number ASC").
		Find(&outcomes).Error
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// GetJobsCompletedBefore lists terminal jobs whose completion predates the
// cutoff, for the retention purge.
func (r *jobRepository) GetJobsCompletedBefore(cutoff time.Time) ([]models.UploadJob, error) {
	var jobs []models.UploadJob
	err := r.db.Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) DeleteJob(jobID uuid.UUID) error {
	if err := r.db.Where("job_id = ?", jobID).Delete(&models.RowOutcome{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.UploadJob{}, "id = ?", jobID).Error
}
