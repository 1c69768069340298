package services

import (
	"fmt"
	"time"

	"question-bank-backend/config"
	"question-bank-backend/uploads/repositories"
	"question-bank-backend/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRetentionDays is how long terminal jobs and their artifacts are
// kept before the purge removes them.
const DefaultRetentionDays = 30

// RetentionPurger removes terminal jobs, their row outcomes and their stored
// files once they age past the retention window. Queued and running jobs are
// never touched.
type RetentionPurger struct {
	jobs      repositories.JobRepository
	storage   utils.FileStorage
	retention time.Duration
}

func NewRetentionPurger(jobs repositories.JobRepository, storage utils.FileStorage, retention time.Duration) *RetentionPurger {
	if retention <= 0 {
		retention = DefaultRetentionDays * 24 * time.Hour
	}
	return &RetentionPurger{
		jobs:      jobs,
		storage:   storage,
		retention: retention,
	}
}

// PurgeExpired deletes every expired job and returns how many were removed.
func (p *RetentionPurger) PurgeExpired() (int, error) {
	cutoff := time.Now().Add(-p.retention)
	jobs, err := p.jobs.GetJobsCompletedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	purged := 0
	for _, job := range jobs {
		sourcePrefix := fmt.Sprintf("%s/%s", sourceKeyPrefix, job.ID)
		resultPrefix := fmt.Sprintf("%s/%s", resultKeyPrefix, job.ID)
		if err := p.storage.DeletePrefix(sourcePrefix); err != nil {
			config.Logger.Warn("Failed to delete source files for expired job",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		if err := p.storage.DeletePrefix(resultPrefix); err != nil {
			config.Logger.Warn("Failed to delete result artifact for expired job",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		if err := p.jobs.DeleteJob(job.ID); err != nil {
			config.Logger.Warn("Failed to delete expired job record",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		purged++
	}

	if purged > 0 {
		config.Logger.Info("Purged expired upload jobs", zap.Int("count", purged))
	}
	return purged, nil
}

// RunScheduled runs the purge daily at 1 AM and blocks for the life of the
// process. Meant to be launched from its own goroutine.
func (p *RetentionPurger) RunScheduled() {
	c := cron.New()

	_, err := c.AddFunc("0 1 * * *", func() {
		if _, err := p.PurgeExpired(); err != nil {
			config.Logger.Error("Scheduled retention purge failed", zap.Error(err))
		}
	})
	if err != nil {
		config.Logger.Error("Failed to schedule retention purge", zap.Error(err))
		return
	}

	c.Start()
	select {}
}
