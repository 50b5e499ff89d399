package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/killallgit/trackreview-api/internal/models"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNoJobsAvailable = errors.New("no jobs available")
)

// claimAttempts bounds how often ClaimNextJob retries after losing a race
// for the same job to another worker.
const claimAttempts = 5

// Repository persists the render queue.
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	// LatestByPayload returns the newest job of jobType whose payload has key
	// set to value.
	LatestByPayload(ctx context.Context, jobType models.JobType, key, value string) (*models.Job, error)

	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error)
	UpdateJobProgress(ctx context.Context, jobID uint, progress int) error
	CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error
	FailJobWithDetails(ctx context.Context, jobID uint, errorType models.JobErrorType, errorCode, errorMsg, errorDetails string) error
	ReleaseJob(ctx context.Context, jobID uint) error
	RequeueJob(ctx context.Context, jobID uint) error

	ReleaseOrphanedJobs(ctx context.Context) (int64, error)
	DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}

func (r *repository) LatestByPayload(ctx context.Context, jobType models.JobType, key, value string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("type = ?", jobType).
		Where("json_extract(payload, ?) = ?", "$."+key, value).
		Order("id DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("finding job by %s: %w", key, err)
	}
	return &job, nil
}

// claimable selects pending jobs and failed jobs with attempts left.
func claimable(tx *gorm.DB) *gorm.DB {
	return tx.Where("status = ? OR (status = ? AND retry_count < max_retries)",
		models.JobStatusPending, models.JobStatusFailed)
}

// ClaimNextJob takes the highest priority, oldest claimable job. The claim is
// a conditional update so two workers never take the same job, even on a
// database without row locks.
func (r *repository) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var job models.Job
		query := claimable(r.db.WithContext(ctx).Model(&models.Job{}))
		if len(jobTypes) > 0 {
			query = query.Where("type IN ?", jobTypes)
		}
		if err := query.Order("priority DESC, created_at ASC, id ASC").First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoJobsAvailable
			}
			return nil, fmt.Errorf("finding job to claim: %w", err)
		}

		now := time.Now()
		res := claimable(r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", job.ID)).
			Updates(map[string]any{
				"status":     models.JobStatusProcessing,
				"worker_id":  workerID,
				"started_at": &now,
				"progress":   0,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("claiming job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		job.Status = models.JobStatusProcessing
		job.WorkerID = workerID
		job.StartedAt = &now
		job.Progress = 0
		return &job, nil
	}
	return nil, ErrNoJobsAvailable
}

func (r *repository) UpdateJobProgress(ctx context.Context, jobID uint, progress int) error {
	progress = min(max(progress, 0), 100)
	return r.updateJob(ctx, jobID, []models.JobStatus{models.JobStatusProcessing}, map[string]any{"progress": progress})
}

func (r *repository) CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error {
	now := time.Now()
	return r.updateJob(ctx, jobID, nil, map[string]any{
		"status":       models.JobStatusCompleted,
		"progress":     100,
		"completed_at": &now,
		"result":       result,
	})
}

// FailJobWithDetails records a failure. The job goes back to the queue unless
// it is out of attempts or the failure type is final.
func (r *repository) FailJobWithDetails(ctx context.Context, jobID uint, errorType models.JobErrorType, errorCode, errorMsg, errorDetails string) error {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	attempts := job.RetryCount + 1
	updates := map[string]any{
		"status":        models.JobStatusFailed,
		"error":         errorMsg,
		"error_type":    string(errorType),
		"error_code":    errorCode,
		"error_details": errorDetails,
		"failed_at":     &now,
		"retry_count":   attempts,
		"worker_id":     "",
	}
	if attempts >= job.MaxRetries || errorType.Final() {
		updates["status"] = models.JobStatusPermanentlyFailed
		updates["completed_at"] = &now
	}
	return r.updateJob(ctx, jobID, nil, updates)
}

// ReleaseJob hands a claimed job back without counting an attempt.
func (r *repository) ReleaseJob(ctx context.Context, jobID uint) error {
	return r.updateJob(ctx, jobID, []models.JobStatus{models.JobStatusProcessing}, releaseUpdates())
}

// RequeueJob gives a failed job a fresh set of attempts.
func (r *repository) RequeueJob(ctx context.Context, jobID uint) error {
	return r.updateJob(ctx, jobID,
		[]models.JobStatus{models.JobStatusFailed, models.JobStatusPermanentlyFailed},
		map[string]any{
			"status":        models.JobStatusPending,
			"retry_count":   0,
			"progress":      0,
			"error":         "",
			"error_type":    "",
			"error_code":    "",
			"error_details": "",
			"completed_at":  nil,
		})
}

// ReleaseOrphanedJobs returns jobs left in processing by a previous run to
// the queue. Only call it before workers start.
func (r *repository) ReleaseOrphanedJobs(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusProcessing).
		Updates(releaseUpdates())
	if res.Error != nil {
		return 0, fmt.Errorf("releasing orphaned jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOldJobs removes finished jobs created before olderThan.
func (r *repository) DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", olderThan).
		Where("status IN ?", []models.JobStatus{
			models.JobStatusCompleted,
			models.JobStatusFailed,
			models.JobStatusPermanentlyFailed,
			models.JobStatusCancelled,
		}).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func releaseUpdates() map[string]any {
	return map[string]any{
		"status":     models.JobStatusPending,
		"worker_id":  "",
		"started_at": nil,
		"progress":   0,
	}
}

// updateJob applies updates to one job, optionally only while it is in one of
// the given states. ErrJobNotFound covers both a missing job and a job in
// another state.
func (r *repository) updateJob(ctx context.Context, jobID uint, from []models.JobStatus, updates map[string]any) error {
	query := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", jobID)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating job %d: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
