package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
)

const (
	DefaultMaxRetries = 3
	DefaultPriority   = 0
)

// ErrNotRetryable is returned when requeueing a job that has not failed.
var ErrNotRetryable = errors.New("job cannot be retried")

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logging.WithComponent(logger, "jobs"),
	}
}

func (s *service) EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, opts ...JobOption) (*models.Job, error) {
	o := jobOptions{priority: DefaultPriority, maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}

	job := &models.Job{
		Type:       jobType,
		Status:     models.JobStatusPending,
		Payload:    payload,
		Priority:   o.priority,
		MaxRetries: o.maxRetries,
		CreatedBy:  o.createdBy,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	logging.WithJob(s.logger, job.ID).Debug("job enqueued", "type", jobType, "priority", job.Priority)

	return job, nil
}

func (s *service) EnqueueUniqueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, uniqueKey string, opts ...JobOption) (*models.Job, error) {
	uniqueValue, ok := payload[uniqueKey]
	if !ok {
		return nil, fmt.Errorf("unique key %s not found in payload", uniqueKey)
	}

	existingJob, err := s.repo.LatestByPayload(ctx, jobType, uniqueKey, fmt.Sprintf("%v", uniqueValue))
	if err == nil && existingJob != nil && existingJob.Status == models.JobStatusPending {
		logging.WithJob(s.logger, existingJob.ID).Debug("job already queued",
			"type", jobType, uniqueKey, uniqueValue)
		return existingJob, nil
	}

	return s.EnqueueJob(ctx, jobType, payload, opts...)
}

func (s *service) GetJob(ctx context.Context, jobID uint) (*models.Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

func (s *service) GetLatestRenderJob(ctx context.Context, videoUUID string) (*models.Job, error) {
	return s.repo.LatestByPayload(ctx, models.JobTypeRender, models.PayloadVideoID, videoUUID)
}

func (s *service) WaitForJob(ctx context.Context, jobID uint, poll time.Duration) (*models.Job, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *service) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error) {
	job, err := s.repo.ClaimNextJob(ctx, workerID, jobTypes)
	if err != nil {
		return nil, err
	}

	logging.WithJob(s.logger, job.ID).Debug("job claimed", logging.FieldWorker, workerID, "type", job.Type)

	return job, nil
}

func (s *service) UpdateProgress(ctx context.Context, jobID uint, progress int) error {
	return s.repo.UpdateJobProgress(ctx, jobID, progress)
}

func (s *service) CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error {
	if err := s.repo.CompleteJob(ctx, jobID, result); err != nil {
		return err
	}

	logging.WithJob(s.logger, jobID).Info("job completed")

	return nil
}

func (s *service) FailJob(ctx context.Context, jobID uint, err error) error {
	return s.FailJobWithDetails(ctx, jobID, models.ErrorTypeSystem, "", err.Error(), "")
}

func (s *service) FailJobWithDetails(ctx context.Context, jobID uint, errorType models.JobErrorType, errorCode, errorMsg, errorDetails string) error {
	if err := s.repo.FailJobWithDetails(ctx, jobID, errorType, errorCode, errorMsg, errorDetails); err != nil {
		return err
	}

	logger := logging.WithJob(s.logger, jobID).With("error_type", errorType, "error_code", errorCode, "error", errorMsg)
	job, _ := s.repo.GetJob(ctx, jobID)
	if job != nil && job.IsRetryable() {
		logger.Warn("job failed, will retry", "retry", job.RetryCount, "max_retries", job.MaxRetries)
	} else {
		logger.Error("job failed permanently")
	}

	return nil
}

func (s *service) ReleaseJob(ctx context.Context, jobID uint) error {
	if err := s.repo.ReleaseJob(ctx, jobID); err != nil {
		return err
	}

	logging.WithJob(s.logger, jobID).Debug("job released back to pending")

	return nil
}

func (s *service) RetryFailedJob(ctx context.Context, jobID uint) (*models.Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.CanRequeue() {
		return nil, fmt.Errorf("%w: job %d is %s", ErrNotRetryable, jobID, job.Status)
	}

	if err := s.repo.RequeueJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("requeueing job: %w", err)
	}
	logging.WithJob(s.logger, jobID).Info("job requeued", "was", job.Status, "error_code", job.ErrorCode)

	return s.GetJob(ctx, jobID)
}

func (s *service) ReleaseOrphanedJobs(ctx context.Context) (int64, error) {
	n, err := s.repo.ReleaseOrphanedJobs(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("requeued jobs left processing by a previous run", "count", n)
	}
	return n, nil
}

func (s *service) CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("retention days must be positive")
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)

	deleted, err := s.repo.DeleteOldJobs(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old jobs: %w", err)
	}

	s.logger.Debug("deleted old jobs", "count", deleted, "retention_days", retentionDays)

	return deleted, nil
}
