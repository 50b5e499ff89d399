package jobs

import (
	"context"
	"time"

	"github.com/killallgit/trackreview-api/internal/models"
)

// Queue is the producer side of the render queue.
type Queue interface {
	EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, opts ...JobOption) (*models.Job, error)
	// EnqueueUniqueJob returns the pending job whose payload shares the value
	// under uniqueKey instead of queueing a second one.
	EnqueueUniqueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, uniqueKey string, opts ...JobOption) (*models.Job, error)

	GetJob(ctx context.Context, jobID uint) (*models.Job, error)
	GetLatestRenderJob(ctx context.Context, videoUUID string) (*models.Job, error)
	// WaitForJob polls until the job reaches a terminal state or ctx ends.
	WaitForJob(ctx context.Context, jobID uint, poll time.Duration) (*models.Job, error)
	RetryFailedJob(ctx context.Context, jobID uint) (*models.Job, error)
}

// Runner is the worker side of the render queue.
type Runner interface {
	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error)
	UpdateProgress(ctx context.Context, jobID uint, progress int) error
	CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error
	FailJob(ctx context.Context, jobID uint, err error) error
	FailJobWithDetails(ctx context.Context, jobID uint, errorType models.JobErrorType, errorCode, errorMsg, errorDetails string) error
	ReleaseJob(ctx context.Context, jobID uint) error
}

type Service interface {
	Queue
	Runner

	ReleaseOrphanedJobs(ctx context.Context) (int64, error)
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

type JobOption func(*jobOptions)

type jobOptions struct {
	priority   int
	maxRetries int
	createdBy  string
}

// WithPriority orders the job ahead of lower priorities.
func WithPriority(priority int) JobOption {
	return func(o *jobOptions) { o.priority = priority }
}

// WithMaxRetries sets how many attempts the job gets in total.
func WithMaxRetries(retries int) JobOption {
	return func(o *jobOptions) { o.maxRetries = retries }
}

func WithCreatedBy(createdBy string) JobOption {
	return func(o *jobOptions) { o.createdBy = createdBy }
}
