package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/trackreview-api/internal/database"
	"github.com/killallgit/trackreview-api/internal/models"
)

func setupService(t *testing.T) Service {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(NewRepository(db.DB), nil)
}

func renderPayload(video string) models.JobPayload {
	return models.JobPayload{models.PayloadVideoID: video}
}

func TestEnqueueAndClaim(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	low, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)
	high, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("b"), WithPriority(5), WithCreatedBy("review"))
	require.NoError(t, err)

	claimed, err := svc.ClaimNextJob(ctx, "worker-1", []models.JobType{models.JobTypeRender})
	require.NoError(t, err)
	assert.Equal(t, high.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, "worker-1", claimed.WorkerID)

	claimed, err = svc.ClaimNextJob(ctx, "worker-2", nil)
	require.NoError(t, err)
	assert.Equal(t, low.ID, claimed.ID)

	_, err = svc.ClaimNextJob(ctx, "worker-1", nil)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestEnqueueUniqueJob(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	first, err := svc.EnqueueUniqueJob(ctx, models.JobTypeRender, renderPayload("a"), models.PayloadVideoID)
	require.NoError(t, err)
	again, err := svc.EnqueueUniqueJob(ctx, models.JobTypeRender, renderPayload("a"), models.PayloadVideoID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Once claimed, a new render of the same video is a new job.
	_, err = svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)
	next, err := svc.EnqueueUniqueJob(ctx, models.JobTypeRender, renderPayload("a"), models.PayloadVideoID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)

	latest, err := svc.GetLatestRenderJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, next.ID, latest.ID)

	_, err = svc.EnqueueUniqueJob(ctx, models.JobTypeRender, models.JobPayload{}, models.PayloadVideoID)
	assert.Error(t, err)
}

func TestFailAndRetry(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	job, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"), WithMaxRetries(2))
	require.NoError(t, err)

	_, err = svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)
	require.NoError(t, svc.FailJobWithDetails(ctx, job.ID, models.ErrorTypeProcessing, "ffmpeg_failed", "render failed", "exit 1"))

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "ffmpeg_failed", got.ErrorCode)
	assert.False(t, got.IsTerminal())

	// Failed jobs with retries left are claimable again.
	claimed, err := svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	require.NoError(t, svc.FailJob(ctx, job.ID, errors.New("again")))

	got, err = svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPermanentlyFailed, got.Status)
	assert.True(t, got.IsTerminal())

	_, err = svc.ClaimNextJob(ctx, "w", nil)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)

	retried, err := svc.RetryFailedJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, retried.Status)
	assert.Zero(t, retried.RetryCount)
	assert.Empty(t, retried.ErrorCode)

	_, err = svc.RetryFailedJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestReleaseJob(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	job, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ReleaseJob(ctx, job.ID), ErrJobNotFound, "only claimed jobs can be released")

	_, err = svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProgress(ctx, job.ID, 150))

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)

	require.NoError(t, svc.ReleaseJob(ctx, job.ID))
	got, err = svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.WorkerID)
}

func TestCompleteAndWait(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	job, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProgress(ctx, job.ID, 40))

	done := make(chan *models.Job, 1)
	go func() {
		j, err := svc.WaitForJob(ctx, job.ID, 5*time.Millisecond)
		assert.NoError(t, err)
		done <- j
	}()

	require.NoError(t, svc.CompleteJob(ctx, job.ID, models.JobResult{"file": "out.mp4"}))

	select {
	case j := <-done:
		assert.Equal(t, models.JobStatusCompleted, j.Status)
		assert.Equal(t, 100, j.Progress)
		assert.Equal(t, "out.mp4", j.Result["file"])
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForJob did not return")
	}
}

func TestWaitForJobTimeout(t *testing.T) {
	svc := setupService(t)
	job, err := svc.EnqueueJob(context.Background(), models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	got, err := svc.WaitForJob(ctx, job.ID, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestReleaseOrphanedJobs(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	job, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "w", nil)
	require.NoError(t, err)

	n, err := svc.ReleaseOrphanedJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Empty(t, got.WorkerID)
}

func TestCleanupOldJobs(t *testing.T) {
	svc := setupService(t)
	_, err := svc.CleanupOldJobs(context.Background(), 0)
	assert.Error(t, err)

	n, err := svc.CleanupOldJobs(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestFailJobWithDetails_InputErrorsAreFinal(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	job, err := svc.EnqueueJob(ctx, models.JobTypeRender, renderPayload("a"))
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "worker-1", []models.JobType{models.JobTypeRender})
	require.NoError(t, err)

	require.NoError(t, svc.FailJobWithDetails(ctx, job.ID, models.ErrorTypeInput, "no_detections", "nothing to draw", ""))

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPermanentlyFailed, got.Status)
	assert.Equal(t, "no_detections", got.ErrorCode)
	assert.True(t, got.IsTerminal())
}
