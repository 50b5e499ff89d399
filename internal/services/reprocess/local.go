package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// AnnotationChecker reports whether a video has tracking data to remap.
type AnnotationChecker interface {
	AnnotationsLoaded(ctx context.Context, videoUUID string) (bool, error)
}

const (
	renderPriority = 10
	defaultPoll    = 500 * time.Millisecond
)

// Local reprocesses in-process: a render job carrying the directives is
// queued for the worker pool, which writes them to the stored detections
// only when the render succeeds. Reprocess blocks until the render finishes
// or waitTimeout passes.
type Local struct {
	annotations AnnotationChecker
	jobs        jobs.Queue
	media       review.MediaSource
	waitTimeout time.Duration
	poll        time.Duration
	logger      *slog.Logger
}

func NewLocal(annotations AnnotationChecker, jobService jobs.Queue, media review.MediaSource, waitTimeout time.Duration, logger *slog.Logger) *Local {
	return &Local{
		annotations: annotations,
		jobs:        jobService,
		media:       media,
		waitTimeout: waitTimeout,
		poll:        defaultPoll,
		logger:      logging.WithComponent(logger, "reprocess"),
	}
}

// SetPollInterval changes how often the render job is checked.
func (l *Local) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.poll = d
	}
}

func (l *Local) Reprocess(ctx context.Context, req corrections.Request) (corrections.Response, error) {
	logger := logging.WithVideo(l.logger, req.VideoID)

	for _, d := range req.Directives {
		if err := d.Validate(); err != nil {
			return corrections.Response{}, err
		}
	}
	loaded, err := l.annotations.AnnotationsLoaded(ctx, req.VideoID)
	if err != nil {
		return corrections.Response{}, err
	}
	if !loaded {
		return corrections.Response{}, fmt.Errorf("%w: no annotations imported", review.ErrPreconditionNotMet)
	}

	reason := "single"
	if req.Target.Batch {
		reason = "batch"
	}
	payload := models.JobPayload{
		models.PayloadVideoID:    req.VideoID,
		models.PayloadDirectives: len(req.Directives),
		models.PayloadRemaps:     req.Directives,
		models.PayloadReason:     reason,
	}
	if req.ActiveMedia.URL != "" {
		payload[models.PayloadBaseMedia] = path.Base(req.ActiveMedia.URL)
	}
	job, err := l.jobs.EnqueueJob(ctx, models.JobTypeRender, payload,
		jobs.WithPriority(renderPriority),
		jobs.WithMaxRetries(1),
		jobs.WithCreatedBy("review"),
	)
	if err != nil {
		return corrections.Response{}, fmt.Errorf("queueing render: %w", err)
	}
	logger.Info("render queued", "job_id", job.ID, "directives", len(req.Directives))

	waitCtx := ctx
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	job, err = l.jobs.WaitForJob(waitCtx, job.ID, l.poll)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return corrections.Response{
				Message: fmt.Sprintf("render did not finish within %s", l.waitTimeout),
			}, nil
		}
		return corrections.Response{}, err
	}
	if job.Status != models.JobStatusCompleted {
		msg := job.Error
		if msg == "" {
			msg = fmt.Sprintf("render %s", job.Status)
		}
		return corrections.Response{Message: msg}, nil
	}

	media, err := l.media.Media(ctx, req.VideoID)
	if err != nil {
		return corrections.Response{}, err
	}
	rows, _ := job.Result["remapped"].(float64)
	return corrections.Response{
		Success:  true,
		NewMedia: &media,
		Message:  fmt.Sprintf("%d detections updated", int64(rows)),
	}, nil
}
