package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
)

// JobProcessor runs one kind of job. A processor completes the job itself;
// returning an error fails it. Errors of type *models.JobError keep their
// classification.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *models.Job) error
	CanProcess(jobType models.JobType) bool
}

// knownJobTypes is every job type a worker may claim.
var knownJobTypes = []models.JobType{
	models.JobTypeRender,
}

// Worker polls the queue and runs claimed jobs one at a time.
type Worker struct {
	id           string
	jobService   jobs.Runner
	processors   map[models.JobType]JobProcessor
	pollInterval time.Duration
	jobTimeout   time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker. A zero jobTimeout leaves jobs bounded only by
// the caller's context.
func NewWorker(id string, jobService jobs.Runner, pollInterval, jobTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		id:           id,
		jobService:   jobService,
		processors:   make(map[models.JobType]JobProcessor),
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		logger:       logging.WithComponent(logger, "worker").With(logging.FieldWorker, id),
	}
}

// RegisterProcessor makes the worker claim every known job type processor
// handles. Register before Start.
func (w *Worker) RegisterProcessor(processor JobProcessor) {
	for _, jobType := range knownJobTypes {
		if processor.CanProcess(jobType) {
			w.processors[jobType] = processor
		}
	}
}

// Start runs the poll loop until Stop is called or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop ends the poll loop. A job in hand is interrupted and handed back to
// the queue.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	w.logger.Debug("worker starting")
	defer w.logger.Debug("worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNextJob(ctx); err != nil {
				w.logger.Error("error processing job", "error", err)
			}
		}
	}
}

func (w *Worker) supportedTypes() []models.JobType {
	types := make([]models.JobType, 0, len(w.processors))
	for _, jobType := range knownJobTypes {
		if _, ok := w.processors[jobType]; ok {
			types = append(types, jobType)
		}
	}
	return types
}

// processNextJob claims and runs the next job. Finding the queue empty is
// not an error.
func (w *Worker) processNextJob(ctx context.Context) error {
	supported := w.supportedTypes()
	if len(supported) == 0 {
		return errors.New("no job processors registered")
	}

	job, err := w.jobService.ClaimNextJob(ctx, w.id, supported)
	if err != nil {
		if errors.Is(err, jobs.ErrNoJobsAvailable) {
			return nil
		}
		return err
	}

	logger := logging.WithJob(w.logger, job.ID)
	logger.Info("claimed job", "type", job.Type, "attempt", job.RetryCount+1)

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	err = w.processors[job.Type].ProcessJob(jobCtx, job)
	if err == nil {
		logger.Info("completed job")
		return nil
	}

	// Status is written on a fresh context: the worker's own may be what
	// ended the job.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if ctx.Err() != nil {
		if relErr := w.jobService.ReleaseJob(writeCtx, job.ID); relErr != nil {
			logger.Error("failed to release interrupted job", "error", relErr)
		}
		logger.Info("job interrupted by shutdown, released")
		return nil
	}

	if failErr := w.fail(writeCtx, job.ID, err); failErr != nil {
		logger.Error("failed to mark job as failed", "error", failErr)
	}
	return fmt.Errorf("job %d processing failed: %w", job.ID, err)
}

func (w *Worker) fail(ctx context.Context, jobID uint, err error) error {
	var jobErr *models.JobError
	if errors.As(err, &jobErr) {
		return w.jobService.FailJobWithDetails(ctx, jobID, jobErr.Type, jobErr.Code, jobErr.Message, jobErr.Details)
	}
	return w.jobService.FailJob(ctx, jobID, err)
}

// WorkerPool runs several workers against one queue.
type WorkerPool struct {
	workers []*Worker
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewWorkerPool creates workerCount workers sharing one job queue.
func NewWorkerPool(jobService jobs.Runner, workerCount int, pollInterval, jobTimeout time.Duration, logger *slog.Logger) *WorkerPool {
	pool := &WorkerPool{
		workers: make([]*Worker, workerCount),
		logger:  logging.WithComponent(logger, "workers"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewWorker(fmt.Sprintf("worker-%d", i+1), jobService, pollInterval, jobTimeout, logger)
	}
	return pool
}

// RegisterProcessor registers processor with every worker.
func (p *WorkerPool) RegisterProcessor(processor JobProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, worker := range p.workers {
		worker.RegisterProcessor(processor)
	}
}

func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("worker pool already started")
	}

	p.logger.Info("starting worker pool", "workers", len(p.workers))
	for _, worker := range p.workers {
		worker.Start(ctx)
	}
	p.started = true
	return nil
}

// Stop stops every worker and waits for them. Safe to call when not started.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}

	p.logger.Info("stopping worker pool")
	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}
	wg.Wait()
	p.started = false
}
