package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/killallgit/trackreview-api/internal/logging"
)

// RenditionPruner removes old renders that no video plays any more.
type RenditionPruner interface {
	PruneRenditions(ctx context.Context, olderThan time.Duration) (int, error)
}

// SessionCloser closes review sessions nobody has touched for a while.
type SessionCloser interface {
	CloseIdle(maxIdle time.Duration) int
}

// JobCleaner deletes finished jobs past their retention.
type JobCleaner interface {
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// Options selects what a sweep covers. Zero values disable that part.
type Options struct {
	Interval         time.Duration
	MaxArtifactAge   time.Duration
	MaxSessionIdle   time.Duration
	JobRetentionDays int
}

// Report counts what one sweep removed.
type Report struct {
	Renditions   int
	Sessions     int
	Jobs         int64
	ScratchFiles int
}

// Service periodically removes stale renders, idle review sessions, old jobs
// and filter scripts left behind by interrupted renders.
type Service struct {
	renditions RenditionPruner
	sessions   SessionCloser
	jobs       JobCleaner
	mediaFs    afero.Fs
	opts       Options
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. Any collaborator may be nil.
func NewService(renditions RenditionPruner, sessions SessionCloser, jobs JobCleaner, mediaFs afero.Fs, opts Options, logger *slog.Logger) *Service {
	return &Service{
		renditions: renditions,
		sessions:   sessions,
		jobs:       jobs,
		mediaFs:    mediaFs,
		opts:       opts,
		logger:     logging.WithComponent(logger, "cleanup"),
	}
}

// Start runs a sweep immediately, then every Interval until Stop or ctx ends.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.opts.Interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			s.runLogged(ctx)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				s.logger.Info("cleanup service stopped")
				return
			}
		}
	}()

	s.logger.Info("cleanup service started", "interval", s.opts.Interval, "max_artifact_age", s.opts.MaxArtifactAge)
}

// Stop stops the cleanup service and waits for a running sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Service) runLogged(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("cleanup sweep had failures", "error", err)
	}
	if report != (Report{}) {
		s.logger.Info("cleanup sweep finished",
			"renditions", report.Renditions,
			"sessions", report.Sessions,
			"jobs", report.Jobs,
			"scratch_files", report.ScratchFiles)
	}
}

// RunOnce performs a single sweep. Every part runs even if an earlier one
// fails; the failures are returned together.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   error
	)

	if s.renditions != nil && s.opts.MaxArtifactAge > 0 {
		n, err := s.renditions.PruneRenditions(ctx, s.opts.MaxArtifactAge)
		report.Renditions = n
		errs = multierr.Append(errs, err)
	}

	if s.sessions != nil && s.opts.MaxSessionIdle > 0 {
		report.Sessions = s.sessions.CloseIdle(s.opts.MaxSessionIdle)
	}

	if s.jobs != nil && s.opts.JobRetentionDays > 0 {
		n, err := s.jobs.CleanupOldJobs(ctx, s.opts.JobRetentionDays)
		report.Jobs = n
		errs = multierr.Append(errs, err)
	}

	if s.mediaFs != nil && s.opts.MaxArtifactAge > 0 {
		n, err := s.removeScratchFiles()
		report.ScratchFiles = n
		errs = multierr.Append(errs, err)
	}

	return report, errs
}

// isScratchFile matches the filter scripts written next to render output.
func isScratchFile(name string) bool {
	return strings.HasPrefix(name, "overlay_") && strings.HasSuffix(name, ".txt")
}

// removeScratchFiles deletes filter scripts older than MaxArtifactAge. A
// finished render removes its own; these are left by crashes.
func (s *Service) removeScratchFiles() (int, error) {
	var (
		removed int
		errs    error
	)
	err := afero.Walk(s.mediaFs, string(filepath.Separator), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files with errors
		}
		if info.IsDir() || !isScratchFile(info.Name()) {
			return nil
		}
		if time.Since(info.ModTime()) <= s.opts.MaxArtifactAge {
			return nil
		}
		s.logger.Debug("removing stale filter script", "path", path)
		if err := s.mediaFs.Remove(path); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("removing %s: %w", path, err))
			return nil
		}
		removed++
		return nil
	})
	return removed, multierr.Append(errs, err)
}
