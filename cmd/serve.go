package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/killallgit/trackreview-api/api"
	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/database"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
	"github.com/killallgit/trackreview-api/internal/services/cleanup"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
	"github.com/killallgit/trackreview-api/internal/services/media"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/internal/services/reprocess"
	"github.com/killallgit/trackreview-api/internal/services/review"
	"github.com/killallgit/trackreview-api/internal/services/workers"
	"github.com/killallgit/trackreview-api/pkg/config"
	"github.com/killallgit/trackreview-api/pkg/ffmpeg"
)

const lockFileName = "trackreview.lock"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Track Review API server with the configured settings.

The server runs the HTTP API, the render workers and the periodic cleanup
of stale renders and idle review sessions. Only one server may use a data
directory at a time.

Example:
  trackreview-api serve
  trackreview-api serve --port 9090
  trackreview-api serve --host 0.0.0.0 --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
}

// application holds everything serve starts, so it can be torn down in
// reverse order whether startup finished or not.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	lock    *flock.Flock
	db      *database.DB
	pool    *workers.WorkerPool
	reviews *review.Manager
	cleanup *cleanup.Service
	server  *api.Server
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	host, port := cfg.Server.Host, cfg.Server.Port
	if h, _ := cmd.Flags().GetString("host"); h != "" {
		host = h
	}
	if p, _ := cmd.Flags().GetInt("port"); p != 0 {
		port = p
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &application{cfg: cfg, logger: logger}
	runErr := app.build(ctx, addr)
	if runErr == nil {
		runErr = app.run(ctx, addr)
	}
	return multierr.Append(runErr, app.close())
}

func (a *application) build(ctx context.Context, addr string) error {
	cfg := a.cfg

	lock, err := lockDataDir(filepath.Dir(cfg.Database.Path))
	if err != nil {
		return err
	}
	a.lock = lock

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	if err := db.Migrate(); err != nil {
		return err
	}

	ff := ffmpeg.New(cfg.Processing.FFmpegPath, cfg.Processing.FFprobePath, cfg.Processing.FFmpegTimeout)
	if err := ff.ValidateBinaries(); err != nil {
		a.logger.Warn("ffmpeg unavailable, uploads and renders will fail", "error", err)
	}

	mediaFs, err := media.NewDiskFs(cfg.Storage.MediaDir)
	if err != nil {
		return err
	}
	mediaSvc := media.NewService(media.NewRepository(db.DB), ff, mediaFs, cfg.Storage.MediaDir, a.logger)
	annotationSvc := annotations.NewService(
		annotations.NewRepository(db.DB),
		annotations.WithMinConfidence(cfg.Processing.MinConfidence),
		annotations.WithLogger(a.logger),
	)

	jobService := jobs.NewService(jobs.NewRepository(db.DB), a.logger)
	if released, err := jobService.ReleaseOrphanedJobs(ctx); err != nil {
		a.logger.Warn("releasing orphaned jobs failed", "error", err)
	} else if released > 0 {
		a.logger.Info("released orphaned jobs", "count", released)
	}

	filter, err := workers.CompileRenderFilter(cfg.Processing.RenderFilter)
	if err != nil {
		return err
	}
	a.pool = workers.NewWorkerPool(jobService, cfg.Processing.Workers, cfg.Processing.PollInterval, cfg.Processing.JobTimeout, a.logger)
	a.pool.RegisterProcessor(workers.NewRenderProcessor(jobService, mediaSvc, annotationSvc, ff, ffmpeg.DefaultRenderOptions(), filter, a.logger))

	reprocessor, err := newReprocessor(cfg, annotationSvc, jobService, mediaSvc, a.logger)
	if err != nil {
		return err
	}

	// A local commit reports its own render timeout, so its bound sits past it.
	commitTimeout := cfg.Processing.RenderWaitTimeout + time.Minute
	if cfg.Reprocess.Mode == config.ReprocessRemote {
		commitTimeout = cfg.Reprocess.Timeout
	}
	a.reviews = review.NewManager(mediaSvc, annotationSvc, reprocessor,
		review.WithLogger(a.logger),
		review.WithCommitTimeout(commitTimeout),
		review.WithPlaybackOptions(
			playback.WithSampleInterval(cfg.Playback.SampleInterval),
			playback.WithFallbackFrameRate(cfg.Playback.FallbackFrameRate),
		),
	)

	a.cleanup = newCleanup(cfg, mediaSvc, a.reviews, jobService, mediaFs, a.logger)

	a.server = api.NewServer(api.OptionsFromConfig(addr, cfg), a.logger)
	a.server.SetDependencies(&types.Dependencies{
		DB:                db,
		MediaService:      mediaSvc,
		AnnotationService: annotationSvc,
		JobService:        jobService,
		Reviews:           a.reviews,
		Logger:            a.logger,
		Version:           Version,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
	})
	return a.server.Initialize()
}

func (a *application) run(ctx context.Context, addr string) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.pool.Start(gctx); err != nil {
		return err
	}
	a.cleanup.Start(gctx)

	g.Go(func() error {
		a.logger.Info("server listening", "address", addr, "reprocess_mode", a.cfg.Reprocess.Mode)
		return a.server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// close releases what build acquired, in reverse order.
func (a *application) close() error {
	var errs error
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.reviews != nil {
		a.reviews.CloseAll()
	}
	if a.db != nil {
		errs = multierr.Append(errs, a.db.Close())
	}
	if a.lock != nil {
		errs = multierr.Append(errs, a.lock.Unlock())
	}
	if errs == nil {
		a.logger.Info("server stopped")
	}
	return errs
}

// lockDataDir takes an exclusive lock on dir so a second server cannot share
// the database and media directory.
func lockDataDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking data directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data directory %s is in use by another server", dir)
	}
	return lock, nil
}

func newReprocessor(cfg *config.Config, annotationSvc *annotations.ServiceImpl, jobService jobs.Service, mediaSvc *media.ServiceImpl, logger *slog.Logger) (review.Reprocessor, error) {
	if cfg.Reprocess.Mode == config.ReprocessRemote {
		client, err := reprocess.NewHTTPClient(reprocess.Config{
			BaseURL: cfg.Reprocess.BaseURL,
			Timeout: cfg.Reprocess.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return reprocess.NewLocal(annotationSvc, jobService, mediaSvc, cfg.Processing.RenderWaitTimeout, logger), nil
}

func newCleanup(cfg *config.Config, mediaSvc *media.ServiceImpl, reviews *review.Manager, jobService jobs.Service, mediaFs afero.Fs, logger *slog.Logger) *cleanup.Service {
	return cleanup.NewService(mediaSvc, reviews, jobService, mediaFs, cleanup.Options{
		Interval:         cfg.Storage.CleanupInterval,
		MaxArtifactAge:   cfg.Storage.MaxArtifactAge,
		MaxSessionIdle:   cfg.Review.MaxIdle,
		JobRetentionDays: cfg.Storage.JobRetentionDays,
	}, logger)
}
