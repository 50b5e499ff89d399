package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
	"github.com/killallgit/trackreview-api/internal/services/review"
	"github.com/killallgit/trackreview-api/pkg/ffmpeg"
)

// VideoStore is the part of the media service a render needs.
type VideoStore interface {
	Get(ctx context.Context, videoUUID string) (*models.Video, error)
	LocalPath(name string) string
	NewRenditionName(video *models.Video) string
	FileSize(name string) int64
}

// DetectionStore supplies the tracking rows to draw and records the render
// once it exists.
type DetectionStore interface {
	Detections(ctx context.Context, videoUUID string) ([]models.Detection, error)
	CommitRender(ctx context.Context, videoUUID, baseMedia string, directives []corrections.Directive, rendition *models.Rendition) (int64, error)
}

// Renderer burns boxes into a video.
type Renderer interface {
	RenderOverlay(ctx context.Context, input, output string, boxes []ffmpeg.Box, opts ffmpeg.RenderOptions, progress ffmpeg.ProgressFunc) error
}

// detectionEnv is what a render filter expression can see.
type detectionEnv struct {
	Frame      int     `expr:"frame"`
	TrackID    string  `expr:"track_id"`
	ClassID    int     `expr:"class_id"`
	Confidence float64 `expr:"confidence"`
	Width      float64 `expr:"width"`
	Height     float64 `expr:"height"`
}

// CompileRenderFilter compiles a boolean expression over a detection, for
// example `confidence > 0.5 && class_id == 0`. An empty expression draws
// everything and compiles to nil.
func CompileRenderFilter(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(detectionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling render filter: %w", err)
	}
	return program, nil
}

// RenderProcessor processes render jobs: it draws every tracked detection
// onto the source video and makes the result the video's active media.
// Remaps carried by the job are applied in memory for the render and only
// written back together with the rendition, so a failed render leaves the
// stored annotations as they were.
type RenderProcessor struct {
	jobService jobs.Runner
	videos     VideoStore
	detections DetectionStore
	renderer   Renderer
	options    ffmpeg.RenderOptions
	filter     *vm.Program
	logger     *slog.Logger
}

// NewRenderProcessor creates a render processor. filter may be nil.
func NewRenderProcessor(
	jobService jobs.Runner,
	videos VideoStore,
	detections DetectionStore,
	renderer Renderer,
	options ffmpeg.RenderOptions,
	filter *vm.Program,
	logger *slog.Logger,
) *RenderProcessor {
	return &RenderProcessor{
		jobService: jobService,
		videos:     videos,
		detections: detections,
		renderer:   renderer,
		options:    options,
		filter:     filter,
		logger:     logging.WithComponent(logger, "render"),
	}
}

// CanProcess returns true if this processor can handle the job type
func (p *RenderProcessor) CanProcess(jobType models.JobType) bool {
	return jobType == models.JobTypeRender
}

// ProcessJob renders the video named in the job payload.
func (p *RenderProcessor) ProcessJob(ctx context.Context, job *models.Job) error {
	if !p.CanProcess(job.Type) {
		return fmt.Errorf("unsupported job type: %s", job.Type)
	}

	videoUUID, ok := job.GetPayloadString(models.PayloadVideoID)
	if !ok || videoUUID == "" {
		return models.NewInputError("invalid_payload", "render job has no video id", fmt.Sprintf("payload: %v", job.Payload), nil)
	}
	logger := logging.WithVideo(logging.WithJob(p.logger, job.ID), videoUUID)

	p.progress(ctx, logger, job.ID, 5)

	video, err := p.videos.Get(ctx, videoUUID)
	if err != nil {
		if errors.Is(err, review.ErrVideoNotFound) {
			return models.NewNotFoundError("video_not_found", "video not found", videoUUID, err)
		}
		return models.NewSystemError("video_lookup", "failed to load video", err.Error(), err)
	}

	remaps, err := payloadDirectives(job)
	if err != nil {
		return models.NewInputError("invalid_payload", "render job has malformed remaps", err.Error(), err)
	}
	baseMedia, _ := job.GetPayloadString(models.PayloadBaseMedia)
	if baseMedia != "" && video.ActiveFileName() != baseMedia {
		return models.NewInputError("stale_base", annotations.ErrStaleBase.Error(),
			fmt.Sprintf("video plays %s, render started from %s", video.ActiveFileName(), baseMedia), annotations.ErrStaleBase)
	}

	detections, err := p.detections.Detections(ctx, videoUUID)
	if err != nil {
		return models.NewSystemError("detections_lookup", "failed to load detections", err.Error(), err)
	}
	if len(detections) == 0 {
		return models.NewInputError("no_detections", "video has no tracking data to render", videoUUID, nil)
	}
	detections, _ = annotations.ApplyRemaps(detections, remaps)

	boxes, err := p.boxes(detections)
	if err != nil {
		return models.NewInputError("render_filter", "render filter failed", err.Error(), err)
	}

	p.progress(ctx, logger, job.ID, 10)

	name := p.videos.NewRenditionName(video)
	input := p.videos.LocalPath(video.FileName)
	output := p.videos.LocalPath(name)

	logger.Info("rendering overlay", "boxes", len(boxes), "detections", len(detections), "remaps", len(remaps), "output", name)

	err = p.renderer.RenderOverlay(ctx, input, output, boxes, p.options, p.frameProgress(ctx, logger, job.ID, video.FrameCount))
	if err != nil {
		var details string
		var procErr *ffmpeg.ProcessingError
		if errors.As(err, &procErr) {
			details = procErr.Stderr
		}
		if errors.Is(err, ffmpeg.ErrProcessingTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return models.NewProcessingError("ffmpeg_timeout", "render timed out", details, err)
		}
		return models.NewProcessingError("render_failed", err.Error(), details, err)
	}

	rendition := &models.Rendition{
		VideoID:    video.ID,
		FileName:   name,
		JobID:      job.ID,
		SizeBytes:  p.videos.FileSize(name),
		Directives: len(remaps),
	}
	rows, err := p.detections.CommitRender(ctx, videoUUID, baseMedia, remaps, rendition)
	if err != nil {
		if errors.Is(err, annotations.ErrStaleBase) {
			return models.NewInputError("stale_base", annotations.ErrStaleBase.Error(), err.Error(), err)
		}
		return models.NewSystemError("rendition_record", "failed to record rendition", err.Error(), err)
	}

	result := models.JobResult{
		"rendition": rendition.ID,
		"file":      name,
		"boxes":     len(boxes),
		"remapped":  rows,
	}
	if err := p.jobService.CompleteJob(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	logger.Info("render finished", "rendition", rendition.ID, "size_bytes", rendition.SizeBytes)
	return nil
}

// payloadDirectives decodes the remaps a job carries. Payloads read back from
// the database hold generic JSON, so they are re-encoded into directives.
func payloadDirectives(job *models.Job) ([]corrections.Directive, error) {
	raw, ok := job.Payload[models.PayloadRemaps]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var directives []corrections.Directive
	if err := json.Unmarshal(data, &directives); err != nil {
		return nil, err
	}
	for _, d := range directives {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return directives, nil
}

// boxes turns detections into overlay boxes, dropping those the filter rejects.
func (p *RenderProcessor) boxes(detections []models.Detection) ([]ffmpeg.Box, error) {
	boxes := make([]ffmpeg.Box, 0, len(detections))
	for _, d := range detections {
		if p.filter != nil {
			keep, err := expr.Run(p.filter, detectionEnv{
				Frame:      d.Frame,
				TrackID:    d.TrackID,
				ClassID:    d.ClassID,
				Confidence: d.Confidence,
				Width:      d.Width(),
				Height:     d.Height(),
			})
			if err != nil {
				return nil, fmt.Errorf("frame %d track %s: %w", d.Frame, d.TrackID, err)
			}
			if b, ok := keep.(bool); !ok || !b {
				continue
			}
		}
		boxes = append(boxes, ffmpeg.Box{
			Frame: d.Frame,
			X1:    d.X1,
			Y1:    d.Y1,
			X2:    d.X2,
			Y2:    d.Y2,
			Label: d.Label(),
			Key:   d.TrackID,
		})
	}
	return boxes, nil
}

// frameProgress maps encoded frames onto 10-95% job progress, writing only
// when the value moves by at least five points.
func (p *RenderProcessor) frameProgress(ctx context.Context, logger *slog.Logger, jobID uint, totalFrames int64) ffmpeg.ProgressFunc {
	if totalFrames <= 0 {
		return nil
	}
	last := 10
	return func(frame int) {
		pct := 10 + int(85*int64(frame)/totalFrames)
		if pct > 95 {
			pct = 95
		}
		if pct-last < 5 {
			return
		}
		last = pct
		p.progress(ctx, logger, jobID, pct)
	}
}

func (p *RenderProcessor) progress(ctx context.Context, logger *slog.Logger, jobID uint, pct int) {
	if err := p.jobService.UpdateProgress(ctx, jobID, pct); err != nil {
		logger.Warn("failed to update job progress", "progress", pct, "error", err)
	}
}
