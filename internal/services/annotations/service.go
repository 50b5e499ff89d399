package annotations

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// Option configures the service.
type Option func(*ServiceImpl)

func WithMinConfidence(c float64) Option {
	return func(s *ServiceImpl) { s.minConfidence = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ServiceImpl) { s.logger = logger }
}

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	repository    Repository
	minConfidence float64
	logger        *slog.Logger

	// assess collapses concurrent assessments of the same video.
	assess singleflight.Group
}

// NewService creates a new annotation service
func NewService(repository Repository, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		repository:    repository,
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "annotations")
	return s
}

// Import parses a tracking CSV and replaces the video's detections with it.
// Nothing is stored when the file is malformed.
func (s *ServiceImpl) Import(ctx context.Context, videoUUID string, r io.Reader) (*ImportResult, error) {
	video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
	if err != nil {
		return nil, err
	}

	detections, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	if err := s.repository.ReplaceDetections(ctx, video.ID, detections); err != nil {
		return nil, err
	}

	frames := make(map[int]struct{})
	for _, d := range detections {
		frames[d.Frame] = struct{}{}
	}
	summaries := Assess(detections, s.minConfidence)
	s.assess.Forget(videoUUID)

	result := &ImportResult{
		VideoID:    videoUUID,
		Detections: len(detections),
		Tracks:     len(summaries),
		Frames:     len(frames),
		KeyFrames:  keyframes.Build(EndFrames(summaries)).Len(),
	}
	logging.WithVideo(s.logger, videoUUID).Info("annotations imported",
		"detections", result.Detections, "tracks", result.Tracks, "key_frames", result.KeyFrames)
	return result, nil
}

// Detections returns the stored detections ordered by frame.
func (s *ServiceImpl) Detections(ctx context.Context, videoUUID string) ([]models.Detection, error) {
	video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	return s.repository.GetDetections(ctx, video.ID)
}

// AnnotationsLoaded reports whether tracking data was imported for the video.
func (s *ServiceImpl) AnnotationsLoaded(ctx context.Context, videoUUID string) (bool, error) {
	video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
	if err != nil {
		return false, err
	}
	return video.HasAnnotations(), nil
}

// TrackSummaries assesses the current detections of a video.
func (s *ServiceImpl) TrackSummaries(ctx context.Context, videoUUID string) ([]models.TrackSummary, error) {
	v, err, _ := s.assess.Do(videoUUID, func() (any, error) {
		video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
		if err != nil {
			return nil, err
		}
		if !video.HasAnnotations() {
			return nil, fmt.Errorf("%w: no annotations imported for video %s", review.ErrMalformedAnnotationData, videoUUID)
		}
		detections, err := s.repository.GetDetections(ctx, video.ID)
		if err != nil {
			return nil, err
		}
		return Assess(detections, s.minConfidence), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TrackSummary), nil
}

// KeyFrames returns each track's end frame, the refresh source for review sessions.
func (s *ServiceImpl) KeyFrames(ctx context.Context, videoUUID string) ([]keyframes.Entry, error) {
	summaries, err := s.TrackSummaries(ctx, videoUUID)
	if err != nil {
		return nil, err
	}
	return EndFrames(summaries), nil
}

// CommitRender validates the directives and stores the render with them
// applied. The assessment cache is dropped once track ids have moved.
func (s *ServiceImpl) CommitRender(ctx context.Context, videoUUID, baseMedia string, directives []corrections.Directive, rendition *models.Rendition) (int64, error) {
	for _, d := range directives {
		if err := d.Validate(); err != nil {
			return 0, err
		}
	}
	video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
	if err != nil {
		return 0, err
	}
	if len(directives) > 0 && !video.HasAnnotations() {
		return 0, fmt.Errorf("%w: no annotations imported", review.ErrPreconditionNotMet)
	}

	n, err := s.repository.CommitRender(ctx, video.ID, baseMedia, directives, rendition)
	if err != nil {
		return 0, err
	}
	if len(directives) > 0 {
		s.assess.Forget(videoUUID)
	}
	logging.WithVideo(s.logger, videoUUID).Info("render committed",
		"rendition", rendition.ID, "directives", len(directives), "rows", n)
	return n, nil
}
