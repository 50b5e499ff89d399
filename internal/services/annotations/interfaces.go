package annotations

import (
	"context"
	"errors"
	"io"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
)

// ErrStaleBase is returned when a render was queued against media the video
// no longer plays, so its remaps would land on annotations it never saw.
var ErrStaleBase = errors.New("annotations changed since the render was queued")

// Repository defines the interface for detection data access
type Repository interface {
	// Read operations
	GetVideoByUUID(ctx context.Context, uuid string) (*models.Video, error)
	GetDetections(ctx context.Context, videoID uint) ([]models.Detection, error)

	// Write operations, each in a single transaction
	ReplaceDetections(ctx context.Context, videoID uint, detections []models.Detection) error
	CommitRender(ctx context.Context, videoID uint, baseMedia string, remaps []corrections.Directive, rendition *models.Rendition) (int64, error)
}

// Service defines the interface for annotation business logic
type Service interface {
	Import(ctx context.Context, videoUUID string, r io.Reader) (*ImportResult, error)
	Detections(ctx context.Context, videoUUID string) ([]models.Detection, error)

	// KeyFrames and AnnotationsLoaded make a Service usable as a review.KeyFrameSource.
	KeyFrames(ctx context.Context, videoUUID string) ([]keyframes.Entry, error)
	AnnotationsLoaded(ctx context.Context, videoUUID string) (bool, error)
	TrackSummaries(ctx context.Context, videoUUID string) ([]models.TrackSummary, error)

	// CommitRender persists a finished render together with the remaps it
	// was drawn from.
	CommitRender(ctx context.Context, videoUUID, baseMedia string, directives []corrections.Directive, rendition *models.Rendition) (int64, error)
}

// ImportResult summarises an imported tracking file.
type ImportResult struct {
	VideoID    string `json:"video_id"`
	Detections int    `json:"detections"`
	Tracks     int    `json:"tracks"`
	Frames     int    `json:"frames"`
	KeyFrames  int    `json:"key_frames"`
}
