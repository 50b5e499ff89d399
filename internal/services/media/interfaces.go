package media

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/pkg/ffmpeg"
)

// ErrUnsupportedMedia is returned for uploads that are not video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Repository defines the interface for video and rendition data access
type Repository interface {
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideoByUUID(ctx context.Context, uuid string) (*models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)

	// StaleRenditions lists renditions created before cutoff that no video
	// currently plays.
	StaleRenditions(ctx context.Context, cutoff time.Time) ([]models.Rendition, error)
	DeleteRendition(ctx context.Context, id uint) error
}

// Prober reads stream metadata from a stored file.
type Prober interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoMetadata, error)
}

// Service defines the interface for media business logic
type Service interface {
	Upload(ctx context.Context, originalName string, r io.Reader) (*models.Video, error)
	Get(ctx context.Context, videoUUID string) (*models.Video, error)
	List(ctx context.Context) ([]models.Video, error)

	// Media resolves what a review session should play, making a Service
	// usable as a review.MediaSource.
	Media(ctx context.Context, videoUUID string) (playback.Media, error)

	// Open returns a stored file for serving.
	Open(name string) (afero.File, error)
	// LocalPath is where external tools read and write a stored file.
	LocalPath(name string) string
	// NewRenditionName reserves a file name for a render of the video.
	NewRenditionName(video *models.Video) string
	FileSize(name string) int64
	PruneRenditions(ctx context.Context, olderThan time.Duration) (int, error)
}
