package types

import (
	"log/slog"

	"github.com/killallgit/trackreview-api/internal/database"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
	"github.com/killallgit/trackreview-api/internal/services/media"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// Dependencies holds all the dependencies needed by handlers
type Dependencies struct {
	DB                *database.DB
	MediaService      media.Service
	AnnotationService annotations.Service
	JobService        jobs.Service
	Reviews           *review.Manager
	Logger            *slog.Logger
	Version           string
	// MaxUploadBytes caps multipart uploads; zero means no cap.
	MaxUploadBytes int64
}
