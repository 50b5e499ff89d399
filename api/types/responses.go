package types

import (
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// Status constants for API responses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// BaseResponse contains fields common to all API responses
type BaseResponse struct {
	Status  string `json:"status"`            // One of the Status constants above
	Message string `json:"message,omitempty"` // Human-readable message
}

// ErrorResponse for detailed error information
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`   // Error code
	Details any    `json:"details,omitempty"` // Additional error details
}

// HealthResponse for health check endpoint
type HealthResponse struct {
	BaseResponse
	Version  string         `json:"version,omitempty"`
	Services map[string]any `json:"services,omitempty"`
}

// VideoResponse wraps a stored video
type VideoResponse struct {
	BaseResponse
	Video *models.Video   `json:"video"`
	Media *playback.Media `json:"media,omitempty"`
}

// VideosResponse lists stored videos
type VideosResponse struct {
	BaseResponse
	Videos []models.Video `json:"videos"`
	Count  int            `json:"count"`
}

// ImportResponse reports an annotation import and the render it queued
type ImportResponse struct {
	BaseResponse
	Import *annotations.ImportResult `json:"import"`
	JobID  uint                      `json:"jobId,omitempty"`
}

// KeyFramesResponse lists a video's key frames
type KeyFramesResponse struct {
	BaseResponse
	KeyFrames []keyframes.Entry `json:"keyFrames"`
	Count     int               `json:"count"`
}

// TracksResponse lists per-track summaries
type TracksResponse struct {
	BaseResponse
	Tracks []models.TrackSummary `json:"tracks"`
	Count  int                   `json:"count"`
}

// JobResponse reports a background job
type JobResponse struct {
	BaseResponse
	Job *models.Job `json:"job"`
}

// ReviewResponse is a full session snapshot
type ReviewResponse struct {
	BaseResponse
	Review review.View `json:"review"`
}

// ReviewsResponse lists open sessions
type ReviewsResponse struct {
	BaseResponse
	Reviews []review.View `json:"reviews"`
	Count   int           `json:"count"`
}

// PlaybackResponse reports playback after a transport or navigation call
type PlaybackResponse struct {
	BaseResponse
	Playback playback.State `json:"playback"`
}

// RefreshResponse reports a key-frame refresh
type RefreshResponse struct {
	BaseResponse
	KeyFrames int `json:"keyFrames"`
}

// EditResponse reports the edit dialog state
type EditResponse struct {
	BaseResponse
	Edit corrections.EditSnapshot `json:"edit"`
}

// SaveEditResponse reports a saved edit. Commit is set in apply mode.
type SaveEditResponse struct {
	BaseResponse
	Directive corrections.Directive `json:"directive"`
	Commit    *review.CommitResult  `json:"commit,omitempty"`
}

// DirectiveResponse reports a directive appended to the log
type DirectiveResponse struct {
	BaseResponse
	Directive corrections.Directive `json:"directive"`
}

// LogResponse lists the correction log
type LogResponse struct {
	BaseResponse
	Log   []corrections.Directive `json:"log"`
	Count int                     `json:"count"`
}

// CommitResponse reports a batch commit
type CommitResponse struct {
	BaseResponse
	Commit review.CommitResult `json:"commit"`
}
