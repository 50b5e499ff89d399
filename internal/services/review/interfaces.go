// Package review ties playback, key frames and corrections together into
// review sessions, one per reviewer and video.
package review

import (
	"context"
	"errors"

	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/pkg/frameclock"
)

// Errors surfaced by review sessions. The core ones are re-exported so
// callers only need this package to classify failures.
var (
	ErrInvalidDuration    = frameclock.ErrInvalidDuration
	ErrPreconditionNotMet = corrections.ErrPreconditionNotMet
	ErrValidation         = corrections.ErrValidation
	ErrNotEditing         = corrections.ErrNotEditing
	ErrNothingToCommit    = corrections.ErrNothingToCommit
	ErrCommitInFlight     = corrections.ErrCommitInFlight
	ErrReprocessFailed    = corrections.ErrReprocessFailed

	ErrMalformedAnnotationData = errors.New("malformed annotation data")
	ErrMediaUnavailable        = errors.New("media unavailable")
	ErrVideoNotFound           = errors.New("video not found")
	ErrSessionNotFound         = errors.New("review session not found")
	ErrSessionClosed           = errors.New("review session closed")
	ErrEditInProgress          = errors.New("an edit is open; save or cancel it first")
)

// KeyFrameSource supplies identity-switch candidates for a video. It is
// queried when a session opens and again after every successful commit.
type KeyFrameSource interface {
	KeyFrames(ctx context.Context, videoID string) ([]keyframes.Entry, error)
	AnnotationsLoaded(ctx context.Context, videoID string) (bool, error)
}

// MediaSource resolves the playable media for a video.
type MediaSource interface {
	Media(ctx context.Context, videoID string) (playback.Media, error)
}

// Reprocessor is the backend that applies committed directives.
type Reprocessor = corrections.Reprocessor

// SurfaceFactory creates the playback surface for a newly opened session.
type SurfaceFactory func(media playback.Media) playback.Surface
