package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/internal/services/playback"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSurfaceFactory replaces the virtual playback surface given to new sessions.
func WithSurfaceFactory(f SurfaceFactory) ManagerOption {
	return func(m *Manager) { m.newSurface = f }
}

// WithCommitTimeout bounds how long a session's commit may wait on the
// reprocessing backend.
func WithCommitTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.commitTimeout = d }
}

// WithPlaybackOptions adds options to every session's navigator.
func WithPlaybackOptions(opts ...playback.Option) ManagerOption {
	return func(m *Manager) { m.navOpts = append(m.navOpts, opts...) }
}

// WithLogger sets the logger sessions derive theirs from.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// Manager keeps the open review sessions. Sessions share no mutable state.
type Manager struct {
	media       MediaSource
	keyFrames   KeyFrameSource
	reprocessor Reprocessor
	newSurface  SurfaceFactory
	navOpts     []playback.Option
	logger      *slog.Logger

	commitTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager with no open sessions.
func NewManager(media MediaSource, keyFrames KeyFrameSource, reprocessor Reprocessor, opts ...ManagerOption) *Manager {
	m := &Manager{
		media:       media,
		keyFrames:   keyFrames,
		reprocessor: reprocessor,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newSurface == nil {
		m.newSurface = func(media playback.Media) playback.Surface {
			return playback.NewVirtualSurface(media.URL, media.DurationSeconds, nil)
		}
	}
	m.logger = logging.WithComponent(m.logger, "review")
	return m
}

// Open starts a review of videoID. Media must be resolvable; key frames are
// loaded when annotations exist and the index starts empty otherwise.
func (m *Manager) Open(ctx context.Context, videoID string) (*Session, error) {
	media, err := m.media.Media(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrMediaUnavailable) || errors.Is(err, ErrVideoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	loaded, err := m.keyFrames.AnnotationsLoaded(ctx, videoID)
	if err != nil {
		return nil, err
	}
	var entries []keyframes.Entry
	if loaded {
		if entries, err = m.keyFrames.KeyFrames(ctx, videoID); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	logger := logging.WithVideo(logging.WithSession(m.logger, id), videoID)
	index := keyframes.Build(entries)
	opts := append([]playback.Option{playback.WithLogger(logger)}, m.navOpts...)

	committer := corrections.NewCommitter(m.reprocessor, logger)
	committer.SetTimeout(m.commitTimeout)

	now := time.Now()
	s := &Session{
		ID:                id,
		VideoID:           videoID,
		CreatedAt:         now,
		nav:               playback.NewNavigator(m.newSurface(media), media, index, opts...),
		committer:         committer,
		source:            m.keyFrames,
		logger:            logger,
		editor:            corrections.NewEditor(),
		index:             index,
		annotationsLoaded: loaded,
		lastActive:        now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("review session opened", "key_frames", index.Len(), "media", media.URL)
	return s, nil
}

// Get returns an open session or ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// CloseIdle closes sessions that have not been used for maxIdle and returns
// how many were closed.
func (m *Manager) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []string
	for _, s := range m.List() {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s.ID)
		}
	}
	for _, id := range stale {
		_ = m.Close(id)
	}
	if len(stale) > 0 {
		m.logger.Info("closed idle review sessions", "count", len(stale))
	}
	return len(stale)
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
