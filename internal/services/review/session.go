package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/internal/services/playback"
)

// SaveMode selects what happens to a directive saved from the edit dialog.
type SaveMode string

const (
	// SaveToLog queues the directive for a later batch commit.
	SaveToLog SaveMode = "log"
	// SaveAndApply commits the directive immediately on its own.
	SaveAndApply SaveMode = "apply"
)

// View is a point-in-time snapshot of a session.
type View struct {
	ID                string                   `json:"id"`
	VideoID           string                   `json:"videoId"`
	Media             playback.Media           `json:"media"`
	Playback          playback.State           `json:"playback"`
	Edit              corrections.EditSnapshot `json:"edit"`
	Log               []corrections.Directive  `json:"log"`
	KeyFrames         []keyframes.Entry        `json:"keyFrames"`
	AnnotationsLoaded bool                     `json:"annotationsLoaded"`
	CommitInFlight    bool                     `json:"commitInFlight"`
	CreatedAt         time.Time                `json:"createdAt"`
}

// CommitResult is returned by a successful commit. The commit itself is
// final; a failed key-frame refresh afterwards is reported in RefreshError.
type CommitResult struct {
	corrections.Outcome
	Playback     playback.State `json:"playback"`
	KeyFrames    int            `json:"keyFrames"`
	RefreshError string         `json:"refreshError,omitempty"`
}

// Session is one reviewer's pass over one video. Lock order is Session.mu,
// then the Navigator's and Committer's internal locks. Backend calls are
// made without Session.mu held.
type Session struct {
	ID        string
	VideoID   string
	CreatedAt time.Time

	nav       *playback.Navigator
	committer *corrections.Committer
	source    KeyFrameSource
	logger    *slog.Logger

	mu                sync.Mutex
	editor            *corrections.Editor
	index             *keyframes.Index
	annotationsLoaded bool
	closed            bool
	lastActive        time.Time
}

// View returns the session's current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	return View{
		ID:                s.ID,
		VideoID:           s.VideoID,
		Media:             s.nav.Media(),
		Playback:          s.nav.Sample(),
		Edit:              s.editor.Snapshot(),
		Log:               s.committer.Directives(),
		KeyFrames:         s.index.Entries(),
		AnnotationsLoaded: s.annotationsLoaded,
		CommitInFlight:    s.committer.InFlight(),
		CreatedAt:         s.CreatedAt,
	}
}

// Play starts playback. It is refused while an edit is open.
func (s *Session) Play() (playback.State, error) {
	return s.withIdleNav(func(n *playback.Navigator) playback.State { return n.Play() })
}

// Pause stops playback. Always allowed.
func (s *Session) Pause() (playback.State, error) {
	return s.withNav(func(n *playback.Navigator) playback.State { return n.Pause() })
}

// Toggle flips between playing and paused. An open edit keeps playback
// paused, so toggling is refused while one is open.
func (s *Session) Toggle() (playback.State, error) {
	return s.withIdleNav(func(n *playback.Navigator) playback.State { return n.Toggle() })
}

// Previous steps to the key frame before the cursor.
func (s *Session) Previous() (playback.State, error) {
	return s.withNav(func(n *playback.Navigator) playback.State { return n.Previous() })
}

// Next steps to the key frame after the cursor, or to the final frame past the last one.
func (s *Session) Next() (playback.State, error) {
	return s.withNav(func(n *playback.Navigator) playback.State { return n.Next() })
}

// SeekToFrame moves to frame, clamped to the media.
func (s *Session) SeekToFrame(frame int) (playback.State, error) {
	return s.withNav(func(n *playback.Navigator) playback.State { return n.SeekToFrame(frame) })
}

// SeekToPercent moves to a share of the duration. It needs a known duration.
func (s *Session) SeekToPercent(percent float64) (playback.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return playback.State{}, err
	}
	return s.nav.SeekToPercent(percent)
}

// Refresh re-fetches key frames and rebuilds the index. On failure the
// existing index is kept.
func (s *Session) Refresh(ctx context.Context) (int, error) {
	if err := s.active(); err != nil {
		return 0, err
	}

	loaded, err := s.source.AnnotationsLoaded(ctx, s.VideoID)
	if err != nil {
		return 0, err
	}
	var entries []keyframes.Entry
	if loaded {
		entries, err = s.source.KeyFrames(ctx, s.VideoID)
		if err != nil {
			return 0, err
		}
	}
	index := keyframes.Build(entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return 0, err
	}
	s.index = index
	s.annotationsLoaded = loaded
	s.nav.SetIndex(index)
	s.logger.Debug("key frames refreshed", "count", index.Len(), "annotations_loaded", loaded)
	return index.Len(), nil
}

// OpenEdit starts an edit on the current frame. Playback is paused and the
// sampling loop stopped. Opening while an edit is open changes nothing.
func (s *Session) OpenEdit() (corrections.EditSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return corrections.EditSnapshot{}, err
	}
	if s.editor.Editing() {
		return s.editor.Snapshot(), nil
	}
	if !s.annotationsLoaded {
		return s.editor.Snapshot(), fmt.Errorf("%w: upload annotations before editing", ErrPreconditionNotMet)
	}

	state := s.nav.Pause()
	if _, err := s.editor.Open(true, state.CurrentFrame); err != nil {
		return s.editor.Snapshot(), err
	}
	s.logger.Info("edit opened", "frame", state.CurrentFrame)
	return s.editor.Snapshot(), nil
}

// SetDraft records the dialog fields of the open edit.
func (s *Session) SetDraft(oldID, newID string) (corrections.EditSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return corrections.EditSnapshot{}, err
	}
	if err := s.editor.SetDraft(oldID, newID); err != nil {
		return s.editor.Snapshot(), err
	}
	return s.editor.Snapshot(), nil
}

// CancelEdit closes the dialog and drops its drafts.
func (s *Session) CancelEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return err
	}
	s.editor.Cancel()
	return nil
}

// SaveEdit validates the dialog fields and forwards the directive. In
// SaveToLog mode it is appended to the log and the result is nil. In
// SaveAndApply mode it is committed on its own; the edit stays open if the
// commit fails.
func (s *Session) SaveEdit(ctx context.Context, oldID, newID string, mode SaveMode) (corrections.Directive, *CommitResult, error) {
	switch mode {
	case SaveToLog, "":
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.activeLocked(); err != nil {
			return corrections.Directive{}, nil, err
		}
		d, err := s.editor.Save(oldID, newID, s.committer.Append)
		return d, nil, err

	case SaveAndApply:
		s.mu.Lock()
		if err := s.activeLocked(); err != nil {
			s.mu.Unlock()
			return corrections.Directive{}, nil, err
		}
		d, err := s.editor.Prepare(oldID, newID)
		s.mu.Unlock()
		if err != nil {
			return corrections.Directive{}, nil, err
		}

		out, err := s.committer.CommitOne(ctx, s.VideoID, s.nav.Media(), d)
		if err != nil {
			return d, nil, err
		}

		s.mu.Lock()
		if snap := s.editor.Snapshot(); snap.TargetFrame != nil && *snap.TargetFrame == d.Frame {
			s.editor.Finish()
		}
		s.mu.Unlock()

		res := s.applyOutcome(ctx, out)
		return d, &res, nil

	default:
		return corrections.Directive{}, nil, fmt.Errorf("%w: unknown save mode %q", ErrValidation, mode)
	}
}

// AppendDirective adds a directive to the log directly, without the dialog.
func (s *Session) AppendDirective(frame int, oldID, newID string) (corrections.Directive, error) {
	d, err := corrections.NewDirective(frame, oldID, newID)
	if err != nil {
		return corrections.Directive{}, err
	}
	if err := s.active(); err != nil {
		return corrections.Directive{}, err
	}
	if err := s.committer.Append(d); err != nil {
		return corrections.Directive{}, err
	}
	return d, nil
}

// Log returns the directives waiting for a batch commit.
func (s *Session) Log() []corrections.Directive {
	return s.committer.Directives()
}

// CommitAll sends the whole log as one batch. On success the new media
// replaces the current source and key frames are refreshed.
func (s *Session) CommitAll(ctx context.Context) (CommitResult, error) {
	if err := s.active(); err != nil {
		return CommitResult{}, err
	}
	out, err := s.committer.CommitAll(ctx, s.VideoID, s.nav.Media())
	if err != nil {
		return CommitResult{}, err
	}
	return s.applyOutcome(ctx, out), nil
}

// Close stops playback and the sampling loop. In-flight commits are left to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.editor.Cancel()
	s.mu.Unlock()

	s.nav.Close()
	s.logger.Info("review session closed")
}

// LastActive reports when the session last served a request.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// applyOutcome swaps in the new media and refreshes key frames. The commit
// already happened, so the refresh does not stop when the caller goes away.
func (s *Session) applyOutcome(ctx context.Context, out corrections.Outcome) CommitResult {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	state := s.nav.State()
	if !s.closed {
		state = s.nav.SetMedia(out.NewMedia)
	}
	s.mu.Unlock()

	res := CommitResult{Outcome: out, Playback: state}
	n, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Warn("key frame refresh after commit failed", "error", err)
		res.RefreshError = err.Error()
		return res
	}
	res.KeyFrames = n
	res.Playback = s.nav.State()
	return res
}

func (s *Session) withNav(fn func(n *playback.Navigator) playback.State) (playback.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return playback.State{}, err
	}
	return fn(s.nav), nil
}

// withIdleNav is withNav for actions that would start playback.
func (s *Session) withIdleNav(fn func(n *playback.Navigator) playback.State) (playback.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return playback.State{}, err
	}
	if s.editor.Editing() {
		return s.nav.State(), ErrEditInProgress
	}
	return fn(s.nav), nil
}

func (s *Session) active() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Session) activeLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	return nil
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}
