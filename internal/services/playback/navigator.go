package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
	"github.com/killallgit/trackreview-api/pkg/frameclock"
)

// Option configures a Navigator.
type Option func(*Navigator)

// WithSampleInterval sets the period of the sampling loop.
func WithSampleInterval(d time.Duration) Option {
	return func(n *Navigator) { n.sampler = NewSampler(d) }
}

// WithFallbackFrameRate overrides frameclock.FallbackFrameRate.
func WithFallbackFrameRate(rate float64) Option {
	return func(n *Navigator) {
		if rate > 0 && !math.IsInf(rate, 0) {
			n.fallbackRate = rate
		}
	}
}

// WithLogger sets the navigator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) { n.logger = logger }
}

// Navigator owns the playback state of one review session. It converts
// reviewer intents (seek, previous, next, play, pause) into surface commands
// and keeps State in step with the surface. All methods are safe for
// concurrent use; the sampling goroutine takes the same lock.
type Navigator struct {
	mu sync.Mutex

	surface      Surface
	media        Media
	rate         float64
	approximate  bool
	fallbackRate float64
	index        *keyframes.Index
	playing      bool
	closed       bool
	state        State

	sampler *Sampler
	logger  *slog.Logger
}

// NewNavigator loads media into surface and positions playback at frame 0.
func NewNavigator(surface Surface, media Media, index *keyframes.Index, opts ...Option) *Navigator {
	n := &Navigator{
		surface:      surface,
		index:        index,
		fallbackRate: frameclock.FallbackFrameRate,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sampler == nil {
		n.sampler = NewSampler(DefaultSampleInterval)
	}
	n.logger = logging.WithComponent(n.logger, "playback")

	n.loadLocked(media)
	return n
}

// State returns the most recent snapshot.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Media returns the active media source.
func (n *Navigator) Media() Media {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.media
}

// Sampling reports whether the sampling loop is running.
func (n *Navigator) Sampling() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sampler.Running()
}

// Sample reads the surface once and refreshes the snapshot, handling the end
// of media the same way a sampling tick does.
func (n *Navigator) Sample() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sampleLocked()
	return n.state
}

// SeekToFrame moves playback to the start of frame, clamped to the media.
func (n *Navigator) SeekToFrame(frame int) State {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seekLocked(frame)
	return n.state
}

// SeekToPercent moves playback to a slider position. It needs a known duration.
func (n *Navigator) SeekToPercent(percent float64) (State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, err := frameclock.TimeAtPercent(percent, n.media.DurationSeconds)
	if err != nil {
		return n.state, err
	}
	n.surface.Seek(t)
	n.refreshLocked()
	return n.state, nil
}

// Previous steps to the key frame before the cursor. With no cursor it goes
// to the first key frame, and with nothing earlier it goes to frame 0.
func (n *Navigator) Previous() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sampleLocked()
	cursor := n.state.KeyFrameCursor
	target := 0
	switch {
	case cursor > 0:
		e, _ := n.index.Before(cursor)
		target = e.Frame
	case cursor == -1 && !n.index.Empty():
		e, _ := n.index.First()
		target = e.Frame
	}
	n.seekLocked(target)
	return n.state
}

// Next steps to the key frame after the cursor. With no cursor it goes to the
// first key frame, and past the last key frame it goes to the final frame.
// Once on the final frame further calls stay there.
func (n *Navigator) Next() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sampleLocked()
	cursor := n.state.KeyFrameCursor
	final := n.finalFrameLocked()
	target := final
	if e, ok := n.index.After(cursor); ok && !(cursor == -1 && n.atFinalFrameLocked(final)) {
		target = e.Frame
	}
	n.seekLocked(target)
	return n.state
}

// Play starts the surface and the sampling loop.
func (n *Navigator) Play() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return n.state
	}
	n.surface.Play()
	n.playing = true
	n.sampler.Start(context.Background(), n.tick)
	n.refreshLocked()
	return n.state
}

// Pause stops the surface and cancels the sampling loop.
func (n *Navigator) Pause() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pauseLocked()
	return n.state
}

// Toggle flips between Play and Pause.
func (n *Navigator) Toggle() State {
	n.mu.Lock()
	playing := n.playing
	n.mu.Unlock()

	if playing {
		return n.Pause()
	}
	return n.Play()
}

// SetIndex replaces the key-frame index and recomputes the cursor.
func (n *Navigator) SetIndex(index *keyframes.Index) State {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.index = index
	n.refreshLocked()
	return n.state
}

// SetMedia swaps the media source. Playback is paused and the reviewer is
// returned to the frame they were on, clamped to the new media.
func (n *Navigator) SetMedia(media Media) State {
	n.mu.Lock()
	defer n.mu.Unlock()

	frame := n.state.CurrentFrame
	n.pauseLocked()
	n.loadLocked(media)
	n.seekLocked(frame)
	return n.state
}

// Close pauses playback and waits for the sampling goroutine to exit.
func (n *Navigator) Close() {
	n.mu.Lock()
	n.closed = true
	n.surface.Pause()
	n.playing = false
	done := n.sampler.Stop()
	n.refreshLocked()
	n.mu.Unlock()

	<-done
}

func (n *Navigator) tick(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	n.sampleLocked()
}

func (n *Navigator) sampleLocked() {
	if n.playing && (n.surface.Ended() || n.surface.Paused()) {
		n.logger.Debug("media ended", "frame", frameclock.FrameIndexAt(n.surface.CurrentTime(), n.rate))
		n.playing = false
		n.sampler.Stop()
	}
	n.refreshLocked()
}

func (n *Navigator) pauseLocked() {
	n.surface.Pause()
	n.playing = false
	n.sampler.Stop()
	n.refreshLocked()
}

func (n *Navigator) seekLocked(frame int) {
	if frame < 0 {
		frame = 0
	}
	t := frameclock.TimeAt(frame, n.rate)
	if n.durationKnownLocked() && t > n.media.DurationSeconds {
		t = n.media.DurationSeconds
	}
	n.surface.Seek(t)
	n.refreshLocked()
}

func (n *Navigator) loadLocked(media Media) {
	n.media = media
	n.media.DurationSeconds = sanitizeDuration(media.DurationSeconds)

	switch {
	case media.FrameRate > 0 && !math.IsInf(media.FrameRate, 0):
		n.rate, n.approximate = media.FrameRate, false
	default:
		n.rate, n.approximate = frameclock.ResolveFrameRate(media.DecodedFrames, n.media.DurationSeconds)
		if n.approximate {
			n.rate = n.fallbackRate
		}
	}
	if n.approximate {
		n.logger.Warn("frame rate unavailable, using fallback", "rate", n.rate, "url", media.URL)
	}

	n.surface.Load(media.URL, n.media.DurationSeconds)
	n.refreshLocked()
}

func (n *Navigator) finalFrameLocked() int {
	last, err := frameclock.LastFrame(n.media.DurationSeconds, n.rate)
	if err != nil {
		return n.state.CurrentFrame
	}
	return last
}

func (n *Navigator) atFinalFrameLocked(final int) bool {
	return n.durationKnownLocked() && n.state.CurrentFrame >= final
}

func (n *Navigator) durationKnownLocked() bool {
	return n.media.DurationSeconds > 0
}

// refreshLocked recomputes every derived field from the surface time.
func (n *Navigator) refreshLocked() {
	t := n.surface.CurrentTime()
	frame := frameclock.FrameIndexAt(t, n.rate)
	cursor := n.index.IndexOf(frame)

	var trackID string
	if e, ok := n.index.At(cursor); ok {
		trackID = e.TrackID
	}
	progress, err := frameclock.ProgressPercent(t, n.media.DurationSeconds)
	if err != nil {
		progress = 0
	}

	n.state = State{
		TimeSeconds:          t,
		DurationSeconds:      n.media.DurationSeconds,
		DurationKnown:        n.durationKnownLocked(),
		FrameRate:            n.rate,
		FrameRateApproximate: n.approximate,
		IsPlaying:            n.playing,
		CurrentFrame:         frame,
		ProgressPercent:      progress,
		KeyFrameCursor:       cursor,
		CurrentTrackID:       trackID,
	}
}
