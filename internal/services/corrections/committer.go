package corrections

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/services/playback"
)

// Target selects what a reprocessing request applies to: a single frame or
// the whole batch from the log.
type Target struct {
	Frame *int `json:"frame,omitempty"`
	Batch bool `json:"batch"`
}

// Request is sent to the reprocessing backend.
type Request struct {
	VideoID     string         `json:"videoId"`
	Target      Target         `json:"target"`
	Directives  []Directive    `json:"directives"`
	ActiveMedia playback.Media `json:"activeMedia"`
}

// Response is the backend's answer. NewMedia is set on success.
type Response struct {
	Success  bool            `json:"success"`
	NewMedia *playback.Media `json:"newMedia,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Reprocessor applies directives to the stored annotations and produces a
// new rendition of the media.
type Reprocessor interface {
	Reprocess(ctx context.Context, req Request) (Response, error)
}

// Outcome describes a successful commit.
type Outcome struct {
	NewMedia  playback.Media `json:"newMedia"`
	Message   string         `json:"message,omitempty"`
	Committed []Directive    `json:"committed"`
	Batch     bool           `json:"batch"`
}

// DefaultCommitTimeout bounds a backend call when no timeout is set.
const DefaultCommitTimeout = 15 * time.Minute

// Committer owns the correction log and sends directives to the backend,
// one commit at a time. It is safe for concurrent use. The backend call is
// made without holding the lock, so appends may continue during a commit.
// Once started, a commit is not cancelled with the caller's context; only
// the commit timeout ends it early.
type Committer struct {
	mu       sync.Mutex
	log      *Log
	backend  Reprocessor
	inFlight bool
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCommitter creates a committer with an empty log that sends to backend.
func NewCommitter(backend Reprocessor, logger *slog.Logger) *Committer {
	return &Committer{
		log:     NewLog(),
		backend: backend,
		timeout: DefaultCommitTimeout,
		logger:  logging.WithComponent(logger, "committer"),
	}
}

// SetTimeout bounds each backend call. Non-positive values are ignored.
func (c *Committer) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.timeout = d
	}
}

// Append adds a validated directive to the log.
func (c *Committer) Append(d Directive) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Append(d)
}

// Directives returns the pending log.
func (c *Committer) Directives() []Directive {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Directives()
}

// InFlight reports whether a commit is waiting on the backend.
func (c *Committer) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// CommitAll sends every logged directive, in order, as one batch. The log is
// cleared only when the backend reports success, and only of the directives
// that were sent. There is no automatic retry.
func (c *Committer) CommitAll(ctx context.Context, videoID string, active playback.Media) (Outcome, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Outcome{}, ErrCommitInFlight
	}
	if c.log.IsEmpty() {
		c.mu.Unlock()
		return Outcome{}, ErrNothingToCommit
	}
	snap := c.log.Snapshot()
	c.inFlight = true
	timeout := c.timeout
	c.mu.Unlock()

	req := Request{
		VideoID:     videoID,
		Target:      Target{Batch: true},
		Directives:  snap.Directives,
		ActiveMedia: active,
	}
	out, err := c.send(ctx, req, timeout)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return Outcome{}, err
	}
	c.log.ClearThrough(snap)
	c.logger.Info("batch committed", "video_id", videoID, "directives", len(snap.Directives), "remaining", c.log.Len())
	return out, nil
}

// CommitOne sends a single directive immediately, bypassing the log.
func (c *Committer) CommitOne(ctx context.Context, videoID string, active playback.Media, d Directive) (Outcome, error) {
	if err := d.Validate(); err != nil {
		return Outcome{}, err
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Outcome{}, ErrCommitInFlight
	}
	c.inFlight = true
	timeout := c.timeout
	c.mu.Unlock()

	frame := d.Frame
	req := Request{
		VideoID:     videoID,
		Target:      Target{Frame: &frame},
		Directives:  []Directive{d},
		ActiveMedia: active,
	}
	out, err := c.send(ctx, req, timeout)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	c.logger.Info("directive committed", "video_id", videoID, "frame", d.Frame, "old_id", d.OldID, "new_id", d.NewID)
	return out, nil
}

func (c *Committer) send(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	resp, err := c.backend.Reprocess(ctx, req)
	if err != nil {
		c.logger.Warn("reprocess call failed", "video_id", req.VideoID, "error", err)
		return Outcome{}, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return Outcome{}, fmt.Errorf("%w: %s", ErrReprocessFailed, msg)
	}
	if resp.NewMedia == nil || resp.NewMedia.URL == "" {
		return Outcome{}, fmt.Errorf("%w: no media returned", ErrReprocessFailed)
	}
	return Outcome{
		NewMedia:  *resp.NewMedia,
		Message:   resp.Message,
		Committed: req.Directives,
		Batch:     req.Target.Batch,
	}, nil
}
