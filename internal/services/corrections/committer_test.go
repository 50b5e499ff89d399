package corrections

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReprocessor struct {
	mock.Mock
}

func (m *MockReprocessor) Reprocess(ctx context.Context, req Request) (Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Response), args.Error(1)
}

var activeMedia = playback.Media{URL: "/media/source.mp4", DurationSeconds: 10, FrameRate: 30}

func renderedResponse() Response {
	return Response{Success: true, NewMedia: &playback.Media{URL: "/media/rendered.mp4", DurationSeconds: 10, FrameRate: 30}}
}

func TestCommitAll(t *testing.T) {
	ctx := context.Background()
	directive := Directive{Frame: 40, OldID: "3", NewID: "7"}

	t.Run("empty log makes no call", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		assert.ErrorIs(t, err, ErrNothingToCommit)
		backend.AssertNotCalled(t, "Reprocess", mock.Anything, mock.Anything)
	})

	t.Run("success clears log", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		backend.On("Reprocess", mock.Anything, Request{
			VideoID:     "video-1",
			Target:      Target{Batch: true},
			Directives:  []Directive{directive},
			ActiveMedia: activeMedia,
		}).Return(renderedResponse(), nil).Once()

		out, err := c.CommitAll(ctx, "video-1", activeMedia)
		require.NoError(t, err)
		assert.Equal(t, "/media/rendered.mp4", out.NewMedia.URL)
		assert.Equal(t, []Directive{directive}, out.Committed)
		assert.True(t, out.Batch)
		assert.Empty(t, c.Directives())
		assert.False(t, c.InFlight())
		backend.AssertExpectations(t)
	})

	t.Run("transport failure keeps log", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		boom := errors.New("connection refused")
		backend.On("Reprocess", mock.Anything, mock.Anything).Return(Response{}, boom).Once()

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []Directive{directive}, c.Directives())
		assert.False(t, c.InFlight())
	})

	t.Run("backend rejection keeps log", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		backend.On("Reprocess", mock.Anything, mock.Anything).Return(Response{Success: false, Message: "render failed"}, nil).Once()

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		assert.ErrorIs(t, err, ErrReprocessFailed)
		assert.Contains(t, err.Error(), "render failed")
		assert.Len(t, c.Directives(), 1)
	})

	t.Run("success without media is a failure", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		backend.On("Reprocess", mock.Anything, mock.Anything).Return(Response{Success: true}, nil).Once()

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		assert.ErrorIs(t, err, ErrReprocessFailed)
		assert.Len(t, c.Directives(), 1)
	})

	t.Run("appends during flight survive", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		late := Directive{Frame: 90, OldID: "7", NewID: "8"}
		backend.On("Reprocess", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				assert.True(t, c.InFlight())
				require.NoError(t, c.Append(late))
			}).
			Return(renderedResponse(), nil).Once()

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		require.NoError(t, err)
		assert.Equal(t, []Directive{late}, c.Directives())
	})

	t.Run("single flight", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		require.NoError(t, c.Append(directive))

		var nestedAll, nestedOne error
		backend.On("Reprocess", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				_, nestedAll = c.CommitAll(ctx, "video-1", activeMedia)
				_, nestedOne = c.CommitOne(ctx, "video-1", activeMedia, directive)
			}).
			Return(renderedResponse(), nil).Once()

		_, err := c.CommitAll(ctx, "video-1", activeMedia)
		require.NoError(t, err)
		assert.ErrorIs(t, nestedAll, ErrCommitInFlight)
		assert.ErrorIs(t, nestedOne, ErrCommitInFlight)
		backend.AssertNumberOfCalls(t, "Reprocess", 1)
	})
}

func TestCommitOne(t *testing.T) {
	ctx := context.Background()
	directive := Directive{Frame: 40, OldID: "3", NewID: "7"}

	t.Run("bypasses the log", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		queued := Directive{Frame: 1, OldID: "1", NewID: "2"}
		require.NoError(t, c.Append(queued))

		backend.On("Reprocess", mock.Anything, mock.MatchedBy(func(req Request) bool {
			return !req.Target.Batch && req.Target.Frame != nil && *req.Target.Frame == 40 &&
				len(req.Directives) == 1 && req.Directives[0] == directive
		})).Return(renderedResponse(), nil).Once()

		out, err := c.CommitOne(ctx, "video-1", activeMedia, directive)
		require.NoError(t, err)
		assert.False(t, out.Batch)
		assert.Equal(t, []Directive{queued}, c.Directives())
		backend.AssertExpectations(t)
	})

	t.Run("validates", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)

		_, err := c.CommitOne(ctx, "video-1", activeMedia, Directive{Frame: 1, OldID: "", NewID: "2"})
		assert.ErrorIs(t, err, ErrValidation)
		backend.AssertNotCalled(t, "Reprocess", mock.Anything, mock.Anything)
	})

	t.Run("failure releases flight", func(t *testing.T) {
		backend := new(MockReprocessor)
		c := NewCommitter(backend, nil)
		backend.On("Reprocess", mock.Anything, mock.Anything).Return(Response{}, errors.New("timeout")).Once()

		_, err := c.CommitOne(ctx, "video-1", activeMedia, directive)
		assert.Error(t, err)
		assert.False(t, c.InFlight())
	})
}

// slowBackend answers after delay unless its context ends first.
type slowBackend struct {
	delay time.Duration
}

func (b slowBackend) Reprocess(ctx context.Context, _ Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-time.After(b.delay):
		return renderedResponse(), nil
	}
}

func TestCommitOutlivesCaller(t *testing.T) {
	directive := Directive{Frame: 40, OldID: "3", NewID: "7"}

	t.Run("caller cancel does not abort", func(t *testing.T) {
		c := NewCommitter(slowBackend{delay: 80 * time.Millisecond}, nil)
		require.NoError(t, c.Append(directive))

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		out, err := c.CommitAll(ctx, "video-1", activeMedia)
		require.NoError(t, err)
		assert.Equal(t, "/media/rendered.mp4", out.NewMedia.URL)
		assert.Empty(t, c.Directives())

		ctx, cancel = context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		_, err = c.CommitOne(ctx, "video-1", activeMedia, directive)
		require.NoError(t, err)
	})

	t.Run("timeout bounds the call", func(t *testing.T) {
		c := NewCommitter(slowBackend{delay: time.Minute}, nil)
		c.SetTimeout(30 * time.Millisecond)
		require.NoError(t, c.Append(directive))

		start := time.Now()
		_, err := c.CommitAll(context.Background(), "video-1", activeMedia)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, []Directive{directive}, c.Directives())
		assert.False(t, c.InFlight())
	})

	t.Run("non-positive timeout ignored", func(t *testing.T) {
		c := NewCommitter(slowBackend{}, nil)
		c.SetTimeout(0)
		assert.Equal(t, DefaultCommitTimeout, c.timeout)
	})
}
