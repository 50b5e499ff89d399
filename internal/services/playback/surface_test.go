package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualSurface(t *testing.T) {
	t.Run("starts paused at zero", func(t *testing.T) {
		s := NewVirtualSurface("a.mp4", 10, newFakeClock().Now)
		assert.True(t, s.Paused())
		assert.False(t, s.Ended())
		assert.Equal(t, 0.0, s.CurrentTime())
	})

	t.Run("advances while playing", func(t *testing.T) {
		clock := newFakeClock()
		s := NewVirtualSurface("a.mp4", 10, clock.Now)
		s.Play()
		clock.Advance(1500 * time.Millisecond)
		assert.InDelta(t, 1.5, s.CurrentTime(), 1e-9)

		s.Pause()
		clock.Advance(time.Second)
		assert.InDelta(t, 1.5, s.CurrentTime(), 1e-9)
	})

	t.Run("seek clamps to media", func(t *testing.T) {
		s := NewVirtualSurface("a.mp4", 10, newFakeClock().Now)
		s.Seek(-1)
		assert.Equal(t, 0.0, s.CurrentTime())
		s.Seek(42)
		assert.Equal(t, 10.0, s.CurrentTime())
	})

	t.Run("unknown duration only clamps at zero", func(t *testing.T) {
		s := NewVirtualSurface("a.mp4", 0, newFakeClock().Now)
		s.Seek(42)
		assert.Equal(t, 42.0, s.CurrentTime())
	})

	t.Run("ends and restarts", func(t *testing.T) {
		clock := newFakeClock()
		s := NewVirtualSurface("a.mp4", 2, clock.Now)
		s.Play()
		clock.Advance(5 * time.Second)

		assert.True(t, s.Ended())
		assert.True(t, s.Paused())
		assert.Equal(t, 2.0, s.CurrentTime())

		s.Play()
		assert.False(t, s.Ended())
		assert.Equal(t, 0.0, s.CurrentTime())
	})

	t.Run("load resets", func(t *testing.T) {
		s := NewVirtualSurface("a.mp4", 10, newFakeClock().Now)
		s.Seek(4)
		s.Play()
		s.Load("b.mp4", 20)

		assert.Equal(t, "b.mp4", s.url)
		assert.Equal(t, 20.0, s.duration)
		assert.True(t, s.Paused())
		assert.Equal(t, 0.0, s.CurrentTime())
	})
}
