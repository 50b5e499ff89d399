package playback

import (
	"math"
	"time"
)

// Surface is the media element a review session drives. Implementations are
// not required to be safe for concurrent use; the Navigator serialises access.
type Surface interface {
	CurrentTime() float64
	Seek(timeSeconds float64)
	Play()
	Pause()
	Paused() bool
	// Ended reports whether playback ran off the end of the media.
	Ended() bool
	// Load swaps the media source. The surface starts paused at time 0.
	Load(url string, durationSeconds float64)
}

// VirtualSurface is a wall-clock driven stand-in for a browser video element.
// Server-side sessions use it to advance media time while a reviewer watches
// through the API.
type VirtualSurface struct {
	now       func() time.Time
	url       string
	duration  float64
	position  float64
	playing   bool
	ended     bool
	startedAt time.Time
}

// NewVirtualSurface creates a paused surface at time 0. A nil clock means time.Now.
// A non-positive duration leaves the end of the media unknown.
func NewVirtualSurface(url string, durationSeconds float64, now func() time.Time) *VirtualSurface {
	if now == nil {
		now = time.Now
	}
	return &VirtualSurface{now: now, url: url, duration: sanitizeDuration(durationSeconds)}
}

func (v *VirtualSurface) CurrentTime() float64 {
	v.advance()
	return v.position
}

func (v *VirtualSurface) Seek(timeSeconds float64) {
	v.advance()
	v.position = v.clamp(timeSeconds)
	v.startedAt = v.now()
	v.ended = false
}

func (v *VirtualSurface) Play() {
	v.advance()
	if v.playing {
		return
	}
	if v.ended || (v.duration > 0 && v.position >= v.duration) {
		v.position = 0
	}
	v.ended = false
	v.playing = true
	v.startedAt = v.now()
}

func (v *VirtualSurface) Pause() {
	v.advance()
	v.playing = false
}

func (v *VirtualSurface) Paused() bool {
	v.advance()
	return !v.playing
}

func (v *VirtualSurface) Ended() bool {
	v.advance()
	return v.ended
}

func (v *VirtualSurface) Load(url string, durationSeconds float64) {
	v.url = url
	v.duration = sanitizeDuration(durationSeconds)
	v.position = 0
	v.playing = false
	v.ended = false
}

// advance folds elapsed wall time into position and detects the end of media.
func (v *VirtualSurface) advance() {
	if !v.playing {
		return
	}
	now := v.now()
	v.position = v.clamp(v.position + now.Sub(v.startedAt).Seconds())
	v.startedAt = now
	if v.duration > 0 && v.position >= v.duration {
		v.playing = false
		v.ended = true
	}
}

func (v *VirtualSurface) clamp(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if v.duration > 0 && t > v.duration {
		return v.duration
	}
	return t
}

func sanitizeDuration(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0
	}
	return d
}
