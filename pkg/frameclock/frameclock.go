// Package frameclock converts between continuous media time and discrete
// frame indices. Every navigation decision in a review session goes through
// these functions so that seeking, scrubbing and sampling agree on which
// frame is on screen.
package frameclock

import (
	"errors"
	"math"
)

// FallbackFrameRate is used when the playback surface cannot report a
// decoded-frame count. Frame indices derived from it are approximate.
const FallbackFrameRate = 30.0

// ErrInvalidDuration is returned when a media duration is missing, zero or negative.
var ErrInvalidDuration = errors.New("invalid media duration")

// FrameIndexAt returns floor(timeSeconds * frameRate).
// Non-positive rates and negative or NaN times map to frame 0.
func FrameIndexAt(timeSeconds, frameRate float64) int {
	if !validRate(frameRate) || !(timeSeconds > 0) {
		return 0
	}
	frame := math.Floor(timeSeconds * frameRate)
	if frame > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(frame)
}

// TimeAt returns the media time at which frameIndex starts: the smallest
// float64 t with FrameIndexAt(t) == frameIndex. Plain division can land an
// ulp either side of the boundary, so the quotient is nudged onto it.
func TimeAt(frameIndex int, frameRate float64) float64 {
	if !validRate(frameRate) || frameIndex <= 0 {
		return 0
	}
	n := float64(frameIndex)
	t := n / frameRate
	for t*frameRate < n {
		t = math.Nextafter(t, math.Inf(1))
	}
	for {
		below := math.Nextafter(t, math.Inf(-1))
		if below*frameRate < n {
			return t
		}
		t = below
	}
}

// ProgressPercent returns 100*t/duration clamped to [0, 100].
func ProgressPercent(timeSeconds, durationSeconds float64) (float64, error) {
	if !validDuration(durationSeconds) {
		return 0, ErrInvalidDuration
	}
	p := 100 * timeSeconds / durationSeconds
	switch {
	case math.IsNaN(p) || p < 0:
		return 0, nil
	case p > 100:
		return 100, nil
	}
	return p, nil
}

// TimeAtPercent is the inverse of ProgressPercent, used by slider seeks.
func TimeAtPercent(percent, durationSeconds float64) (float64, error) {
	if !validDuration(durationSeconds) {
		return 0, ErrInvalidDuration
	}
	if math.IsNaN(percent) || percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	return durationSeconds * percent / 100, nil
}

// LastFrame returns the index of the final frame, floor(duration * rate).
func LastFrame(durationSeconds, frameRate float64) (int, error) {
	if !validDuration(durationSeconds) {
		return 0, ErrInvalidDuration
	}
	return FrameIndexAt(durationSeconds, frameRate), nil
}

// ResolveFrameRate derives a frame rate from a decoded-frame count. When the
// count or duration is unusable it returns FallbackFrameRate and approximate=true.
func ResolveFrameRate(decodedFrames int64, durationSeconds float64) (rate float64, approximate bool) {
	if decodedFrames > 0 && validDuration(durationSeconds) {
		r := float64(decodedFrames) / durationSeconds
		if validRate(r) {
			return r, false
		}
	}
	return FallbackFrameRate, true
}

func validRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
