package frameclock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameIndexAt(t *testing.T) {
	tests := []struct {
		name      string
		time      float64
		frameRate float64
		expected  int
	}{
		{name: "quarter of a ten second clip", time: 2.5, frameRate: 30, expected: 75},
		{name: "zero time", time: 0, frameRate: 30, expected: 0},
		{name: "floors partial frames", time: 1.99, frameRate: 1, expected: 1},
		{name: "ntsc rate", time: 10, frameRate: 29.97, expected: 299},
		{name: "negative time", time: -3, frameRate: 30, expected: 0},
		{name: "zero rate", time: 5, frameRate: 0, expected: 0},
		{name: "nan time", time: math.NaN(), frameRate: 30, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FrameIndexAt(tt.time, tt.frameRate))
		})
	}
}

func TestTimeAt(t *testing.T) {
	assert.Equal(t, 0.0, TimeAt(0, 30))
	assert.InDelta(t, 2.5, TimeAt(75, 30), 1e-12)
	assert.Equal(t, 0.0, TimeAt(10, 0))
	assert.Equal(t, 0.0, TimeAt(-4, 30))
}

func TestFloorMappingNeverOvershoots(t *testing.T) {
	rates := []float64{1, 23.976, 24, 25, 29.97, 30, 59.94, 60, 120}
	for _, rate := range rates {
		for step := 0; step < 2000; step++ {
			tm := float64(step) * 0.0137
			back := TimeAt(FrameIndexAt(tm, rate), rate)

			assert.LessOrEqual(t, back, tm, "rate=%v t=%v", rate, tm)
			assert.Less(t, tm-back, 1/rate+1e-9, "rate=%v t=%v", rate, tm)
		}
	}
}

func TestJustBelowBoundary(t *testing.T) {
	tm := (75 - 5e-7) / 30
	assert.Equal(t, 74, FrameIndexAt(tm, 30))
	assert.LessOrEqual(t, TimeAt(FrameIndexAt(tm, 30), 30), tm)

	for _, rate := range []float64{23.976, 29.97, 30, 59.94} {
		for frame := 1; frame < 2000; frame++ {
			start := TimeAt(frame, rate)
			below := math.Nextafter(start, 0)
			require.Equal(t, frame-1, FrameIndexAt(below, rate), "rate=%v frame=%d", rate, frame)
			require.LessOrEqual(t, TimeAt(FrameIndexAt(below, rate), rate), below)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for _, rate := range []float64{23.976, 25, 29.97, 30, 59.94} {
		for frame := 0; frame < 5000; frame++ {
			require.Equal(t, frame, FrameIndexAt(TimeAt(frame, rate), rate), "rate=%v", rate)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	t.Run("quarter way", func(t *testing.T) {
		p, err := ProgressPercent(2.5, 10)
		require.NoError(t, err)
		assert.Equal(t, 25.0, p)
	})

	t.Run("clamped above", func(t *testing.T) {
		p, err := ProgressPercent(12, 10)
		require.NoError(t, err)
		assert.Equal(t, 100.0, p)
	})

	t.Run("clamped below", func(t *testing.T) {
		p, err := ProgressPercent(-1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0.0, p)
	})

	for _, d := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := ProgressPercent(1, d)
		assert.ErrorIs(t, err, ErrInvalidDuration, "duration %v", d)
	}
}

func TestTimeAtPercent(t *testing.T) {
	tm, err := TimeAtPercent(25, 10)
	require.NoError(t, err)
	assert.Equal(t, 2.5, tm)

	tm, err = TimeAtPercent(150, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, tm)

	_, err = TimeAtPercent(50, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestLastFrame(t *testing.T) {
	f, err := LastFrame(10, 30)
	require.NoError(t, err)
	assert.Equal(t, 300, f)

	_, err = LastFrame(0, 30)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestResolveFrameRate(t *testing.T) {
	rate, approx := ResolveFrameRate(300, 10)
	assert.Equal(t, 30.0, rate)
	assert.False(t, approx)

	rate, approx = ResolveFrameRate(0, 10)
	assert.Equal(t, FallbackFrameRate, rate)
	assert.True(t, approx)

	rate, approx = ResolveFrameRate(300, 0)
	assert.Equal(t, FallbackFrameRate, rate)
	assert.True(t, approx)
}
