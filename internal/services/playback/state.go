// Package playback drives a review's media position over a Surface and maps
// it onto frame indices and key frames.
package playback

// State is a snapshot of playback. CurrentFrame is always derived from
// TimeSeconds and FrameRate, never set on its own.
type State struct {
	TimeSeconds          float64 `json:"timeSeconds"`
	DurationSeconds      float64 `json:"durationSeconds"`
	DurationKnown        bool    `json:"durationKnown"`
	FrameRate            float64 `json:"frameRate"`
	FrameRateApproximate bool    `json:"frameRateApproximate"`
	IsPlaying            bool    `json:"isPlaying"`
	CurrentFrame         int     `json:"currentFrame"`
	ProgressPercent      float64 `json:"progressPercent"`
	// KeyFrameCursor is the position of CurrentFrame in the key-frame index,
	// or -1 when the current frame is not a key frame.
	KeyFrameCursor int    `json:"keyFrameCursor"`
	CurrentTrackID string `json:"currentTrackId,omitempty"`
}

// Media describes the source loaded into a Surface.
type Media struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
	// FrameRate is the container's nominal rate. Zero means unknown, in which
	// case DecodedFrames is used to derive one.
	FrameRate     float64 `json:"frameRate,omitempty"`
	DecodedFrames int64   `json:"decodedFrames,omitempty"`
}
