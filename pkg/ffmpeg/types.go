package ffmpeg

// VideoMetadata represents metadata extracted from a video file
type VideoMetadata struct {
	Duration   float64 `json:"duration"`    // Duration in seconds
	FrameRate  float64 `json:"frame_rate"`  // Frames per second of the first video stream
	FrameCount int64   `json:"frame_count"` // Frames in the stream, 0 when unknown
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Codec      string  `json:"codec"`   // Video codec
	Format     string  `json:"format"`  // Container format
	Size       int64   `json:"size"`    // File size in bytes
	Bitrate    int     `json:"bitrate"` // Bitrate in bits per second
}

// Box is one rectangle drawn on a single frame.
type Box struct {
	Frame          int
	X1, Y1, X2, Y2 float64
	Label          string
	// Key selects the colour; boxes with the same key share a colour.
	Key string
}

// RenderOptions controls the encoder used for overlay renders
type RenderOptions struct {
	Preset    string // x264 preset
	CRF       int    // x264 constant rate factor
	Thickness int    // box border in pixels
	FontSize  int
	FontFile  string // optional, for builds without fontconfig
}

// DefaultRenderOptions matches the encoder settings of the tracking backend.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Preset:    "fast",
		CRF:       23,
		Thickness: 2,
		FontSize:  16,
	}
}
