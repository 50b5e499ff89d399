package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	ffmpeg := New("ffmpeg", "ffprobe", 30*time.Second)
	if ffmpeg.ffmpegPath != "ffmpeg" {
		t.Errorf("Expected ffmpegPath to be 'ffmpeg', got %s", ffmpeg.ffmpegPath)
	}
	if ffmpeg.ffprobePath != "ffprobe" {
		t.Errorf("Expected ffprobePath to be 'ffprobe', got %s", ffmpeg.ffprobePath)
	}
	if ffmpeg.timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", ffmpeg.timeout)
	}
}

func TestDefaultRenderOptions(t *testing.T) {
	opts := DefaultRenderOptions()
	if opts.Preset != "fast" || opts.CRF != 23 {
		t.Errorf("Expected fast/23, got %s/%d", opts.Preset, opts.CRF)
	}
}

func TestValidateBinariesMissing(t *testing.T) {
	ffmpeg := New("/nonexistent/ffmpeg", "/nonexistent/ffprobe", time.Second)
	err := ffmpeg.ValidateBinaries()
	if !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("Expected ErrFFmpegNotFound, got %v", err)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
		{"abc/def", 0},
	}

	for _, test := range tests {
		if got := parseRate(test.input); got != test.expected {
			t.Errorf("parseRate(%q) = %v, expected %v", test.input, got, test.expected)
		}
	}
}

func TestParseMetadata(t *testing.T) {
	var output ffprobeOutput
	output.Format.Duration = "10.010000"
	output.Format.Size = "1048576"
	output.Format.FormatName = "mov,mp4,m4a,3gp,3g2,mj2"
	output.Streams = append(output.Streams, ffprobeStream{
		CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080,
		RFrameRate: "30000/1001", AvgFrameRate: "0/0", NbFrames: "300",
	})

	metadata, err := parseMetadata(&output, "clip.mp4")
	if err != nil {
		t.Fatalf("parseMetadata returned error: %v", err)
	}
	if metadata.Duration != 10.01 {
		t.Errorf("Expected duration 10.01, got %v", metadata.Duration)
	}
	if metadata.FrameCount != 300 {
		t.Errorf("Expected 300 frames, got %d", metadata.FrameCount)
	}
	if metadata.FrameRate != 30000.0/1001.0 {
		t.Errorf("Expected r_frame_rate fallback, got %v", metadata.FrameRate)
	}
	if metadata.Width != 1920 || metadata.Height != 1080 || metadata.Codec != "h264" {
		t.Errorf("Unexpected stream fields: %+v", metadata)
	}
}

func TestParseMetadataNoVideo(t *testing.T) {
	var output ffprobeOutput
	output.Format.Duration = "3"

	_, err := parseMetadata(&output, "audio.mp3")
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("Expected ErrNoVideoStream, got %v", err)
	}
}

func TestBuildOverlayFilter(t *testing.T) {
	opts := DefaultRenderOptions()

	if got := BuildOverlayFilter(nil, opts); got != "null" {
		t.Errorf("Expected null filter for no boxes, got %q", got)
	}

	filter := BuildOverlayFilter([]Box{
		{Frame: 12, X1: 10, Y1: 40, X2: 110, Y2: 240, Label: "ID: 3, Class: 0, Conf: 0.91", Key: "3"},
		{Frame: 13, X1: 0, Y1: 0, X2: 5, Y2: 5, Key: "4"},
	}, opts)

	for _, want := range []string{
		"drawbox=x=10:y=40:w=100:h=200:color=" + ColorFor("3") + ":t=2:enable='eq(n,12)'",
		`drawtext=text='ID\: 3, Class\: 0, Conf\: 0.91'`,
		":x=10:y=20:",
		"enable='eq(n,13)'",
	} {
		if !strings.Contains(filter, want) {
			t.Errorf("Filter missing %q:\n%s", want, filter)
		}
	}
	if strings.Count(filter, "drawtext") != 1 {
		t.Errorf("Expected one label, got filter:\n%s", filter)
	}
}

func TestEscapeText(t *testing.T) {
	tests := map[string]string{
		"plain":     "plain",
		"a:b":       `a\:b`,
		"it's":      "it\u2019s",
		`back\lash`: `back\\lash`,
		"50%":       `50\%`,
	}
	for input, expected := range tests {
		if got := escapeText(input); got != expected {
			t.Errorf("escapeText(%q) = %q, expected %q", input, got, expected)
		}
	}
}

func TestColorForIsStable(t *testing.T) {
	if ColorFor("7") != ColorFor("7") {
		t.Error("Expected the same colour for the same key")
	}
}

func TestReadProgress(t *testing.T) {
	var frames []int
	readProgress(strings.NewReader("frame=10\nfps=30\nframe=25\nprogress=end\n"), func(n int) {
		frames = append(frames, n)
	})
	if len(frames) != 2 || frames[0] != 10 || frames[1] != 25 {
		t.Errorf("Unexpected progress frames: %v", frames)
	}
}

// Integration test - only runs if ffmpeg/ffprobe are available
func TestRenderOverlayWithRealVideo(t *testing.T) {
	ffmpeg := New("ffmpeg", "ffprobe", time.Minute)
	if err := ffmpeg.ValidateBinaries(); err != nil {
		t.Skipf("FFmpeg binaries not available: %v", err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	ctx := context.Background()

	if err := generateTestVideo(ctx, input); err != nil {
		t.Skipf("Could not generate test video: %v", err)
	}

	metadata, err := ffmpeg.ProbeVideo(ctx, input)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	if metadata.FrameCount != 30 {
		t.Errorf("Expected 30 frames, got %d", metadata.FrameCount)
	}

	output := filepath.Join(dir, "out.mp4")
	boxes := []Box{{Frame: 3, X1: 10, Y1: 10, X2: 60, Y2: 60, Key: "1"}}
	if err := ffmpeg.RenderOverlay(ctx, input, output, boxes, DefaultRenderOptions(), nil); err != nil {
		t.Fatalf("RenderOverlay failed: %v", err)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		t.Errorf("Expected rendered output, stat error: %v", err)
	}
}

func generateTestVideo(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-f", "lavfi", "-i", "testsrc=size=160x120:rate=30:duration=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", path)
	return cmd.Run()
}
