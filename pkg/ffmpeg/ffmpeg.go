package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FFmpeg wraps ffmpeg and ffprobe functionality
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ValidateBinaries checks if ffmpeg and ffprobe are available
func (f *FFmpeg) ValidateBinaries() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, f.ffmpegPath)
	}
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, f.ffprobePath)
	}
	return nil
}

func (f *FFmpeg) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// ProgressFunc receives the number of frames encoded so far.
type ProgressFunc func(frame int)

// RenderOverlay re-encodes input into output with every box burned into its
// frame. The filter graph is passed through a script file next to output,
// since a long tracking file easily exceeds the argument size limit.
func (f *FFmpeg) RenderOverlay(ctx context.Context, input, output string, boxes []Box, opts RenderOptions, progress ProgressFunc) error {
	script, err := os.CreateTemp(filepath.Dir(output), "overlay_*.txt")
	if err != nil {
		return NewProcessingError("render", input, err, "")
	}
	defer os.Remove(script.Name())

	if _, err := io.WriteString(script, BuildOverlayFilter(boxes, opts)); err != nil {
		script.Close()
		return NewProcessingError("render", input, err, "")
	}
	if err := script.Close(); err != nil {
		return NewProcessingError("render", input, err, "")
	}

	args := []string{
		"-y",
		"-nostats",
		"-progress", "pipe:1",
		"-i", input,
		"-filter_script:v", script.Name(),
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		output,
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return NewProcessingError("render", input, err, "")
	}

	if err := cmd.Start(); err != nil {
		return NewProcessingError("render", input, err, "")
	}
	readProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(output)
		if ctx.Err() == context.DeadlineExceeded {
			return NewProcessingError("render", input, ErrProcessingTimeout, stderr.String())
		}
		return NewProcessingError("render", input, err, stderr.String())
	}
	return nil
}

// readProgress consumes ffmpeg's -progress key=value stream until EOF.
func readProgress(r io.Reader, progress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || key != "frame" || progress == nil {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			progress(n)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

var palette = []string{
	"0xE6194B", "0x3CB44B", "0xFFE119", "0x4363D8", "0xF58231",
	"0x911EB4", "0x46F0F0", "0xF032E6", "0xBCF60C", "0xFABEBE",
}

// ColorFor returns a stable colour for a box key.
func ColorFor(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return palette[h.Sum32()%uint32(len(palette))]
}

// BuildOverlayFilter returns a filter chain drawing each box and its label on
// its own frame only. An empty box list yields the null filter.
func BuildOverlayFilter(boxes []Box, opts RenderOptions) string {
	if len(boxes) == 0 {
		return "null"
	}

	font := ""
	if opts.FontFile != "" {
		font = ":fontfile='" + escapeText(opts.FontFile) + "'"
	}

	parts := make([]string, 0, 2*len(boxes))
	for _, b := range boxes {
		color := ColorFor(b.Key)
		x, y := int(b.X1), int(b.Y1)
		w, h := int(b.X2-b.X1), int(b.Y2-b.Y1)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		enable := fmt.Sprintf("enable='eq(n,%d)'", b.Frame)

		parts = append(parts, fmt.Sprintf("drawbox=x=%d:y=%d:w=%d:h=%d:color=%s:t=%d:%s",
			x, y, w, h, color, opts.Thickness, enable))

		if b.Label == "" {
			continue
		}
		ty := y - opts.FontSize - 4
		if ty < 0 {
			ty = y + 2
		}
		parts = append(parts, fmt.Sprintf("drawtext=text='%s'%s:x=%d:y=%d:fontsize=%d:fontcolor=white:box=1:boxcolor=%s@0.6:%s",
			escapeText(b.Label), font, x, ty, opts.FontSize, color, enable))
	}
	return strings.Join(parts, ",\n")
}

// escapeText prepares a string for a single-quoted drawtext option. Quotes
// cannot be escaped inside quotes, so they are replaced.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, "\u2019",
		`:`, `\:`,
		`%`, `\%`,
		"\n", " ",
	)
	return r.Replace(s)
}
