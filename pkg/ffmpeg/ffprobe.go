package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ffprobeOutput represents the JSON structure returned by ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		Bitrate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	NbReadFrames string `json:"nb_read_frames"`
	Duration     string `json:"duration"`
}

// ProbeVideo extracts metadata from the first video stream of a file. When
// the container does not record a frame count, frames are counted by
// decoding, which reads the whole file.
func (f *FFmpeg) ProbeVideo(ctx context.Context, filePath string) (*VideoMetadata, error) {
	output, err := f.probe(ctx, filePath, false)
	if err != nil {
		return nil, err
	}
	metadata, err := parseMetadata(output, filePath)
	if err != nil {
		return nil, err
	}

	if metadata.FrameCount == 0 {
		counted, err := f.probe(ctx, filePath, true)
		if err == nil && len(counted.Streams) > 0 {
			metadata.FrameCount = parseInt64(counted.Streams[0].NbReadFrames)
		}
	}
	return metadata, nil
}

func (f *FFmpeg) probe(ctx context.Context, filePath string, countFrames bool) (*ffprobeOutput, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		"-of", "json",
	}
	if countFrames {
		args = append(args, "-count_frames")
	}
	args = append(args, filePath)

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, NewProcessingError("probe", filePath, ErrProcessingTimeout, stderr.String())
		}
		return nil, NewProcessingError("probe", filePath, err, stderr.String())
	}

	var output ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, NewProcessingError("probe_parsing", filePath, err, "")
	}
	return &output, nil
}

// parseMetadata converts ffprobe output to VideoMetadata
func parseMetadata(output *ffprobeOutput, filePath string) (*VideoMetadata, error) {
	metadata := &VideoMetadata{
		Format:   output.Format.FormatName,
		Duration: parseFloat(output.Format.Duration),
		Size:     parseInt64(output.Format.Size),
		Bitrate:  int(parseInt64(output.Format.Bitrate)),
	}

	found := false
	for _, stream := range output.Streams {
		if stream.CodecType != "video" {
			continue
		}
		found = true
		metadata.Codec = stream.CodecName
		metadata.Width = stream.Width
		metadata.Height = stream.Height

		// avg_frame_rate reflects variable-rate streams better; r_frame_rate
		// is the fallback when the muxer left it at 0/0.
		metadata.FrameRate = parseRate(stream.AvgFrameRate)
		if metadata.FrameRate == 0 {
			metadata.FrameRate = parseRate(stream.RFrameRate)
		}

		metadata.FrameCount = parseInt64(stream.NbFrames)
		if metadata.FrameCount == 0 {
			metadata.FrameCount = parseInt64(stream.NbReadFrames)
		}

		if metadata.Duration == 0 {
			metadata.Duration = parseFloat(stream.Duration)
		}
		break
	}

	if !found {
		return nil, NewProcessingError("probe_validation", filePath, ErrNoVideoStream, "")
	}
	if metadata.Duration <= 0 {
		return nil, NewProcessingError("probe_validation", filePath,
			fmt.Errorf("%w: could not determine duration", ErrInvalidVideoFile), "")
	}
	return metadata, nil
}

// parseRate parses ffprobe's "num/den" frame rates. "0/0" and garbage are 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
