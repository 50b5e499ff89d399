// Package logging builds the structured loggers shared by the server, the
// review sessions and the background workers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	FieldComponent = "component"
	FieldSession   = "session_id"
	FieldVideo     = "video_id"
	FieldJob       = "job_id"
	FieldWorker    = "worker_id"
)

// ParseLevel maps a config string onto a slog level. Unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to out. format is "json", "text" or "auto";
// auto picks text when out is a terminal and JSON otherwise.
// A nil writer means stdout.
func New(level, format string, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if useJSON(format, out) {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrNop returns logger, or a discarding logger when it is nil.
func OrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return OrNop(logger).With(FieldComponent, component)
}

func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return OrNop(logger).With(FieldSession, sessionID)
}

func WithVideo(logger *slog.Logger, videoID string) *slog.Logger {
	return OrNop(logger).With(FieldVideo, videoID)
}

func WithJob(logger *slog.Logger, jobID uint) *slog.Logger {
	return OrNop(logger).With(FieldJob, jobID)
}

func useJSON(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "text":
		return false
	}
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		fd := f.Fd()
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
	return true
}
