package config

import "time"

// Reprocess modes
const (
	ReprocessLocal  = "local"
	ReprocessRemote = "remote"
)

// Config is the decoded settings file plus TRACKREVIEW_* overrides.
type Config struct {
	Environment  string           `mapstructure:"environment"`
	Server       ServerConfig     `mapstructure:"server"`
	Database     DatabaseConfig   `mapstructure:"database"`
	Processing   ProcessingConfig `mapstructure:"processing"`
	Storage      StorageConfig    `mapstructure:"storage"`
	Playback     PlaybackConfig   `mapstructure:"playback"`
	Review       ReviewConfig     `mapstructure:"review"`
	Reprocess    ReprocessConfig  `mapstructure:"reprocess"`
	RateLimiting RateLimitConfig  `mapstructure:"rate_limiting"`
	Security     SecurityConfig   `mapstructure:"security"`
	Logging      LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Verbose bool   `mapstructure:"verbose"`
}

// ProcessingConfig tunes the render workers and ffmpeg.
type ProcessingConfig struct {
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	FFprobePath       string        `mapstructure:"ffprobe_path"`
	FFmpegTimeout     time.Duration `mapstructure:"ffmpeg_timeout"`
	RenderWaitTimeout time.Duration `mapstructure:"render_wait_timeout"`
	// RenderFilter is an expression over a detection deciding whether it is drawn.
	RenderFilter  string  `mapstructure:"render_filter"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// StorageConfig covers the media directory and what cleanup keeps in it.
type StorageConfig struct {
	MediaDir         string        `mapstructure:"media_dir"`
	MaxArtifactAge   time.Duration `mapstructure:"max_artifact_age"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	JobRetentionDays int           `mapstructure:"job_retention_days"`
}

// PlaybackConfig tunes the per-session sampling loop
type PlaybackConfig struct {
	SampleInterval    time.Duration `mapstructure:"sample_interval"`
	FallbackFrameRate float64       `mapstructure:"fallback_frame_rate"`
}

// ReviewConfig bounds how long an untouched review session stays open.
type ReviewConfig struct {
	MaxIdle time.Duration `mapstructure:"max_idle"`
}

// ReprocessConfig selects where committed corrections are sent
type ReprocessConfig struct {
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type SecurityConfig struct {
	EnableCORS  bool     `mapstructure:"enable_cors"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LoggingConfig picks the slog level and handler. Format is json, text or auto.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
