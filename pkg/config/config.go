package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TRACKREVIEW_SERVER_PORT.
const EnvPrefix = "TRACKREVIEW"

// ConfigPath is the settings file read by Init. A missing file is not an error.
var ConfigPath = "./config/settings.yaml"

var (
	once    sync.Once
	initErr error
)

// Init reads the settings file and binds the environment. Only the first
// call does any work.
func Init() error {
	once.Do(func() {
		initErr = load()
	})
	return initErr
}

func load() error {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	path := filepath.Clean(ConfigPath)
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// GetConfig decodes the current settings. Environment overrides are read at
// call time, so two calls may differ.
func GetConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with and fills the
// tunables that have a safe fallback.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Reprocess.Mode {
	case "":
		c.Reprocess.Mode = ReprocessLocal
	case ReprocessLocal:
	case ReprocessRemote:
		if c.Reprocess.BaseURL == "" {
			return errors.New("reprocess.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown reprocess.mode %q", c.Reprocess.Mode)
	}

	if c.Processing.MinConfidence < 0 || c.Processing.MinConfidence > 1 {
		return fmt.Errorf("processing.min_confidence %v outside [0, 1]", c.Processing.MinConfidence)
	}

	if c.Processing.Workers <= 0 {
		c.Processing.Workers = 2
	}
	if c.Playback.FallbackFrameRate <= 0 {
		c.Playback.FallbackFrameRate = 30
	}
	if c.Playback.SampleInterval <= 0 {
		c.Playback.SampleInterval = time.Second / 60
	}
	return nil
}

func setDefaults() {
	defaults := map[string]any{
		"environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     30 * time.Second,
		"server.write_timeout":    10 * time.Minute,
		"server.shutdown_timeout": 10 * time.Second,
		"server.max_header_bytes": 1 << 20,
		"server.max_upload_bytes": int64(2 << 30),

		"database.path":    "./data/trackreview.db",
		"database.verbose": false,

		"processing.workers":             2,
		"processing.poll_interval":       2 * time.Second,
		"processing.job_timeout":         30 * time.Minute,
		"processing.ffmpeg_path":         "ffmpeg",
		"processing.ffprobe_path":        "ffprobe",
		"processing.ffmpeg_timeout":      20 * time.Minute,
		"processing.render_wait_timeout": 15 * time.Minute,
		"processing.render_filter":       "",
		"processing.min_confidence":      0.3,

		"storage.media_dir":          "./data/media",
		"storage.max_artifact_age":   24 * time.Hour,
		"storage.cleanup_interval":   time.Hour,
		"storage.job_retention_days": 7,

		"playback.sample_interval":     time.Second / 60,
		"playback.fallback_frame_rate": 30.0,

		"review.max_idle": 2 * time.Hour,

		"reprocess.mode":     ReprocessLocal,
		"reprocess.base_url": "",
		"reprocess.timeout":  15 * time.Minute,

		"rate_limiting.enabled":             true,
		"rate_limiting.requests_per_minute": 600,
		"rate_limiting.burst":               60,

		"security.enable_cors":  true,
		"security.cors_origins": []string{"*"},

		"logging.level":  "info",
		"logging.format": "auto",
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}
