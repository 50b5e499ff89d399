package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trackreview-api",
	Short: "Track Review API server",
	Long: `Track Review API - review and correct multi-object tracking annotations

Upload a video and its tracking CSV, step through the frames where tracks
end, and fix identity switches. Corrections are applied to the stored
detections and a new overlay render is produced.

Features:
  • Frame-accurate playback sessions with key-frame navigation
  • Correction log with single and batch commits
  • Background overlay rendering with ffmpeg
  • Range-capable media streaming`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// NewRootCmd creates a new root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config/settings.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "enable JSON formatted logs")
}

// loadConfig reads configuration for commands that need it. Flags given on
// the command line override the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		config.ConfigPath = path
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		viper.Set("logging.level", f.Value.String())
	}
	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		viper.Set("logging.format", "json")
	}

	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays clean.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}
