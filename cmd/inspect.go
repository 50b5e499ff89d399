package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/killallgit/trackreview-api/internal/database"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
	"github.com/killallgit/trackreview-api/pkg/config"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks <video-id>",
	Short: "List the tracks of an imported video",
	Long: `List every track in a video's imported tracking data with its first and
last frame, detection count, gaps and average confidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runTracks,
}

var keyframesCmd = &cobra.Command{
	Use:   "keyframes <video-id>",
	Short: "List the key frames of an imported video",
	Long: `List the frames where a confident track ends. These are the frames a
review session steps through with next and previous.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyFrames,
}

func init() {
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(keyframesCmd)
}

// openAnnotations opens the configured database read side for the inspection
// commands.
func openAnnotations(cmd *cobra.Command) (*annotations.ServiceImpl, *database.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return newAnnotationService(cfg, db), db, nil
}

func newAnnotationService(cfg *config.Config, db *database.DB) *annotations.ServiceImpl {
	return annotations.NewService(
		annotations.NewRepository(db.DB),
		annotations.WithMinConfidence(cfg.Processing.MinConfidence),
	)
}

func runTracks(cmd *cobra.Command, args []string) error {
	svc, db, err := openAnnotations(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tracks, err := svc.TrackSummaries(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			t.TrackID,
			strconv.Itoa(t.StartFrame),
			strconv.Itoa(t.EndFrame),
			strconv.Itoa(t.TotalDetections),
			strconv.Itoa(t.Gaps),
			strconv.FormatFloat(t.AvgConfidence, 'f', 2, 64),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
		{Header: "Track"},
		{Header: "Start", Numeric: true},
		{Header: "End", Numeric: true},
		{Header: "Detections", Numeric: true},
		{Header: "Gaps", Numeric: true},
		{Header: "Avg conf", Numeric: true},
	}, rows))
	return nil
}

func runKeyFrames(cmd *cobra.Command, args []string) error {
	svc, db, err := openAnnotations(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := svc.KeyFrames(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Frame), e.TrackID})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
		{Header: "Frame", Numeric: true},
		{Header: "Track"},
	}, rows))
	return nil
}
