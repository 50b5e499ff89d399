package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/killallgit/trackreview-api/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the Track Review API version, the commit and time it was built
from, and the Go runtime it runs on.`,
	Args: cobra.NoArgs,
	Run:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "print just the version number")
}

func runVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Fprintf(out, "v%s\n", Version)
		return
	}

	commit, built := buildStamp()
	fmt.Fprintln(out, "Track Review API")
	fmt.Fprintln(out, renderTable(
		[]column{{Header: "Field"}, {Header: "Value"}},
		[][]string{
			{"Version", "v" + Version},
			{"Git Commit", commit},
			{"Build Time", built},
			{"Go Version", runtime.Version()},
			{"OS/Arch", runtime.GOOS + "/" + runtime.GOARCH},
		},
	))
}

// buildStamp prefers the ldflags values and falls back to the VCS stamp the
// go toolchain embeds.
func buildStamp() (commit, built string) {
	commit, built = GitCommit, BuildTime
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, built
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && built == "unknown":
			built = s.Value
		}
	}
	return commit, built
}
