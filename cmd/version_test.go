package cmd

import (
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		checkOutput func(string) bool
	}{
		{
			name:    "version command shows version info",
			args:    []string{"version"},
			wantErr: false,
			checkOutput: func(output string) bool {
				return strings.Contains(output, "Track Review API") && strings.Contains(output, "v"+Version) && strings.Contains(output, "Go Version")
			},
		},
		{
			name:    "version command rejects arguments",
			args:    []string{"version", "extra"},
			wantErr: true,
		},
		{
			name:    "version command with --short flag",
			args:    []string{"version", "--short"},
			wantErr: false,
			checkOutput: func(output string) bool {
				return output == "v"+Version+"\n"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.checkOutput != nil && !tt.checkOutput(out) {
				t.Errorf("Output check failed: %q", out)
			}
		})
	}
}

func TestVersionCommandFlags(t *testing.T) {
	cmd := NewRootCmd()
	versionCmd, _, err := cmd.Find([]string{"version"})
	if err != nil {
		t.Fatalf("Failed to find version command: %v", err)
	}

	shortFlag := versionCmd.Flags().Lookup("short")
	if shortFlag == nil {
		t.Error("Expected short flag to be registered")
	}
}

func TestBuildStamp(t *testing.T) {
	prevCommit, prevTime := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = prevCommit, prevTime })

	GitCommit, BuildTime = "abc123", "2025-01-01T00:00:00Z"
	commit, built := buildStamp()
	if commit != "abc123" || built != "2025-01-01T00:00:00Z" {
		t.Errorf("buildStamp() = %q, %q; want the ldflags values", commit, built)
	}
}
