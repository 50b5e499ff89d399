package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/trackreview-api/internal/database"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/annotations"
)

const inspectCSV = `frame,track_id,class_id,confidence,x1,y1,x2,y2
0,1,0,0.91,10,20,110,220
0,2,0,0.85,300,40,380,200
1,1,0,0.90,12,21,112,221
4,3,2,0.40,5,5,50,50
5,4,2,0.10,5,5,50,50
`

// seedVideo stores a video with imported tracking data in a fresh database
// that the commands will pick up from the environment.
func seedVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "review.db")
	t.Setenv("TRACKREVIEW_DATABASE_PATH", path)

	db, err := database.Initialize(path, false, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	video := models.Video{FileName: "clip.mp4"}
	require.NoError(t, db.Create(&video).Error)

	svc := annotations.NewService(annotations.NewRepository(db.DB))
	_, err = svc.Import(context.Background(), video.UUID, strings.NewReader(inspectCSV))
	require.NoError(t, err)
	return video.UUID
}

func TestKeyFramesCommand(t *testing.T) {
	id := seedVideo(t)

	out, err := execute(t, "keyframes", id)
	require.NoError(t, err)

	assert.Contains(t, out, "Frame")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Three confident tracks plus the header and rule lines.
	assert.Len(t, lines, 3+4, "low confidence track has no key frame")
}

func TestTracksCommand(t *testing.T) {
	id := seedVideo(t)

	out, err := execute(t, "tracks", id)
	require.NoError(t, err)

	for _, want := range []string{"Track", "Detections", "Avg conf", "0.85", "0.40"} {
		assert.Contains(t, out, want)
	}
}

func TestInspectCommands_Errors(t *testing.T) {
	seedVideo(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing argument", args: []string{"tracks"}},
		{name: "unknown video", args: []string{"keyframes", "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
