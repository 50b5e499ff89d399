package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
)

func det(frame int, track string, conf float64) models.Detection {
	return models.Detection{Frame: frame, TrackID: track, Confidence: conf}
}

func TestAssess(t *testing.T) {
	detections := []models.Detection{
		det(1, "1", 0.9),
		det(2, "1", 0.8),
		det(5, "1", 0.7),
		det(3, "2", 0.6),
		det(4, "2", 0.2),
		det(9, "2", 0.3),
		det(2, "3", 0.5),
		det(5, "3", 0.5),
	}

	summaries := Assess(detections, DefaultMinConfidence)
	require.Len(t, summaries, 3)

	// Track 2 only keeps frame 3: 0.2 and 0.3 are not above the floor.
	assert.Equal(t, models.TrackSummary{
		TrackID: "2", StartFrame: 3, EndFrame: 3, TotalDetections: 1, Gaps: 0, AvgConfidence: 0.6,
	}, summaries[0])

	assert.Equal(t, "1", summaries[1].TrackID)
	assert.Equal(t, 1, summaries[1].StartFrame)
	assert.Equal(t, 5, summaries[1].EndFrame)
	assert.Equal(t, 3, summaries[1].TotalDetections)
	assert.Equal(t, 1, summaries[1].Gaps)
	assert.InDelta(t, 0.8, summaries[1].AvgConfidence, 1e-9)

	// Ties on end frame are broken by track id.
	assert.Equal(t, "3", summaries[2].TrackID)
	assert.Equal(t, 5, summaries[2].EndFrame)
	assert.Equal(t, 1, summaries[2].Gaps)
}

func TestAssess_UnorderedInput(t *testing.T) {
	summaries := Assess([]models.Detection{det(7, "a", 0.9), det(5, "a", 0.9), det(6, "a", 0.9)}, 0)
	require.Len(t, summaries, 1)
	assert.Equal(t, 5, summaries[0].StartFrame)
	assert.Equal(t, 7, summaries[0].EndFrame)
	assert.Equal(t, 0, summaries[0].Gaps)
}

func TestAssess_Empty(t *testing.T) {
	assert.Empty(t, Assess(nil, DefaultMinConfidence))
	assert.Empty(t, Assess([]models.Detection{det(1, "1", 0.1)}, DefaultMinConfidence))
}

func TestEndFrames(t *testing.T) {
	entries := EndFrames([]models.TrackSummary{
		{TrackID: "2", EndFrame: 3},
		{TrackID: "1", EndFrame: 5},
	})
	assert.Equal(t, []keyframes.Entry{{Frame: 3, TrackID: "2"}, {Frame: 5, TrackID: "1"}}, entries)
}
