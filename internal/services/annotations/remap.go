package annotations

import (
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
)

// ApplyRemaps returns a copy of detections with the directives applied in
// order, matching what CommitRender writes. The input is left untouched.
func ApplyRemaps(detections []models.Detection, directives []corrections.Directive) ([]models.Detection, int64) {
	out := make([]models.Detection, len(detections))
	copy(out, detections)

	var changed int64
	for _, d := range directives {
		for i := range out {
			if out[i].TrackID == d.OldID {
				out[i].TrackID = d.NewID
				changed++
			}
		}
	}
	return out, changed
}
