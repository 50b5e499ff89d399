package annotations

import (
	"sort"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/keyframes"
)

// DefaultMinConfidence is the floor below which detections are ignored when
// assessing tracks.
const DefaultMinConfidence = 0.3

// Assess groups detections above minConfidence by track and summarises each
// track. A gap is a jump of more than one frame between consecutive
// detections of the same track. Results are ordered by end frame, then track.
func Assess(detections []models.Detection, minConfidence float64) []models.TrackSummary {
	type acc struct {
		frames  []int
		confSum float64
	}
	tracks := make(map[string]*acc)
	for _, d := range detections {
		if d.Confidence <= minConfidence {
			continue
		}
		a, ok := tracks[d.TrackID]
		if !ok {
			a = &acc{}
			tracks[d.TrackID] = a
		}
		a.frames = append(a.frames, d.Frame)
		a.confSum += d.Confidence
	}

	out := make([]models.TrackSummary, 0, len(tracks))
	for id, a := range tracks {
		sort.Ints(a.frames)
		gaps := 0
		for i := 1; i < len(a.frames); i++ {
			if a.frames[i]-a.frames[i-1] > 1 {
				gaps++
			}
		}
		out = append(out, models.TrackSummary{
			TrackID:         id,
			StartFrame:      a.frames[0],
			EndFrame:        a.frames[len(a.frames)-1],
			TotalDetections: len(a.frames),
			Gaps:            gaps,
			AvgConfidence:   a.confSum / float64(len(a.frames)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndFrame != out[j].EndFrame {
			return out[i].EndFrame < out[j].EndFrame
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out
}

// EndFrames turns track summaries into key-frame candidates: the last frame
// on which each track was seen is where an identity switch most often starts.
func EndFrames(summaries []models.TrackSummary) []keyframes.Entry {
	out := make([]keyframes.Entry, len(summaries))
	for i, s := range summaries {
		out[i] = keyframes.Entry{Frame: s.EndFrame, TrackID: s.TrackID}
	}
	return out
}
