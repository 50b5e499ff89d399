package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
)

func TestApplyRemaps(t *testing.T) {
	in := []models.Detection{det(1, "1", 0.9), det(2, "2", 0.9), det(3, "3", 0.9)}

	out, changed := ApplyRemaps(in, []corrections.Directive{
		{Frame: 1, OldID: "1", NewID: "2"},
		{Frame: 3, OldID: "3", NewID: "1"},
	})

	ids := []string{out[0].TrackID, out[1].TrackID, out[2].TrackID}
	assert.Equal(t, []string{"2", "2", "1"}, ids)
	assert.Equal(t, int64(2), changed)
	assert.Equal(t, "1", in[0].TrackID, "input must not change")

	out, changed = ApplyRemaps(in, nil)
	assert.Equal(t, in, out)
	assert.Zero(t, changed)
}
