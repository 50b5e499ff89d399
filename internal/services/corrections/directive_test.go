package corrections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirective(t *testing.T) {
	tests := []struct {
		name    string
		frame   int
		oldID   string
		newID   string
		want    Directive
		wantErr bool
	}{
		{name: "valid", frame: 40, oldID: "3", newID: "7", want: Directive{Frame: 40, OldID: "3", NewID: "7"}},
		{name: "trims", frame: 1, oldID: "  3 ", newID: "\t7\n", want: Directive{Frame: 1, OldID: "3", NewID: "7"}},
		{name: "same id allowed", frame: 0, oldID: "4", newID: "4", want: Directive{Frame: 0, OldID: "4", NewID: "4"}},
		{name: "empty old", frame: 1, oldID: "", newID: "B", wantErr: true},
		{name: "empty new", frame: 1, oldID: "A", newID: "", wantErr: true},
		{name: "whitespace only", frame: 1, oldID: "   ", newID: "B", wantErr: true},
		{name: "negative frame", frame: -1, oldID: "A", newID: "B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDirective(tt.frame, tt.oldID, tt.newID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDirectiveValidateRejectsUntrimmed(t *testing.T) {
	err := Directive{Frame: 2, OldID: " 3", NewID: "7"}.Validate()
	assert.ErrorIs(t, err, ErrValidation)
}
