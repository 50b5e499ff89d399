// Package corrections holds the reviewer's track-id remaps: the directive
// type, the pending log, the edit dialog state and the committer that sends
// them to the reprocessing backend.
package corrections

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when a directive has an empty identifier or a negative frame.
	ErrValidation = errors.New("validation failed")
	// ErrPreconditionNotMet is returned when editing is attempted before annotation data exists.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrNotEditing is returned when a draft or save arrives with no open edit session.
	ErrNotEditing = errors.New("no edit session is open")
	// ErrNothingToCommit is returned by CommitAll on an empty log. No backend call is made.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrCommitInFlight is returned when a commit is requested while another is outstanding.
	ErrCommitInFlight = errors.New("a commit is already in flight")
	// ErrReprocessFailed wraps a negative answer from the reprocessing backend.
	ErrReprocessFailed = errors.New("reprocessing failed")
)

// Directive remaps the track identifier OldID to NewID, scoped to Frame.
type Directive struct {
	Frame int    `json:"frame"`
	OldID string `json:"oldId"`
	NewID string `json:"newId"`
}

// NewDirective trims both identifiers and validates the result.
func NewDirective(frame int, oldID, newID string) (Directive, error) {
	d := Directive{
		Frame: frame,
		OldID: strings.TrimSpace(oldID),
		NewID: strings.TrimSpace(newID),
	}
	if err := d.Validate(); err != nil {
		return Directive{}, err
	}
	return d, nil
}

// Validate checks a directive as stored. Identifiers must already be trimmed.
// Remapping an identifier onto itself is allowed.
func (d Directive) Validate() error {
	switch {
	case d.Frame < 0:
		return fmt.Errorf("%w: frame must be >= 0, got %d", ErrValidation, d.Frame)
	case d.OldID == "" || strings.TrimSpace(d.OldID) != d.OldID:
		return fmt.Errorf("%w: current id is required", ErrValidation)
	case d.NewID == "" || strings.TrimSpace(d.NewID) != d.NewID:
		return fmt.Errorf("%w: new id is required", ErrValidation)
	}
	return nil
}
