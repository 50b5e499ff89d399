package corrections

// EditorState is the state of the edit dialog.
type EditorState string

const (
	StateIdle    EditorState = "idle"
	StateEditing EditorState = "editing"
)

// EditSnapshot is the externally visible state of an Editor.
type EditSnapshot struct {
	State       EditorState `json:"state"`
	TargetFrame *int        `json:"targetFrame,omitempty"`
	DraftOldID  string      `json:"draftOldId"`
	DraftNewID  string      `json:"draftNewId"`
}

// Editor is the Idle/Editing state machine behind the "edit ID" dialog. At
// most one edit is open at a time. It is not safe for concurrent use.
type Editor struct {
	state      EditorState
	target     int
	draftOldID string
	draftNewID string
}

// NewEditor returns an idle editor.
func NewEditor() *Editor {
	return &Editor{state: StateIdle}
}

// Editing reports whether an edit is open.
func (e *Editor) Editing() bool { return e.state == StateEditing }

// Open starts an edit of frame. It fails with ErrPreconditionNotMet when no
// annotations are loaded. Opening while already editing keeps the existing
// edit and returns opened=false.
func (e *Editor) Open(annotationsLoaded bool, frame int) (opened bool, err error) {
	if e.Editing() {
		return false, nil
	}
	if !annotationsLoaded {
		return false, ErrPreconditionNotMet
	}
	if frame < 0 {
		frame = 0
	}
	e.state = StateEditing
	e.target = frame
	e.draftOldID, e.draftNewID = "", ""
	return true, nil
}

// SetDraft records the in-progress field values.
func (e *Editor) SetDraft(oldID, newID string) error {
	if !e.Editing() {
		return ErrNotEditing
	}
	e.draftOldID, e.draftNewID = oldID, newID
	return nil
}

// Prepare validates the fields against the target frame and returns the
// directive that a save would forward. The edit stays open, with the drafts
// updated, so a failed forward can be retried.
func (e *Editor) Prepare(oldID, newID string) (Directive, error) {
	if !e.Editing() {
		return Directive{}, ErrNotEditing
	}
	e.draftOldID, e.draftNewID = oldID, newID
	return NewDirective(e.target, oldID, newID)
}

// Finish closes the edit after its directive was accepted.
func (e *Editor) Finish() {
	e.reset()
}

// Save prepares the directive, hands it to forward and closes the edit when
// forward succeeds. On any error the edit stays open.
func (e *Editor) Save(oldID, newID string, forward func(Directive) error) (Directive, error) {
	d, err := e.Prepare(oldID, newID)
	if err != nil {
		return Directive{}, err
	}
	if err := forward(d); err != nil {
		return Directive{}, err
	}
	e.Finish()
	return d, nil
}

// Cancel discards the drafts. Nothing is forwarded.
func (e *Editor) Cancel() {
	e.reset()
}

func (e *Editor) Snapshot() EditSnapshot {
	s := EditSnapshot{
		State:      e.state,
		DraftOldID: e.draftOldID,
		DraftNewID: e.draftNewID,
	}
	if e.Editing() {
		frame := e.target
		s.TargetFrame = &frame
	}
	return s
}

func (e *Editor) reset() {
	e.state = StateIdle
	e.target = 0
	e.draftOldID, e.draftNewID = "", ""
}
