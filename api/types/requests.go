package types

// OpenReviewRequest starts a review session on an uploaded video
type OpenReviewRequest struct {
	VideoID string `json:"videoId" binding:"required" example:"6f1c2a9e-3b7d-4c55-9d0e-2a7f4b1c8e90"`
}

// SeekRequest moves playback. Exactly one of Frame or Percent is set.
type SeekRequest struct {
	Frame   *int     `json:"frame,omitempty" example:"120"`
	Percent *float64 `json:"percent,omitempty" example:"42.5"`
}

// DraftRequest updates the open edit's fields
type DraftRequest struct {
	OldID string `json:"oldId" example:"3"`
	NewID string `json:"newId" example:"7"`
}

// SaveEditRequest saves the open edit. Mode is "log" (default) or "apply".
type SaveEditRequest struct {
	OldID string `json:"oldId" example:"3"`
	NewID string `json:"newId" example:"7"`
	Mode  string `json:"mode,omitempty" example:"log"`
}

// AppendDirectiveRequest adds a directive to the log without the edit dialog
type AppendDirectiveRequest struct {
	Frame *int   `json:"frame" binding:"required" example:"120"`
	OldID string `json:"oldId" example:"3"`
	NewID string `json:"newId" example:"7"`
}
