package reviews

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/internal/services/review"
	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

// Open starts a review session
// @Summary      Open review session
// @Description  Loads the video's current media and key frames into a new session
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        request body types.OpenReviewRequest true "Video to review"
// @Success      201 {object} types.ReviewResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse "Unknown video"
// @Failure      409 {object} types.ErrorResponse "Media duration unknown"
// @Failure      424 {object} types.ErrorResponse "Media unavailable"
// @Router       /api/v1/reviews [post]
func Open(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.OpenReviewRequest
		if !types.BindJSONOrError(c, &req) {
			return
		}

		session, err := deps.Reviews.Open(c.Request.Context(), req.VideoID)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendCreated(c, types.ReviewResponse{
			BaseResponse: types.OK("review opened"),
			Review:       session.View(),
		})
	}
}

// List returns open sessions
// @Summary      List review sessions
// @Tags         reviews
// @Produce      json
// @Success      200 {object} types.ReviewsResponse
// @Router       /api/v1/reviews [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := deps.Reviews.List()
		views := make([]review.View, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, s.View())
		}
		types.SendSuccess(c, types.ReviewsResponse{
			BaseResponse: types.OK(""),
			Reviews:      views,
			Count:        len(views),
		})
	}
}

// Get returns a session snapshot
// @Summary      Get review session
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.ReviewResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/reviews/{id} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		types.SendSuccess(c, types.ReviewResponse{BaseResponse: types.OK(""), Review: session.View()})
	}
}

// Close ends a session
// @Summary      Close review session
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.BaseResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/reviews/{id} [delete]
func Close(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		if err := deps.Reviews.Close(id); err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.OK("review closed"))
	}
}

// Transport handles play, pause, toggle, previous and next. Each returns the
// playback state after the action.
// @Summary      Playback control
// @Description  action is one of play, pause, toggle, previous, next. previous and next jump between key frames.
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.PlaybackResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "Media duration unknown, or play while an edit is open"
// @Router       /api/v1/reviews/{id}/{action} [post]
func Transport(deps *types.Dependencies, action func(*review.Session) (playback.State, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		state, err := action(session)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.PlaybackResponse{BaseResponse: types.OK(""), Playback: state})
	}
}

// Seek moves playback to a frame or a percentage of the duration
// @Summary      Seek
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body types.SeekRequest true "Exactly one of frame or percent"
// @Success      200 {object} types.PlaybackResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "Media duration unknown"
// @Router       /api/v1/reviews/{id}/seek [post]
func Seek(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		var req types.SeekRequest
		if !types.BindJSONOrError(c, &req) {
			return
		}

		var (
			state playback.State
			err   error
		)
		switch {
		case req.Frame != nil && req.Percent == nil:
			state, err = session.SeekToFrame(*req.Frame)
		case req.Percent != nil && req.Frame == nil:
			state, err = session.SeekToPercent(*req.Percent)
		default:
			types.SendError(c, apperrors.ValidationError("frame", "set exactly one of frame or percent"))
			return
		}
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.PlaybackResponse{BaseResponse: types.OK(""), Playback: state})
	}
}

// Refresh re-fetches key frames
// @Summary      Refresh key frames
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.RefreshResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/reviews/{id}/refresh [post]
func Refresh(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		n, err := session.Refresh(c.Request.Context())
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.RefreshResponse{BaseResponse: types.OK(""), KeyFrames: n})
	}
}

// OpenEdit opens the edit dialog on the current frame
// @Summary      Open edit
// @Description  Pauses playback and targets the current frame. Requires imported annotations.
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.EditResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      412 {object} types.ErrorResponse "No annotations imported"
// @Router       /api/v1/reviews/{id}/edit [post]
func OpenEdit(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		snap, err := session.OpenEdit()
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.EditResponse{BaseResponse: types.OK(""), Edit: snap})
	}
}

// UpdateDraft stores the dialog's field values
// @Summary      Update edit draft
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body types.DraftRequest true "Draft identifiers"
// @Success      200 {object} types.EditResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "No edit open"
// @Router       /api/v1/reviews/{id}/edit [put]
func UpdateDraft(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		var req types.DraftRequest
		if !types.BindJSONOrError(c, &req) {
			return
		}
		snap, err := session.SetDraft(req.OldID, req.NewID)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.EditResponse{BaseResponse: types.OK(""), Edit: snap})
	}
}

// SaveEdit saves the dialog as a directive
// @Summary      Save edit
// @Description  mode "log" appends the directive to the correction log. mode "apply" commits it on its own and keeps the edit open if that fails.
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body types.SaveEditRequest true "Identifiers and mode"
// @Success      200 {object} types.SaveEditResponse
// @Failure      400 {object} types.ErrorResponse "Invalid identifiers"
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "No edit open or commit in flight"
// @Failure      502 {object} types.ErrorResponse "Reprocessing failed"
// @Router       /api/v1/reviews/{id}/edit/save [post]
func SaveEdit(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		var req types.SaveEditRequest
		if !types.BindJSONOrError(c, &req) {
			return
		}

		directive, commit, err := session.SaveEdit(c.Request.Context(), req.OldID, req.NewID, review.SaveMode(req.Mode))
		if err != nil {
			types.SendError(c, err)
			return
		}

		msg := "directive logged"
		if commit != nil {
			msg = "directive applied"
		}
		types.SendSuccess(c, types.SaveEditResponse{
			BaseResponse: types.OK(msg),
			Directive:    directive,
			Commit:       commit,
		})
	}
}

// CancelEdit closes the dialog without saving
// @Summary      Cancel edit
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.BaseResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/reviews/{id}/edit [delete]
func CancelEdit(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		if err := session.CancelEdit(); err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.OK("edit cancelled"))
	}
}

// AppendDirective adds a directive to the log
// @Summary      Append directive
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body types.AppendDirectiveRequest true "Directive"
// @Success      201 {object} types.DirectiveResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "Commit in flight"
// @Router       /api/v1/reviews/{id}/log [post]
func AppendDirective(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		var req types.AppendDirectiveRequest
		if !types.BindJSONOrError(c, &req) {
			return
		}
		d, err := session.AppendDirective(*req.Frame, req.OldID, req.NewID)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendCreated(c, types.DirectiveResponse{BaseResponse: types.OK("directive logged"), Directive: d})
	}
}

// GetLog lists the correction log
// @Summary      Correction log
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.LogResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/reviews/{id}/log [get]
func GetLog(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		log := session.Log()
		types.SendSuccess(c, types.LogResponse{BaseResponse: types.OK(""), Log: log, Count: len(log)})
	}
}

// Commit sends the whole log for reprocessing
// @Summary      Commit corrections
// @Description  Sends every logged directive as one batch. On success the session plays the new media and the log is cleared.
// @Tags         reviews
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} types.CommitResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "Empty log or commit in flight"
// @Failure      502 {object} types.ErrorResponse "Reprocessing failed"
// @Router       /api/v1/reviews/{id}/commit [post]
func Commit(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := lookup(c, deps)
		if !ok {
			return
		}
		res, err := session.CommitAll(c.Request.Context())
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.CommitResponse{BaseResponse: types.OK(res.Message), Commit: res})
	}
}

func lookup(c *gin.Context, deps *types.Dependencies) (*review.Session, bool) {
	id, ok := types.RequireParam(c, "id")
	if !ok {
		return nil, false
	}
	session, err := deps.Reviews.Get(id)
	if err != nil {
		types.SendError(c, err)
		return nil, false
	}
	return session, true
}
