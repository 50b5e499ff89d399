package videos

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/jobs"
	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

// Upload stores a new video
// @Summary      Upload video
// @Description  Store a video file and probe its duration, frame rate and frame count
// @Tags         videos
// @Accept       multipart/form-data
// @Produce      json
// @Param        video formData file true "Video file"
// @Success      201 {object} types.VideoResponse
// @Failure      400 {object} types.ErrorResponse "No file"
// @Failure      413 {object} types.ErrorResponse "File too large"
// @Failure      415 {object} types.ErrorResponse "Not a video"
// @Router       /api/v1/videos [post]
func Upload(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, ok := formFile(c, "video", deps.MaxUploadBytes)
		if !ok {
			return
		}
		defer file.Close()

		video, err := deps.MediaService.Upload(c.Request.Context(), header.Filename, file)
		if err != nil {
			types.SendError(c, err)
			return
		}

		resp := types.VideoResponse{BaseResponse: types.OK("video stored"), Video: video}
		if media, err := deps.MediaService.Media(c.Request.Context(), video.UUID); err == nil {
			resp.Media = &media
		}
		types.SendCreated(c, resp)
	}
}

// List returns stored videos
// @Summary      List videos
// @Tags         videos
// @Produce      json
// @Success      200 {object} types.VideosResponse
// @Router       /api/v1/videos [get]
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		videos, err := deps.MediaService.List(c.Request.Context())
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.VideosResponse{
			BaseResponse: types.OK(""),
			Videos:       videos,
			Count:        len(videos),
		})
	}
}

// Get returns one video and the media a review of it would play
// @Summary      Get video
// @Tags         videos
// @Produce      json
// @Param        id path string true "Video ID"
// @Success      200 {object} types.VideoResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/videos/{id} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}

		video, err := deps.MediaService.Get(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}

		resp := types.VideoResponse{BaseResponse: types.OK(""), Video: video}
		if media, err := deps.MediaService.Media(c.Request.Context(), id); err == nil {
			resp.Media = &media
		}
		types.SendSuccess(c, resp)
	}
}

// ImportAnnotations replaces a video's tracking data and queues a render
// @Summary      Import tracking CSV
// @Description  Replace the video's detections with a tracking CSV (frame, track_id, class_id, confidence, x1, y1, x2, y2) and queue an overlay render
// @Tags         videos
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Video ID"
// @Param        csv formData file true "Tracking CSV"
// @Success      202 {object} types.ImportResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      422 {object} types.ErrorResponse "Malformed CSV"
// @Router       /api/v1/videos/{id}/annotations [post]
func ImportAnnotations(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		file, _, ok := formFile(c, "csv", deps.MaxUploadBytes)
		if !ok {
			return
		}
		defer file.Close()

		ctx := c.Request.Context()
		result, err := deps.AnnotationService.Import(ctx, id, file)
		if err != nil {
			types.SendError(c, err)
			return
		}

		resp := types.ImportResponse{BaseResponse: types.OK("annotations imported"), Import: result}
		if deps.JobService != nil {
			job, err := deps.JobService.EnqueueUniqueJob(ctx, models.JobTypeRender, models.JobPayload{
				models.PayloadVideoID: id,
				models.PayloadReason:  "import",
			}, models.PayloadVideoID, jobs.WithCreatedBy("import"))
			if err != nil {
				// The import itself stands; the render can be queued again later.
				logging.WithVideo(logging.OrNop(deps.Logger), id).Error("queueing render failed", "error", err)
				resp.Message = "annotations imported, render not queued"
			} else {
				resp.JobID = job.ID
			}
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// KeyFrames lists the frames where tracks end
// @Summary      List key frames
// @Description  Frames where a confident track ends, the candidates for an identity correction
// @Tags         videos
// @Produce      json
// @Param        id path string true "Video ID"
// @Success      200 {object} types.KeyFramesResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      422 {object} types.ErrorResponse "No annotations imported"
// @Router       /api/v1/videos/{id}/keyframes [get]
func KeyFrames(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		entries, err := deps.AnnotationService.KeyFrames(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.KeyFramesResponse{
			BaseResponse: types.OK(""),
			KeyFrames:    entries,
			Count:        len(entries),
		})
	}
}

// Tracks lists per-track summaries
// @Summary      List tracks
// @Tags         videos
// @Produce      json
// @Param        id path string true "Video ID"
// @Success      200 {object} types.TracksResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      422 {object} types.ErrorResponse "No annotations imported"
// @Router       /api/v1/videos/{id}/tracks [get]
func Tracks(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		tracks, err := deps.AnnotationService.TrackSummaries(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.TracksResponse{
			BaseResponse: types.OK(""),
			Tracks:       tracks,
			Count:        len(tracks),
		})
	}
}

// RenderJob reports the latest render of a video
// @Summary      Latest render job
// @Tags         videos
// @Produce      json
// @Param        id path string true "Video ID"
// @Success      200 {object} types.JobResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /api/v1/videos/{id}/render [get]
func RenderJob(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		job, err := deps.JobService.GetLatestRenderJob(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}
		types.SendSuccess(c, types.JobResponse{BaseResponse: types.OK(""), Job: job})
	}
}

// RetryRender requeues the latest render of a video after it failed
// @Summary      Retry failed render
// @Tags         videos
// @Produce      json
// @Param        id path string true "Video ID"
// @Success      202 {object} types.JobResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse "Latest render has not failed"
// @Router       /api/v1/videos/{id}/render/retry [post]
func RetryRender(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.RequireParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		latest, err := deps.JobService.GetLatestRenderJob(ctx, id)
		if err != nil {
			types.SendError(c, err)
			return
		}
		job, err := deps.JobService.RetryFailedJob(ctx, latest.ID)
		if err != nil {
			types.SendError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, types.JobResponse{BaseResponse: types.OK("render requeued"), Job: job})
	}
}

// formFile opens a multipart file field, capping the body at maxBytes when
// set. Failures are sent before it returns false.
func formFile(c *gin.Context, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			types.SendError(c, apperrors.TooLarge(tooLarge.Limit))
			return nil, nil, false
		}
		types.SendError(c, apperrors.MissingFieldError(field).WithDetail("reason", err.Error()))
		return nil, nil, false
	}
	return file, header, true
}
