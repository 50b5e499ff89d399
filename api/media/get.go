package media

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/services/review"
	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

// Get serves a stored video or rendition with range support
// @Summary      Stream media file
// @Description  Serves an uploaded video or rendered overlay. Supports Range requests for seeking.
// @Tags         media
// @Produce      video/mp4
// @Param        name path string true "File name"
// @Param        Range header string false "Byte range"
// @Success      200 {file} binary
// @Success      206 {file} binary "Partial content"
// @Failure      404 {object} types.ErrorResponse
// @Router       /media/{name} [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := types.RequireParam(c, "name")
		if !ok {
			return
		}

		file, err := deps.MediaService.Open(name)
		if err != nil {
			if errors.Is(err, review.ErrVideoNotFound) || errors.Is(err, review.ErrMediaUnavailable) {
				types.SendError(c, apperrors.NotFound("media", name))
				return
			}
			types.SendError(c, err)
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil || info.IsDir() {
			types.SendError(c, apperrors.NotFound("media", name))
			return
		}

		c.Header("Accept-Ranges", "bytes")
		c.Header("Cache-Control", "public, max-age=3600")
		http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
	}
}
