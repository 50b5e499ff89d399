package videos

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
)

// RegisterRoutes registers video and annotation routes
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("", Upload(deps))
	router.GET("", List(deps))
	router.GET("/:id", Get(deps))
	router.POST("/:id/annotations", ImportAnnotations(deps))
	router.GET("/:id/keyframes", KeyFrames(deps))
	router.GET("/:id/tracks", Tracks(deps))
	router.GET("/:id/render", RenderJob(deps))
	router.POST("/:id/render/retry", RetryRender(deps))
}
