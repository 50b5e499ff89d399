package media

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
)

// RegisterRoutes registers the media file route
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("/:name", Get(deps))
	router.HEAD("/:name", Get(deps))
}
