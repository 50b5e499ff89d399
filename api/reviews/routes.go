package reviews

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// RegisterRoutes registers review session routes
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.POST("", Open(deps))
	router.GET("", List(deps))

	session := router.Group("/:id")
	{
		session.GET("", Get(deps))
		session.DELETE("", Close(deps))

		// Playback and key-frame navigation
		session.POST("/play", Transport(deps, (*review.Session).Play))
		session.POST("/pause", Transport(deps, (*review.Session).Pause))
		session.POST("/toggle", Transport(deps, (*review.Session).Toggle))
		session.POST("/previous", Transport(deps, (*review.Session).Previous))
		session.POST("/next", Transport(deps, (*review.Session).Next))
		session.POST("/seek", Seek(deps))
		session.POST("/refresh", Refresh(deps))

		// Edit dialog
		session.POST("/edit", OpenEdit(deps))
		session.PUT("/edit", UpdateDraft(deps))
		session.DELETE("/edit", CancelEdit(deps))
		session.POST("/edit/save", SaveEdit(deps))

		// Correction log
		session.POST("/log", AppendDirective(deps))
		session.GET("/log", GetLog(deps))
		session.POST("/commit", Commit(deps))
	}
}
