package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/killallgit/trackreview-api/api/health"
	"github.com/killallgit/trackreview-api/api/media"
	"github.com/killallgit/trackreview-api/api/reviews"
	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/api/version"
	"github.com/killallgit/trackreview-api/api/videos"
	_ "github.com/killallgit/trackreview-api/docs/swagger"
)

// maxJSONBodyBytes caps request bodies outside the upload routes.
const maxJSONBodyBytes = 1 << 20

// RegisterRoutes registers all API routes. limiter may be nil to disable
// rate limiting.
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, limiter *RateLimiter) {
	// Public routes (no rate limiting)
	health.RegisterRoutes(engine, deps)
	version.RegisterRoutes(engine, deps)

	engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
	engine.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Media is fetched in many small range requests while scrubbing, so it
	// sits outside the API limiter.
	media.RegisterRoutes(engine.Group("/media"), deps)

	engine.NoRoute(NotFoundHandler())

	v1 := engine.Group("/api/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware())
	}

	// Uploads are capped per handler by deps.MaxUploadBytes.
	videos.RegisterRoutes(v1.Group("/videos"), deps)

	reviewGroup := v1.Group("/reviews")
	reviewGroup.Use(RequestSizeLimitWithSize(maxJSONBodyBytes))
	reviews.RegisterRoutes(reviewGroup, deps)
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Status:  types.StatusError,
			Message: "The requested endpoint was not found",
			Error:   "NOT_FOUND",
			Details: map[string]string{"path": c.Request.URL.Path},
		})
	}
}
