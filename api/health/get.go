package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/api/types"
)

// Get handles health check requests
// @Summary      Health check
// @Description  Reports service status and database connectivity
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.HealthResponse
// @Router       /health [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := getDatabaseStatus(deps)

		response := types.HealthResponse{
			BaseResponse: types.OK(""),
			Services: map[string]any{
				"database":  dbStatus,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		}
		if deps != nil {
			response.Version = deps.Version
			if deps.Reviews != nil {
				response.Services["reviews"] = len(deps.Reviews.List())
			}
		}

		code := http.StatusOK
		if dbStatus["status"] == "unhealthy" {
			response.Status = types.StatusError
			response.Message = "database unavailable"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response)
	}
}

// getDatabaseStatus returns the database connection status
func getDatabaseStatus(deps *types.Dependencies) map[string]any {
	if deps == nil || deps.DB == nil || deps.DB.DB == nil {
		return map[string]any{"status": "not configured"}
	}

	if err := deps.DB.HealthCheck(); err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}

	return map[string]any{"status": "healthy"}
}
