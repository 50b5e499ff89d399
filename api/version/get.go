package version

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Name is reported by the root endpoint.
const Name = "Track Review API"

// Get handles version requests
// @Summary      Service version
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func Get(version string) gin.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        Name,
			"version":     version,
			"description": "Review and correct multi-object tracking annotations on video",
			"status":      "running",
		})
	}
}
