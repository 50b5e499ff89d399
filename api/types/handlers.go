package types

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

// Handler utility functions to reduce duplication across handlers

// RequireParam returns a non-empty URL parameter, or sends a validation
// error and returns false.
func RequireParam(c *gin.Context, paramName string) (string, bool) {
	value := strings.TrimSpace(c.Param(paramName))
	if value == "" {
		SendError(c, apperrors.MissingFieldError(paramName))
		return "", false
	}
	return value, true
}

// BindJSONOrError attempts to bind JSON request body to target struct
// Returns false and sends error response if binding fails
func BindJSONOrError(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		SendError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body").
			WithDetail("reason", err.Error()))
		return false
	}
	return true
}

// BindOptionalJSON binds a body that may be absent entirely.
func BindOptionalJSON(c *gin.Context, target any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return BindJSONOrError(c, target)
}

// SendSuccess sends a standardized success response with data
func SendSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a standardized created response with data
func SendCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK is the BaseResponse of every successful reply.
func OK(message string) BaseResponse {
	return BaseResponse{Status: StatusOK, Message: message}
}
