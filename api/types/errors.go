package types

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/trackreview-api/internal/services/jobs"
	"github.com/killallgit/trackreview-api/internal/services/media"
	"github.com/killallgit/trackreview-api/internal/services/review"
	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

// errorMappings decides the code of domain errors. Order matters where one
// error wraps another: the first match wins.
var errorMappings = []apperrors.Mapping{
	{Target: review.ErrInvalidDuration, Code: apperrors.ErrCodeInvalidDuration},
	{Target: review.ErrPreconditionNotMet, Code: apperrors.ErrCodePreconditionNotMet},
	{Target: review.ErrValidation, Code: apperrors.ErrCodeValidation},
	{Target: review.ErrNotEditing, Code: apperrors.ErrCodeConflict},
	{Target: review.ErrNothingToCommit, Code: apperrors.ErrCodeNothingToCommit},
	{Target: review.ErrCommitInFlight, Code: apperrors.ErrCodeConflict},
	{Target: review.ErrEditInProgress, Code: apperrors.ErrCodeConflict},
	{Target: review.ErrReprocessFailed, Code: apperrors.ErrCodeExternalService},
	{Target: review.ErrMalformedAnnotationData, Code: apperrors.ErrCodeMalformedAnnotationData},
	{Target: review.ErrVideoNotFound, Code: apperrors.ErrCodeNotFound},
	{Target: review.ErrSessionNotFound, Code: apperrors.ErrCodeNotFound},
	{Target: review.ErrSessionClosed, Code: apperrors.ErrCodeNotFound},
	{Target: review.ErrMediaUnavailable, Code: apperrors.ErrCodeMediaUnavailable},
	{Target: media.ErrUnsupportedMedia, Code: apperrors.ErrCodeUnsupportedMedia},
	{Target: jobs.ErrJobNotFound, Code: apperrors.ErrCodeNotFound},
	{Target: jobs.ErrNotRetryable, Code: apperrors.ErrCodeConflict},
}

// ToAppError classifies err for an HTTP response.
func ToAppError(err error) *apperrors.AppError {
	return apperrors.FromError(err, errorMappings)
}

// SendError writes err as an ErrorResponse with the status its code maps
// to. Internal errors are logged and their text is not sent.
func SendError(c *gin.Context, err error) {
	appErr := ToAppError(err)
	if appErr.Code == apperrors.ErrCodeInternal {
		_ = c.Error(err)
	}

	resp := ErrorResponse{
		Status:  StatusError,
		Message: appErr.Message,
		Error:   string(appErr.Code),
	}
	if len(appErr.Details) > 0 {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.GetHTTPCode(), resp)
}
