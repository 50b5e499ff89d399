package errors

import "net/http"

// ErrorCode is the machine readable error kind sent to API clients.
type ErrorCode string

const (
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	ErrCodeValidation   ErrorCode = "VALIDATION"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// Review session and annotation failures.
	ErrCodeInvalidDuration         ErrorCode = "INVALID_DURATION"
	ErrCodePreconditionNotMet      ErrorCode = "PRECONDITION_NOT_MET"
	ErrCodeNothingToCommit         ErrorCode = "NOTHING_TO_COMMIT"
	ErrCodeMalformedAnnotationData ErrorCode = "MALFORMED_ANNOTATION_DATA"
	ErrCodeMediaUnavailable        ErrorCode = "MEDIA_UNAVAILABLE"
	ErrCodeUnsupportedMedia        ErrorCode = "UNSUPPORTED_MEDIA"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE"
	ErrCodeAPIRateLimit    ErrorCode = "API_RATE_LIMIT"

	ErrCodeInternal        ErrorCode = "INTERNAL"
	ErrCodeResourceExhaust ErrorCode = "RESOURCE_EXHAUSTED"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeNotFound:                http.StatusNotFound,
	ErrCodeConflict:                http.StatusConflict,
	ErrCodeValidation:              http.StatusBadRequest,
	ErrCodeInvalidInput:            http.StatusBadRequest,
	ErrCodeMissingField:            http.StatusBadRequest,
	ErrCodeInvalidDuration:         http.StatusConflict,
	ErrCodePreconditionNotMet:      http.StatusPreconditionFailed,
	ErrCodeNothingToCommit:         http.StatusConflict,
	ErrCodeMalformedAnnotationData: http.StatusUnprocessableEntity,
	ErrCodeMediaUnavailable:        http.StatusFailedDependency,
	ErrCodeUnsupportedMedia:        http.StatusUnsupportedMediaType,
	ErrCodeExternalService:         http.StatusBadGateway,
	ErrCodeAPIRateLimit:            http.StatusTooManyRequests,
	ErrCodeResourceExhaust:         http.StatusInsufficientStorage,
}

// Status is the HTTP status the code is reported with. Unknown codes are 500.
func (c ErrorCode) Status() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}
