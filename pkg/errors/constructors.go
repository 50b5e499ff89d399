package errors

import (
	"fmt"
	"net/http"
)

func NotFound(resource string, id any) *AppError {
	return New(ErrCodeNotFound, resource+" not found").
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func ValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func MissingFieldError(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("required field '%s' is missing", field)).
		WithDetail("field", field)
}

func RateLimitError(resource, limit string) *AppError {
	return New(ErrCodeAPIRateLimit, fmt.Sprintf("rate limit exceeded for '%s': %s", resource, limit)).
		WithDetail("resource", resource).
		WithDetail("limit", limit)
}

// TooLarge reports a request body over maxBytes. It answers 413 rather than
// the 507 other exhausted resources get.
func TooLarge(maxBytes int64) *AppError {
	err := New(ErrCodeResourceExhaust, "request body too large").WithDetail("max_bytes", maxBytes)
	err.HTTPCode = http.StatusRequestEntityTooLarge
	return err
}
