package errors

import (
	"errors"
	"fmt"
)

// AppError is an error with a code, a client-safe message and optional
// details for the response body.
type AppError struct {
	Code     ErrorCode      `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
	HTTPCode int            `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail sets key in Details and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// GetHTTPCode returns HTTPCode when set, else the status of Code.
func (e *AppError) GetHTTPCode() int {
	if e.HTTPCode != 0 {
		return e.HTTPCode
	}
	return e.Code.Status()
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Mapping pairs a sentinel error with the code it is reported as.
type Mapping struct {
	Target error
	Code   ErrorCode
}

// FromError converts err into an AppError. An AppError anywhere in the
// chain is returned as is. Otherwise the first mapping whose target matches
// with errors.Is decides the code, and the message is err's own text.
// Anything else becomes an internal error.
func FromError(err error, mappings []Mapping) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			return Wrap(err, m.Code, err.Error())
		}
	}
	return Wrap(err, ErrCodeInternal, "internal error")
}

// Is reports whether err carries an AppError with code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode returns the code of the first AppError in err's chain, or
// ErrCodeInternal.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
