package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies failures surfaced by the portal client and downloader
type ErrorType string

const (
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeParse          ErrorType = "parse"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is a typed failure. Code carries the HTTP status when one was received.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s error: %v", e.Type, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with a formatted message
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// Configuration reports a missing or invalid setting
func Configuration(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfiguration, format, args...)
}

// Auth reports a failed authentication strategy
func Auth(format string, args ...interface{}) *Error {
	return New(ErrorTypeAuthentication, format, args...)
}

// Transport reports a network level failure or an unusable HTTP status
func Transport(code int, format string, args ...interface{}) *Error {
	e := New(ErrorTypeTransport, format, args...)
	e.Code = code
	return e
}

// Network reports a request that produced no HTTP response
func Network(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrorTypeTransport, err, format, args...)
}

// Parse reports a malformed JSON or HTML document
func Parse(format string, args ...interface{}) *Error {
	return New(ErrorTypeParse, format, args...)
}

// IO reports a filesystem failure
func IO(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrorTypeIO, err, format, args...)
}

// TypeOf returns the type of the first typed error in the chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// StatusCode returns the HTTP status attached to err, or 0
func StatusCode(err error) int {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Code
	}
	return 0
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // no response
		return true
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}

// ShouldRetry combines the type and status checks for a single error
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if !IsRetryable(TypeOf(err)) {
		return false
	}
	return IsRetryableStatusCode(StatusCode(err))
}
