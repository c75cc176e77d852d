// Package errors defines the error taxonomy shared by the indexing and
// retrieval engine. Every failure surfaced to a caller wraps one of the
// sentinels below so callers can branch with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCorpusFormat    = errors.New("corpus format error")
	ErrIndexFormat     = errors.New("index format error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIOFailure       = errors.New("io failure")
	ErrInternal        = errors.New("internal error")
)

// AppError ties a sentinel to a human-readable message, the HTTP status the
// front end should answer with, and the underlying cause if there is one.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Err.Error(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Wrap attaches cause to a new AppError for sentinel.
func Wrap(sentinel error, cause error, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusFor(sentinel),
		Cause:      cause,
	}
}

// CorpusFormat reports an input record that cannot be read as a (key, text) pair.
func CorpusFormat(line int, cause error, format string, args ...any) *AppError {
	msg := fmt.Sprintf(format, args...)
	if line > 0 {
		msg = fmt.Sprintf("line %d: %s", line, msg)
	}
	return &AppError{
		Err:        ErrCorpusFormat,
		Message:    msg,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// IndexFormat reports a malformed or truncated index artifact.
func IndexFormat(cause error, format string, args ...any) *AppError {
	return Wrap(ErrIndexFormat, cause, format, args...)
}

// InvalidArgument reports a caller contract violation.
func InvalidArgument(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

// IOFailure reports an unavailable underlying store.
func IOFailure(cause error, format string, args ...any) *AppError {
	return Wrap(ErrIOFailure, cause, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return statusFor(err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrCorpusFormat), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrIOFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
