package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies why a request failed.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindForbidden   Kind = "forbidden"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream_error"
)

const (
	forbiddenMessage   = "No requests allowed."
	rateLimitedMessage = "No requests left. Please add your own API key or try again in 24h."
)

// Error is the terminal failure of a request. StatusCode is what the HTTP
// layer answers with, Err is the message the caller gets to see.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error

	// RetryAfter is set for KindRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the text surfaced to the caller.
func (e *Error) Message() string {
	return e.Err.Error()
}

var (
	ErrForbidden   = &Error{Kind: KindForbidden, StatusCode: http.StatusForbidden, Err: errors.New(forbiddenMessage)}
	ErrRateLimited = &Error{Kind: KindRateLimited, StatusCode: http.StatusTooManyRequests, Err: errors.New(rateLimitedMessage)}
)

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, StatusCode: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

func upstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, StatusCode: http.StatusInternalServerError, Err: err}
}

func rateLimited(retryAfter time.Duration) *Error {
	e := *ErrRateLimited
	e.RetryAfter = retryAfter
	return &e
}

// KindOf reports the Kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
