// Package errors provides error handling for tcgbot.
//
// It re-exports github.com/cockroachdb/errors so the rest of the code base
// gets stack traces, wrapping, hints and details from a single import:
//
//	if err := poster.Login(ctx); err != nil {
//	    return errors.Wrap(err, "failed to open bluesky session")
//	}
//
//	return errors.WithHint(err, "set bluesky.app_password in am.toml")
//
// Domain code compares against the sentinels below with errors.Is.
package errors

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints

	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
)

// Sentinel errors shared by the job, poster and server packages.
var (
	// ErrNotFound indicates the requested job or item does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates a request failed validation
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a duplicate id or a job that cannot change state yet
	ErrConflict = New("resource conflict")

	// ErrServiceUnavailable indicates an integration is not configured
	ErrServiceUnavailable = New("service unavailable")

	// ErrRateLimited indicates the platform or the local pacing gate refused a post
	ErrRateLimited = New("rate limited")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsServiceUnavailableError checks if an error is or wraps ErrServiceUnavailable
func IsServiceUnavailableError(err error) bool {
	return err != nil && Is(err, ErrServiceUnavailable)
}

// IsRateLimitedError reports whether err is ErrRateLimited or carries a
// platform rate-limit message (HTTP 429 / "Too Many Requests").
func IsRateLimitedError(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "ratelimitexceeded") ||
		strings.Contains(msg, "status 429")
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewConflictError creates a conflict error with a formatted message
func NewConflictError(format string, args ...interface{}) error {
	return Wrap(ErrConflict, Newf(format, args...).Error())
}
