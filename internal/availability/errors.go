package availability

import (
	"errors"
	"fmt"
)

// Kind classifies an availability error.
type Kind string

// Error kinds. The string values are stable and used as metric labels.
const (
	// KindNotConfigured means no credential is on file for the user.
	KindNotConfigured Kind = "not_configured"

	// KindUnauthorized means the user must re-authorize calendar access.
	KindUnauthorized Kind = "unauthorized"

	// KindCalendarUnavailable means the calendar could not be read; the
	// caller may retry later.
	KindCalendarUnavailable Kind = "calendar_unavailable"

	// KindInvalidArgument means the request was rejected before any I/O.
	KindInvalidArgument Kind = "invalid_argument"
)

// Error is returned by every Service operation.
//
// The message never includes upstream detail; the underlying cause, if any,
// is reachable through errors.Unwrap.
type Error struct {
	Kind        Kind
	Description string
	cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap returns the upstream cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrUnauthorized) matches regardless of the description.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for use with errors.Is.
var (
	ErrNotConfigured       = &Error{Kind: KindNotConfigured}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrCalendarUnavailable = &Error{Kind: KindCalendarUnavailable}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
)

func newError(kind Kind, description string, cause error) *Error {
	return &Error{Kind: kind, Description: description, cause: cause}
}

func notConfigured(cause error) *Error {
	return newError(KindNotConfigured, "no calendar credential on file", cause)
}

func unauthorized(cause error) *Error {
	return newError(KindUnauthorized, "reconnect required", cause)
}

func calendarUnavailable(cause error) *Error {
	return newError(KindCalendarUnavailable, "calendar could not be read", cause)
}

func invalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of err, or "" if err is nil or not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
