package app

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a service failure for the transport layer.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExternal   ErrorKind = "external"
	KindInternal   ErrorKind = "internal"
)

// Error is returned by every Service operation. Message is safe to show to
// callers; Err carries the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func notFoundError(message string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

func conflictError(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func externalError(message string, err error) *Error {
	return &Error{Kind: KindExternal, Message: message, Err: err}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
