// Package errors defines the domain error taxonomy shared by the repository
// layer. Errors carry a Kind so callers can branch on the failure class
// without matching message strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	// KindUnknown is the zero value and means the error was not classified.
	KindUnknown Kind = iota

	// KindNotFound indicates the requested record does not exist.
	KindNotFound

	// KindAccessDenied indicates the caller is not allowed to mutate the record.
	KindAccessDenied

	// KindValidation indicates the input payload failed validation.
	KindValidation

	// KindTemporary indicates a transient infrastructure failure (retryable).
	KindTemporary
)

// Error is the concrete error type produced by this package.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFound builds a not-found error for the named resource.
func NewNotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

// NewAccessDenied builds an access-denied error.
func NewAccessDenied(message string) *Error {
	return &Error{Kind: KindAccessDenied, Message: message}
}

// NewValidation wraps a validation failure.
func NewValidation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// NewTemporary wraps a transient infrastructure failure.
func NewTemporary(message string, err error) *Error {
	return &Error{Kind: KindTemporary, Message: message, Err: err}
}

// Wrap attaches a message to err without changing its kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kindOf(err), Message: message, Err: err}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsAccessDenied reports whether err is an access-denied error.
func IsAccessDenied(err error) bool { return kindOf(err) == KindAccessDenied }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsTemporary reports whether err is a transient failure.
func IsTemporary(err error) bool { return kindOf(err) == KindTemporary }
