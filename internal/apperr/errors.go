// Package apperr defines the error taxonomy shared by the storage layer and
// the managers built on it. Every failure a caller can act on carries a Kind;
// compare with errors.Is against the exported sentinels.
package apperr

import (
	"errors"

	"schoolhub/internal/constants"
)

type Kind string

const (
	KindValidation         Kind = constants.ErrCodeInvalidRequest
	KindDuplicateUsername  Kind = constants.ErrCodeUsernameTaken
	KindInvalidCredentials Kind = constants.ErrCodeInvalidCredentials
	KindNotFound           Kind = constants.ErrCodeNotFound
	KindForbidden          Kind = constants.ErrCodeForbidden
	KindUnauthenticated    Kind = constants.ErrCodeUnauthenticated
	KindStorage            Kind = constants.ErrCodeStorage
)

type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind, so that
// errors.Is(err, apperr.ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDuplicateUsername  = &Error{Kind: KindDuplicateUsername}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrStorage            = &Error{Kind: KindStorage}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Storage(message string, err error) *Error {
	return Wrap(KindStorage, message, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindStorage for errors that carry no kind.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// MessageOf returns the user-facing message for err. Errors without a kind
// get a generic message so internal details are not leaked.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "An internal error occurred"
}
