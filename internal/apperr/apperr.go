package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindValidation      Kind = "INVALID_INPUT"
	KindUnauthenticated Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindStore           Kind = "STORE_ERROR"
)

// GenericMessage is what users see for store failures.
const GenericMessage = "Something went wrong, please try again."

// Error is the error type returned by the service layer. Message is safe to
// show to the user; Origin carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Origin  error
}

func (e *Error) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Origin
}

func New(kind Kind, message string, origin error) *Error {
	return &Error{Kind: kind, Message: message, Origin: origin}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Please sign in to continue."}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Store wraps a failure of the backing database.
func Store(origin error) *Error {
	return &Error{Kind: KindStore, Message: GenericMessage, Origin: origin}
}

// KindOf reports the kind of err; unknown errors count as store failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindStore {
		return appErr.Message
	}
	return GenericMessage
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
