package apperror

import "fmt"

// Kind classifies an error into the categories the HTTP layer knows how to
// translate. The decision core only ever returns these kinds; handlers map
// them to status codes in one place.
type Kind int

const (
	KindUnauthorized Kind = iota
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindUnavailable
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unavailable is the client-opaque kind. Callers are expected to log the real
// cause before returning it; the message here is what the client sees.
func Unavailable() *Error {
	return &Error{Kind: KindUnavailable, Message: "The server is currently unavailable, please try again later."}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
