package common

import "errors"

// Error kinds. Compare with errors.Is; every *Error matches exactly one kind.
var (
	ErrValidation       = errors.New("validation error")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrUpstream         = errors.New("upstream error")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error carries a caller-facing message together with its kind and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Validation builds an ErrValidation error.
func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

// Forbidden builds an ErrForbidden error.
func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }

// Unauthenticated builds an ErrUnauthenticated error.
func Unauthenticated(msg string) error { return &Error{Kind: ErrUnauthenticated, Message: msg} }

// NotFound builds an ErrNotFound error.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Upstream builds an ErrUpstream error wrapping cause, which may be nil.
func Upstream(msg string, cause error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Err: cause}
}

// Message returns the caller-facing message of err, or "" when err is not an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
