package cart

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service wraps exactly one of these, so
// callers branch with errors.Is.
var (
	ErrIdentity    = errors.New("cart owner identifier required")
	ErrValidation  = errors.New("invalid cart input")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("product unavailable")
	ErrStock       = errors.New("insufficient stock")
	ErrConflict    = errors.New("cart conflict")
)

// Error carries a client-facing message alongside its kind.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}
