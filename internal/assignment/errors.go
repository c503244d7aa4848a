package assignment

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an expected failure of a lifecycle operation.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindAlreadyResponded ErrorKind = "ALREADY_RESPONDED"
	KindDeadlinePassed   ErrorKind = "DEADLINE_PASSED"
	KindConflict         ErrorKind = "CONFLICT"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindTransient        ErrorKind = "TRANSIENT_STORE_ERROR"
	KindValidation       ErrorKind = "VALIDATION"
)

// Error is the typed result of a lifecycle operation that did not succeed.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyResponded = &Error{Kind: KindAlreadyResponded}
	ErrDeadlinePassed   = &Error{Kind: KindDeadlinePassed}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrTransient        = &Error{Kind: KindTransient}
	ErrValidation       = &Error{Kind: KindValidation}
)

// User-facing messages for the respond outcomes.
const (
	MsgConflict         = "this project was already accepted by someone else, please refresh"
	MsgDeadlinePassed   = "invitation expired"
	MsgAlreadyResponded = "you already responded to this invitation"
	MsgForbidden        = "this invitation belongs to another developer"
)

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
