// Package apperr defines the workflow error taxonomy. Every error returned
// by a workflow operation wraps exactly one of the Err* kinds so callers can
// branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDuplicateInvite   = errors.New("duplicate invite")
	ErrForbidden         = errors.New("forbidden")
	ErrDependency        = errors.New("dependency failure")
)

// Error is a classified workflow error. Op names the failing operation
// (e.g. "team.invite"), Msg is safe to show to the user and Err is the
// optional underlying cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports an empty or malformed input field.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports that a referenced id does not resolve.
func NotFound(op, what, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("%s %s not found", what, id)}
}

// InvalidTransition reports a violated state-machine precondition.
func InvalidTransition(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidTransition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// DuplicateInvite reports an invite that policy blocks.
func DuplicateInvite(op, email string) error {
	return &Error{Kind: ErrDuplicateInvite, Op: op, Msg: fmt.Sprintf("%s has already been invited", email)}
}

// Forbidden reports an actor acting on a record it has no role on.
func Forbidden(op, format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Dependency wraps a failure of the record store or another external
// service. A nil err yields nil.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrDependency, Op: op, Err: err}
}

// KindOf returns the error kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range []error{
		ErrValidation, ErrNotFound, ErrInvalidTransition,
		ErrDuplicateInvite, ErrForbidden, ErrDependency,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// UserMessage returns the one-line failure message shown to the user.
// Dependency failures get a generic notice; the cause is for the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if !errors.As(err, &ae) || errors.Is(err, ErrDependency) {
		return "Something went wrong. Please try again."
	}
	if ae.Msg != "" {
		return ae.Msg
	}
	return ae.Kind.Error()
}
