// Package apperr defines the error kinds surfaced by RiskCheck operations.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and the HTTP layer
type Kind int

const (
	KindInternal            Kind = iota
	KindValidation               // Caller input was malformed; nothing was persisted
	KindExternalUnavailable      // A third-party dependency could not answer
	KindInvalidState             // Operation not allowed in the current state
	KindAuth                     // Missing, wrong or unconfigured credential
	KindNotFound                 // Referenced record does not exist
	KindStorage                  // Persistence failed; safe to retry
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExternalUnavailable:
		return "external_unavailable"
	case KindInvalidState:
		return "invalid_state"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is a classified error with an operation name and a safe message
type Error struct {
	Kind Kind
	Op   string // e.g. "community.approve"
	Msg  string // Safe to show to API callers
	Err  error  // Underlying cause, not shown to callers
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrValidation) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrExternalUnavailable = &Error{Kind: KindExternalUnavailable}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrAuth                = &Error{Kind: KindAuth}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrStorage             = &Error{Kind: KindStorage}
)

// Validation returns a validation error with a caller-facing message
func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InvalidState wraps a state-machine refusal
func InvalidState(op string, err error) error {
	return &Error{Kind: KindInvalidState, Op: op, Msg: "operation not allowed in current state", Err: err}
}

// Auth returns an authentication or authorization failure
func Auth(op, msg string) error {
	return &Error{Kind: KindAuth, Op: op, Msg: msg}
}

// NotFound returns a missing-record error
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

// Storage wraps a persistence failure
func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Msg: "storage unavailable", Err: err}
}

// Unavailable wraps a third-party failure
func Unavailable(op string, err error) error {
	return &Error{Kind: KindExternalUnavailable, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message of err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

// Retryable reports whether the caller may retry the same request
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindStorage, KindExternalUnavailable:
		return true
	}
	return false
}
