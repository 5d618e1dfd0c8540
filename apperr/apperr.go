// Package apperr defines the typed errors the engine surfaces to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

// Error kinds
const (
	// Validation rejects malformed input (bad interval, non-positive amount).
	Validation Kind = iota
	// Conflict signals availability lost between check and commit.
	Conflict
	// InvalidState signals an operation attempted on a booking, escrow or
	// dispute not in the required state.
	InvalidState
	// PaymentProcessor signals a transient failure from the external
	// payment capability; the operation may be retried.
	PaymentProcessor
	// Invariant signals a would-be violation of a ledger invariant, e.g. a
	// refund exceeding the held amount. Fatal for the operation.
	Invariant
	// NotFound signals a missing record.
	NotFound
	// Forbidden signals an actor operating on a record that is not theirs.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case InvalidState:
		return "invalid_state"
	case PaymentProcessor:
		return "payment_processor"
	case Invariant:
		return "invariant_violation"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Error is a kinded engine error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// New returns a kinded error with a message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a kinded error wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, or ok=false if err carries no kind.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is kinded as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
