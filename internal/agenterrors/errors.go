// Package agenterrors implements the error taxonomy of SPEC_FULL §7: a
// small set of error Kinds (not Go types) that every component wraps its
// failures in, plus the constant-backoff retry and circuit-breaker helpers
// the orchestration loop and provider facade use against flaky transports.
package agenterrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure per SPEC_FULL §7's taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindProtocol
	KindResource
	KindLogical
	KindBudget
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	case KindLogical:
		return "logical"
	case KindBudget:
		return "budget"
	case KindCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged wrapped error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, otherwise KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err's Kind is one the orchestration loop and
// provider facade should retry (Transport only, per SPEC_FULL §7).
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}
