// Package domainerrors provides coded errors for the onboarding engine.
//
// Services return these so transport layers can translate outcomes into HTTP
// statuses without string matching, and so tests can assert on failure class
// rather than message text. Infrastructure facts (row missing, key taken) are
// expressed with pkg/platform/sentinel errors and wrapped into coded errors at
// the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks missing or malformed caller input, such as an
	// empty rejection reason. Recoverable by correcting the input.
	CodeValidation Code = "validation"

	// CodeInvalidTransition marks an operation that is illegal from the
	// entity's current state. Callers should re-fetch state before retrying.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeInvalidInput marks unparseable identifiers or enum values at a
	// trust boundary.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks an absent application, step, or verification record.
	CodeNotFound Code = "not_found"

	// CodeConflict marks uniqueness violations, e.g. a second active
	// application for the same vendor.
	CodeConflict Code = "conflict"

	// CodeProviderUnavailable marks a failed call to the external identity
	// verification provider. No local state is mutated.
	CodeProviderUnavailable Code = "provider_unavailable"

	// CodeForbidden marks an actor lacking the capability an operation
	// requires, e.g. reopening a permanently closed application.
	CodeForbidden Code = "forbidden"

	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"

	// CodeInvariantViolation marks a broken aggregate invariant. These are
	// programming or data errors, not user errors.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeTimeout marks an operation abandoned because its context expired.
	CodeTimeout Code = "timeout"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It satisfies errors.Is/As chains so wrapped
// infrastructure causes stay inspectable.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause yields
// a plain coded error.
func Wrap(cause error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that read like
// dErrors.Is(err, dErrors.CodeNotFound).
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for untyped
// errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer renders.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeProviderUnavailable:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
