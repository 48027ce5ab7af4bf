// Package errors defines the domain error kinds produced by the loan service.
//
// Services return *Error values; handlers translate them into HTTP responses:
//
//	if errors.Is(err, errors.ErrConflict) {
//	    // 409
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Unwrap = errors.Unwrap
)

// Kind classifies a domain error.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindValidation         Kind = "VALIDATION"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
)

// HTTPStatus returns the HTTP status code for a kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Conflict reasons.
const (
	ReasonNoCopiesAvailable = "no copies available"
	ReasonAlreadyBorrowed   = "already borrowed"
	ReasonAlreadyReturned   = "already returned"
	ReasonActiveLoans       = "has active loans"
	ReasonDuplicate         = "duplicate"
)

// Error is a domain error.
//
// Reason identifies the entity for NOT_FOUND, the conflict reason for
// CONFLICT, the field for VALIDATION and the failed operation for
// STORAGE_UNAVAILABLE.
type Error struct {
	Kind    Kind   `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same kind. When the target
// carries a reason, the reasons must match too.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// WithDetails attaches structured details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithMessage replaces the user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Sentinel errors for use with errors.Is. They match any error of their kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
)

// Reason-specific sentinels.
var (
	ErrNoCopiesAvailable = Conflict(ReasonNoCopiesAvailable)
	ErrAlreadyBorrowed   = Conflict(ReasonAlreadyBorrowed)
	ErrAlreadyReturned   = Conflict(ReasonAlreadyReturned)
	ErrActiveLoans       = Conflict(ReasonActiveLoans)
)

// NotFound reports that the named entity does not exist.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Reason: entity, Message: entity + " not found"}
}

// Conflict reports a business-rule conflict.
func Conflict(reason string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: reason}
}

// Conflictf reports a conflict with a custom message.
func Conflictf(reason, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailed reports that field violates rule.
func ValidationFailed(field, rule string) *Error {
	return &Error{
		Kind:    KindValidation,
		Reason:  field,
		Message: fmt.Sprintf("%s %s", field, rule),
	}
}

// ValidationWithDetails reports several field failures at once.
func ValidationWithDetails(msg string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// StorageUnavailable wraps an infrastructure failure of op.
func StorageUnavailable(op string, cause error) *Error {
	return &Error{
		Kind:    KindStorageUnavailable,
		Reason:  op,
		Message: "storage unavailable",
		cause:   cause,
	}
}

// IsDomain reports whether err is (or wraps) a domain *Error.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
