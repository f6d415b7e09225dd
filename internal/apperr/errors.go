package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports bad input. Recoverable locally, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validation builds a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PermissionError reports a denied action. Surfaced as a denial, not retried.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Reason
}

// Permission builds a PermissionError.
func Permission(format string, args ...any) error {
	return &PermissionError{Reason: fmt.Sprintf(format, args...)}
}

// UploadError reports a failed blob transfer. Retryable; the dependent
// message stays visibly pending or failed.
type UploadError struct {
	Cause error
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Cause.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// Upload wraps an underlying transfer failure.
func Upload(cause error) error {
	return &UploadError{Cause: cause}
}

// InvariantViolation marks a write that would break an internal invariant,
// such as a backward delivery-status transition. It is logged and the
// offending write dropped; it is never surfaced to callers.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Detail
}

// Invariant builds an InvariantViolation.
func Invariant(format string, args ...any) error {
	return &InvariantViolation{Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var p *PermissionError
	return errors.As(err, &p)
}

// IsUpload reports whether err is an UploadError.
func IsUpload(err error) bool {
	var u *UploadError
	return errors.As(err, &u)
}
