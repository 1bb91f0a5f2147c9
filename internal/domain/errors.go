package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers classify with errors.Is;
// wrapped messages carry the specifics.
var (
	// ErrTenantContextMissing is returned by every store operation invoked
	// without an ambient tenant context.
	ErrTenantContextMissing = errors.New("tenant context is not available")

	// ErrNotAuthorized is returned when a payload or query falls outside the
	// ambient tenant scope. It is a failure result, never partial data.
	ErrNotAuthorized = errors.New("operation not authorized for tenant scope")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrValidation is returned when input is rejected before any persistence.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream wraps listings-source and publisher failures; it propagates
	// up as the scan's failure reason.
	ErrUpstream = errors.New("upstream dependency failed")
)

// Validationf builds a wrapped validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is (or wraps) ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
