package manager

import (
	"fmt"
)

// RegistryError reports a rejected registry mutation. Cause carries the
// error kind from the mix package, so callers test with errors.Is.
type RegistryError struct {
	// RegistrationID is the id of the mix involved, if any.
	RegistrationID string

	// Operation is the operation that failed (e.g., "add", "remove").
	Operation string

	// Message describes the error.
	Message string

	// Cause is the error kind.
	Cause error
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.RegistrationID != "" {
		return fmt.Sprintf("registry error for mix %q during %s: %s: %v", e.RegistrationID, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("registry error during %s: %s: %v", e.Operation, e.Message, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

func registryError(op, id string, cause error, format string, args ...any) *RegistryError {
	return &RegistryError{
		RegistrationID: id,
		Operation:      op,
		Message:        fmt.Sprintf(format, args...),
		Cause:          cause,
	}
}

// ReloadError reports a failed reload of the mix file. The mixes previously
// loaded from the file stay registered.
type ReloadError struct {
	// FilePath is the mix file that failed to load.
	FilePath string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ReloadError) Error() string {
	return fmt.Sprintf("failed to reload mix file %q: %v", e.FilePath, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}
