package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteOperationFailed marks a remote call that completed with a
	// failure envelope, returned no data, or timed out.
	ErrRemoteOperationFailed = errors.New("remote operation failed")

	// ErrValidation marks input rejected before any store or network call.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned by operations that need an existing contact.
	ErrNotFound = errors.New("contact not found")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LocalStoreError wraps a persistent store failure. These are never masked by
// fallback logic.
type LocalStoreError struct {
	Op  string
	Err error
}

func (e *LocalStoreError) Error() string {
	return fmt.Sprintf("local store: %s: %v", e.Op, e.Err)
}

func (e *LocalStoreError) Unwrap() error { return e.Err }

// IsLocalStoreFailure reports whether err came from the persistent store.
func IsLocalStoreFailure(err error) bool {
	var lse *LocalStoreError
	return errors.As(err, &lse)
}
