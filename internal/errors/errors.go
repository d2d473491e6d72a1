package errors

import (
	"errors"
	"fmt"
)

// Error kinds returned by the link registry, the redirect resolver and the
// statistics aggregator. Callers match them with errors.Is.
var (
	// ErrInvalidInput covers malformed URLs and malformed custom codes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a custom short code is already taken.
	ErrConflict = errors.New("short code already exists")

	// ErrNotFound is returned when a short code doesn't exist in the database,
	// or when a redirect path is structurally not a short code.
	ErrNotFound = errors.New("short code not found")

	// ErrExhaustedRetries is returned when we can't generate a unique short code.
	// It is transient: the whole create operation may be retried.
	ErrExhaustedRetries = errors.New("failed to generate unique short code")

	// ErrStoreUnavailable is matched by every StoreError.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Refined invalid-input errors. Each one matches ErrInvalidInput as well.
var (
	ErrURLRequired      = fmt.Errorf("%w: URL is required", ErrInvalidInput)
	ErrInvalidURL       = fmt.Errorf("%w: URL must be an absolute http or https URL", ErrInvalidInput)
	ErrInvalidShortCode = fmt.Errorf("%w: code must be 6-8 alphanumeric characters [A-Za-z0-9]", ErrInvalidInput)
)

// StoreError wraps a backend failure. Its message names the operation only;
// the cause stays available to the logs through Cause but never reaches callers.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s", e.Op)
}

// Is lets errors.Is(err, ErrStoreUnavailable) match any StoreError.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError builds a StoreError for the given operation.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{Op: op, Cause: cause}
}

// ErrURLCheckFailed is returned when a target health check fails
type ErrURLCheckFailed struct {
	URL    string
	Reason string
}

func (e ErrURLCheckFailed) Error() string {
	return fmt.Sprintf("failed to check URL %s: %s", e.URL, e.Reason)
}
