// Package errors provides the sentinel errors and category predicates for
// the chunk persistence layer.
//
// Three categories matter to callers:
//   - Configuration errors: surfaced immediately, never retried.
//   - Transient I/O errors: marked by the backend once its own retries
//     are exhausted; the caller may re-drive the whole operation.
//   - Stream errors: a failed write stream reports the first error and is
//     abandoned; already-accepted elements stay durable.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrShardCountMismatch = errors.New("shard count differs from initialized dataset")

	// Lifecycle errors
	ErrStoreClosed = errors.New("store is closed")

	// Capability errors
	ErrWriteOnlyStore = errors.New("read operations unsupported by write-only sink")

	// Stream errors
	ErrStreamAborted = errors.New("write stream aborted")

	// Transient I/O errors
	ErrUnavailable = errors.New("backend temporarily unavailable")
)

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsConfig returns true if err is a configuration error. Configuration
// errors are never retried.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrShardCountMismatch)
}

// IsTransient returns true if err is an I/O failure that may succeed if
// the caller re-drives the operation.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Transient marks an error as transient while preserving its cause.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}
