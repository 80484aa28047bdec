package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed upstream field; the record is skipped, the batch continues.
	ErrValidation = errors.New("validation failed")
	// ErrVectorDimMismatch signals an embedding of the wrong dimension; the write is rejected.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingUnavailable signals that the embedding gateway stayed unreachable after retries.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrEmbeddingProvider signals a single embedding API failure (retryable).
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrUpstreamUnavailable signals an unreachable tender source; triggers the synthetic fallback.
	ErrUpstreamUnavailable = errors.New("upstream source unavailable")
	// ErrTenderNotFound signals a missing tender record.
	ErrTenderNotFound = errors.New("tender not found")
	// ErrCompanyNotFound signals a missing company profile.
	ErrCompanyNotFound = errors.New("company not found")
	// ErrPersistenceConflict signals a stale write rejected under optimistic concurrency.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrUnknownSource signals a source identifier with no registered crawler.
	ErrUnknownSource = errors.New("unknown tender source")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a field-level validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
