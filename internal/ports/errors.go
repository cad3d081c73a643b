package ports

import (
	"errors"
	"fmt"
)

// Errors reported by snapshot sources, caches and change notifiers.
var (
	// ErrServiceUnavailable indicates that the data source is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that a load exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidSnapshot indicates that the data source returned a cohort
	// that cannot be ranked, such as one with duplicate agent IDs.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrCacheCorrupted indicates that a cached value has an unexpected type.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrNotifierClosed indicates that a change notifier has no live
	// connection to listen on.
	ErrNotifierClosed = errors.New("change notifier closed")
)

// LoaderError represents an error from a snapshot loader.
// It includes the loader name and the operation that failed.
type LoaderError struct {
	// Source is the name of the loader that failed.
	Source string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for LoaderError.
func (e *LoaderError) Error() string {
	return fmt.Sprintf("loader error: source=%s, operation=%s, err=%v", e.Source, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoaderError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the load can be
// retried by the caller.
func (e *LoaderError) IsRetryable() bool {
	return errors.Is(e.Err, ErrServiceUnavailable) || errors.Is(e.Err, ErrTimeout)
}

// NewLoaderError creates a new LoaderError with the given details.
func NewLoaderError(source, operation string, err error) *LoaderError {
	return &LoaderError{
		Source:    source,
		Operation: operation,
		Err:       err,
	}
}

// CacheError wraps a failed cache operation with the key it touched. Cache
// errors never fail a request; the service logs them and recomputes.
type CacheError struct {
	Key       string
	Operation string
	Err       error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Operation, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError returns a CacheError for operation on key.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{Key: key, Operation: operation, Err: err}
}
