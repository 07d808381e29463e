package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no object exists under the requested name.
	ErrNotFound = errors.New("file not found")

	// ErrStorageUnavailable is returned when the backend cannot be reached,
	// is misconfigured, or did not answer in time.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageWriteFailed is returned when a write or delete fails.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrInvalidName is returned for names that cannot be used as a key.
	ErrInvalidName = errors.New("invalid file name")

	// ErrKeyExists is returned by a StorageEngine when Put targets a key that
	// is already taken. The Gateway retries with a new key and never lets it
	// escape.
	ErrKeyExists = errors.New("key already exists")

	// errPublishConflict reports a key that was taken by a concurrent writer
	// after content had already been consumed.
	errPublishConflict = errors.New("key taken while publishing")
)

// classify converts a backend error into one of the gateway error kinds.
// Errors that already carry a kind keep it; fallback is used otherwise.
func classify(err error, fallback error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrStorageWriteFailed):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", fallback, err)
	}
}
