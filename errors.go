package tinyvec

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error the engine returns is either one of these
// (wrapped with operation context via wrapError) or wraps one of these so
// callers can branch with errors.Is.
var (
	// ErrNotFound is not returned by any current operation: a DB holds its
	// Connection directly, so no operation looks a path up in the registry
	// and can miss. "Predicate matched nothing" is not this error either —
	// SearchWithFilter / DeleteByFilter return an empty result instead.
	ErrNotFound = errors.New("tinyvec: not found")

	// ErrInvalidArgument covers K <= 0, an empty ID list passed to
	// DeleteByIDs, a negative dimension passed to Open, and UpdateByIDs on
	// a file whose dimension is not yet established. Vectors of the wrong
	// length are skipped by Insert and UpdateByIDs; a query of the wrong
	// length gets ErrDimensionMismatch.
	ErrInvalidArgument = errors.New("tinyvec: invalid argument")

	// ErrIOFailure covers file open/read/write/rename failures against
	// the vector file.
	ErrIOFailure = errors.New("tinyvec: i/o failure")

	// ErrStoreFailure covers metadata-store statement prepare/step/commit
	// failures.
	ErrStoreFailure = errors.New("tinyvec: metadata store failure")

	// ErrPredicateParse is not returned by any current operation:
	// internal/predicate translates a malformed predicate document to an
	// always-true clause, so SearchWithFilter/DeleteByFilter match every
	// row. No log line is emitted for that fallback.
	ErrPredicateParse = errors.New("tinyvec: predicate parse failure")

	// ErrCorruption is returned when a vector file's header disagrees
	// with its size on disk, or a record cannot be read in full.
	ErrCorruption = errors.New("tinyvec: corrupted vector file")

	// ErrClosed is returned by operations on a connection whose handles
	// have already been released.
	ErrClosed = errors.New("tinyvec: connection closed")

	// ErrDimensionMismatch is returned when a caller's D disagrees with
	// the dimension already recorded in a vector file's header.
	ErrDimensionMismatch = errors.New("tinyvec: dimension mismatch")
)

// StoreError wraps an underlying error with the name of the operation that
// produced it, e.g. "tinyvec: insert: tinyvec: dimension mismatch".
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("tinyvec: %v", e.Err)
	}
	return fmt.Sprintf("tinyvec: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return errors.Is(e.Err, target) }

// wrapError wraps err with operation context. Returns nil if err is nil so
// it can be used unconditionally as `return wrapError("op", err)`.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
