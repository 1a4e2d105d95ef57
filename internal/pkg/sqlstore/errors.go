package sqlstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRows is returned by Get when the query matched nothing.
	ErrNoRows = errors.New("no rows in result set")

	// ErrConflict is returned when a statement violates a unique constraint.
	ErrConflict = errors.New("unique constraint violated")
)

// StorageError is an engine failure that is not a business outcome.
type StorageError struct {
	Engine Engine
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type conflictError struct {
	engine Engine
	err    error
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("%s: %v", ErrConflict, e.err)
}

func (e *conflictError) Is(target error) bool { return target == ErrConflict }

func (e *conflictError) Unwrap() error { return e.err }

// IsStorageFailure reports whether err came from the engine rather than
// from a uniqueness conflict or a missing row.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
