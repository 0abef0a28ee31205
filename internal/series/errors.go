package series

import (
	"errors"
	"fmt"
)

var (
	// ErrPreconditionFailed is returned when an operation is invoked without
	// a loaded master task. Nothing is written.
	ErrPreconditionFailed = errors.New("series: master task not loaded")

	// ErrInvalidOperation is returned for requests the resolver refuses to
	// carry out, such as truncating a series whose rule cannot be parsed.
	ErrInvalidOperation = errors.New("series: invalid operation")

	// ErrInvalidOccurrenceDate marks a date the rule does not generate. It is
	// reported as a warning and never blocks the operation.
	ErrInvalidOccurrenceDate = errors.New("series: date is not generated by the rule")

	// ErrStorageFailure is returned when a write in a multi-step sequence
	// fails. Earlier writes of the same sequence are not rolled back.
	ErrStorageFailure = errors.New("series: storage failure")

	// ErrModeRequired is returned when an edit targets one occurrence of a
	// recurring series without saying which occurrences it applies to.
	ErrModeRequired = errors.New("series: edit mode required for a recurring occurrence")
)

// StorageError reports which step of a write sequence failed. It matches
// both ErrStorageFailure and the underlying cause with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("series: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func invalidOp(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidOperation}, args...)...)
}
