package engine

import (
	"errors"
	"fmt"
)

// PersistenceError reports a failed write of an artifact or a checkpoint
// of the record. It is fatal to the build: continuing could leave the
// record describing artifacts that are not on disk.
type PersistenceError struct {
	// Op names the failed operation ("write artifact", "checkpoint", ...).
	Op string

	// Path is the affected file, when known.
	Path string

	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError returns true if the error is a PersistenceError.
// Uses errors.As to handle wrapped errors.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
