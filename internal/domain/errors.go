package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// visitor does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is matched by every *ValidationError.
// Handlers should map this to HTTP 400 Bad Request.
var ErrValidation = errors.New("validation error")

// ErrPersistence marks a failed store transaction. The in-flight mutation has
// been rolled back. Handlers should map this to HTTP 500.
var ErrPersistence = errors.New("persistence error")

// ErrMirrorWrite is matched by every *MirrorWriteError.
var ErrMirrorWrite = errors.New("mirror write error")

// ValidationError names the first required field that was missing or blank.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MirrorWriteError reports that the spreadsheet artifact could not be
// written, typically because another program holds it open.
// It never implies that a store mutation was rolled back: the database is the
// source of truth and the mirror catches up on the next successful rebuild.
type MirrorWriteError struct {
	Path string
	Err  error
}

func (e *MirrorWriteError) Error() string {
	return fmt.Sprintf("write export %s: %v", e.Path, e.Err)
}

func (e *MirrorWriteError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMirrorWrite) match any MirrorWriteError.
func (e *MirrorWriteError) Is(target error) bool {
	return target == ErrMirrorWrite
}
