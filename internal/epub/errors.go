package epub

import (
	"errors"
	"fmt"
)

// ErrFileNotFound indicates a referenced archive entry does not exist.
// Callers use it to distinguish a missing entry from a read failure.
var ErrFileNotFound = errors.New("epub: file not found in archive")

// StructuralError indicates the container violates the EPUB structure in a
// way that makes reading-order extraction impossible: a missing container
// descriptor, an unresolvable package document, or malformed required XML.
// Per-entry content problems are never structural.
type StructuralError struct {
	Stage  string // "container" or "package"
	Path   string // archive path of the offending document
	Reason string
	Err    error // underlying cause, may be nil
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("epub: %s: %s (%s): %v", e.Stage, e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("epub: %s: %s (%s)", e.Stage, e.Reason, e.Path)
}

func (e *StructuralError) Unwrap() error { return e.Err }

func structuralErr(stage, path, reason string, err error) error {
	return &StructuralError{Stage: stage, Path: path, Reason: reason, Err: err}
}
