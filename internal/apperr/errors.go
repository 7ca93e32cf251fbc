// Package apperr defines the error taxonomy shared across the engine.
//
// Data-quality failures (fetch, parse) are accumulated during a load and
// reported in aggregate. Protocol failures (truncated tree) abort the
// operation that hit them. Invariant failures indicate a defect in the
// reconciliation logic itself and are never silently swallowed.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrTruncatedTree means the remote reported an incomplete recursive
	// tree listing. Merging against a partial tree would delete files, so
	// any commit attempt must fail closed on this error.
	ErrTruncatedTree = errors.New("remote tree listing truncated")
)

// FetchError records a failed remote content read. The affected path is
// excluded from entry derivation; it is never treated as deleted or empty.
type FetchError struct {
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError records malformed sidecar or registry content. The engine
// recovers by synthesizing fresh metadata and staging a corrective write.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvariantError marks a violated internal invariant, e.g. a just-reconciled
// entry that cannot be located in the result. These are defects to fix, not
// data conditions to handle; callers surface them distinctly.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Invariant returns a new InvariantError with a formatted message.
func Invariant(format string, args ...any) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
