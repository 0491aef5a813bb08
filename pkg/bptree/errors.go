package bptree

import "github.com/pkg/errors"

// Sentinel errors returned by the public API. Callers should compare
// with errors.Is.
var (
	// ErrNotFound is returned by Find and Delete when the key is absent.
	ErrNotFound = errors.New("bptree: key not found")

	// ErrDuplicateKey is returned by Insert when the key already exists.
	ErrDuplicateKey = errors.New("bptree: duplicate key")

	// ErrCorruption is returned by Insert and Delete when
	// Options.VerifyAfterMutate is set and Verify reports a problem, and
	// by any operation that notices an on-disk structural invariant has
	// been violated. Verify itself reports problems in its Report.
	ErrCorruption = errors.New("bptree: structural invariant violated")
)

// IOError wraps a failure from the underlying page layer (a short read,
// a disk full on write, a stat failure) so callers can tell "the file
// misbehaved" apart from ErrCorruption's "the file is internally
// inconsistent". Use errors.As to recover it.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "bptree: io error during " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}
