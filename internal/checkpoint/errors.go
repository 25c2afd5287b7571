package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrIO     = errors.New("checkpoint io")
	ErrFormat = errors.New("checkpoint format")
)

// IOError reports a checkpoint that could not be read or written.
type IOError struct {
	Op   string // "read", "write"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIO) succeed.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// FormatError reports a checkpoint document that is not valid JSON or whose
// network violates its shape invariants.
type FormatError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("invalid checkpoint: %s: %v", e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("invalid checkpoint: %v", e.Err)
	default:
		return "invalid checkpoint: " + e.Reason
	}
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) succeed.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }
