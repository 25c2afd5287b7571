package net

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidArchitecture = errors.New("invalid architecture")
	ErrInvalidNetwork      = errors.New("invalid network")
	ErrNoForwardPass       = errors.New("back_propagate called without a preceding feed_forward")
)

// ArchitectureError reports a layer list that cannot describe a network.
type ArchitectureError struct {
	Layers []int
	Reason string
}

// Error implements the error interface.
func (e *ArchitectureError) Error() string {
	return fmt.Sprintf("invalid architecture %v: %s", e.Layers, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidArchitecture) succeed.
func (e *ArchitectureError) Is(target error) bool {
	return target == ErrInvalidArchitecture
}

// FormatError reports serialized network state that violates the shape
// invariants.
type FormatError struct {
	Field  string // e.g. "weights[1]"
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := "invalid network"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidNetwork) succeed.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidNetwork
}
