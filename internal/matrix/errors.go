package matrix

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is matched by every DimensionError.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ErrInvalidMatrix is matched by every FormatError.
var ErrInvalidMatrix = errors.New("invalid matrix")

// DimensionError reports a shape contract violation with both operand shapes.
type DimensionError struct {
	Op                   string
	LeftRows, LeftCols   int
	RightRows, RightCols int
}

func newDimensionError(op string, left, right *Matrix) *DimensionError {
	return &DimensionError{
		Op:        op,
		LeftRows:  left.rows,
		LeftCols:  left.cols,
		RightRows: right.rows,
		RightCols: right.cols,
	}
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: %dx%d vs %dx%d",
		e.Op, e.LeftRows, e.LeftCols, e.RightRows, e.RightCols)
}

// Is makes errors.Is(err, ErrDimensionMismatch) succeed.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// FormatError reports a matrix whose data does not fit its declared shape.
type FormatError struct {
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return "invalid matrix: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidMatrix) succeed.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidMatrix
}
