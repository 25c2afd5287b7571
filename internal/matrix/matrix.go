// Package matrix provides a dense row-major matrix with value semantics.
//
// Every operation returns a new Matrix; a Matrix is never modified after
// construction, so sharing one between networks is safe.
package matrix

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Init range for Random and RandomSeeded.
const (
	InitMin = -1.0
	InitMax = 1.0
)

// Matrix is a dense 2-D float64 buffer stored row-major.
// Invariant: len(data) == rows*cols.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// New creates a matrix from row-major data. The slice is copied.
func New(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("negative shape %dx%d", rows, cols)}
	}
	if cols != 0 && rows > math.MaxInt/cols {
		return nil, &FormatError{Reason: fmt.Sprintf("shape %dx%d overflows", rows, cols)}
	}
	if len(data) != rows*cols {
		return nil, &FormatError{Reason: fmt.Sprintf("data length %d does not match shape %dx%d", len(data), rows, cols)}
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Matrix{rows: rows, cols: cols, data: buf}, nil
}

// Zeros creates a rows x cols matrix filled with zeros.
func Zeros(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromSlice builds a column matrix [len(v) x 1].
// This is the representation of a single input or target sample.
func FromSlice(v []float64) *Matrix {
	m := Zeros(len(v), 1)
	copy(m.data, v)
	return m
}

// Random returns a matrix with elements drawn uniformly from [InitMin, InitMax]
// using a time-seeded source.
func Random(rows, cols int) *Matrix {
	return RandomSeeded(rows, cols, rand.NewSource(uint64(time.Now().UnixNano())))
}

// RandomSeeded is Random drawing from src. The PCG source produces the same
// sequence on every platform, so equal seeds give bit-identical matrices.
func RandomSeeded(rows, cols int, src rand.Source) *Matrix {
	dist := distuv.Uniform{Min: InitMin, Max: InitMax, Src: src}
	m := Zeros(rows, cols)
	for i := range m.data {
		m.data[i] = dist.Rand()
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Shape returns (rows, cols).
func (m *Matrix) Shape() (int, int) { return m.rows, m.cols }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range for %dx%d", i, j, m.rows, m.cols))
	}
	return m.data[i*m.cols+j]
}

// Data returns a copy of the row-major backing data.
func (m *Matrix) Data() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Len returns rows*cols.
func (m *Matrix) Len() int { return len(m.data) }

// dense wraps the backing slice as a gonum matrix without copying.
// Callers must not write through it.
func (m *Matrix) dense() *mat.Dense {
	return mat.NewDense(m.rows, m.cols, m.data)
}

func (m *Matrix) empty() bool { return m.rows == 0 || m.cols == 0 }

// Dot returns the matrix product m·o, shape [m.rows x o.cols].
func (m *Matrix) Dot(o *Matrix) (*Matrix, error) {
	if m.cols != o.rows {
		return nil, newDimensionError("dot", m, o)
	}
	out := Zeros(m.rows, o.cols)
	if m.empty() || o.empty() {
		return out, nil
	}
	out.dense().Mul(m.dense(), o.dense())
	return out, nil
}

// Add returns m + o element-wise.
func (m *Matrix) Add(o *Matrix) (*Matrix, error) {
	if !m.SameShape(o) {
		return nil, newDimensionError("add", m, o)
	}
	out := Zeros(m.rows, m.cols)
	floats.AddTo(out.data, m.data, o.data)
	return out, nil
}

// Subtract returns m - o element-wise.
func (m *Matrix) Subtract(o *Matrix) (*Matrix, error) {
	if !m.SameShape(o) {
		return nil, newDimensionError("subtract", m, o)
	}
	out := Zeros(m.rows, m.cols)
	floats.SubTo(out.data, m.data, o.data)
	return out, nil
}

// MulElem returns the Hadamard product of m and o.
func (m *Matrix) MulElem(o *Matrix) (*Matrix, error) {
	if !m.SameShape(o) {
		return nil, newDimensionError("elementwise_multiply", m, o)
	}
	out := Zeros(m.rows, m.cols)
	floats.MulTo(out.data, m.data, o.data)
	return out, nil
}

// Transpose returns the [cols x rows] transpose.
func (m *Matrix) Transpose() *Matrix {
	out := Zeros(m.cols, m.rows)
	if m.empty() {
		return out
	}
	out.dense().Copy(m.dense().T())
	return out
}

// Map applies f to every element.
func (m *Matrix) Map(f func(float64) float64) *Matrix {
	out := Zeros(m.rows, m.cols)
	for i, v := range m.data {
		out.data[i] = f(v)
	}
	return out
}

// Scale returns s*m.
func (m *Matrix) Scale(s float64) *Matrix {
	out := m.Clone()
	floats.Scale(s, out.data)
	return out
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := Zeros(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// SameShape reports whether m and o have identical dimensions.
func (m *Matrix) SameShape(o *Matrix) bool {
	return m.rows == o.rows && m.cols == o.cols
}

// Equal reports whether m and o have the same shape and bit-identical
// elements.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !m.SameShape(o) {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// String renders the matrix one row per line.
func (m *Matrix) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matrix %dx%d\n", m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		sb.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%.4f", m.data[i*m.cols+j])
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

type matrixJSON struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// MarshalJSON encodes the matrix as {"rows","cols","data"}.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	data := m.data
	if data == nil {
		data = []float64{}
	}
	return json.Marshal(matrixJSON{Rows: m.rows, Cols: m.cols, Data: data})
}

// UnmarshalJSON decodes and validates len(data) == rows*cols.
func (m *Matrix) UnmarshalJSON(b []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded, err := New(raw.Rows, raw.Cols, raw.Data)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
