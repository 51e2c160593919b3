// Package mat provides dense row-major float64 matrices and the triangular
// primitives used by the factorization engine.
//
// A Dense is a thin header over a flat []float64; Stride is the number of
// elements between the starts of two consecutive rows, so views into larger
// matrices are cheap. For symmetric inputs only one triangle is semantically
// meaningful and the operations in this package are careful to read and
// write only the triangle they are told to.
package mat

import (
	"math/rand"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Dense represents a dense row-major matrix of float64 values.
//
// Rows and Cols are the matrix dimensions. Stride is the distance in
// elements between consecutive rows (for compact matrices this equals
// Cols). Data holds the flattened values; element (i,j) lives at
// Data[i*Stride+j].
//
// Dense performs no memory safety beyond the checks done by Go's slice
// types; out-of-range indices panic.
type Dense struct {
	Rows, Cols int
	Stride     int
	Data       []float64
}

// NewDense allocates a zero matrix with the given dimensions and a compact
// stride.
func NewDense(r, c int) *Dense {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return &Dense{
		Rows:   r,
		Cols:   c,
		Stride: c,
		Data:   make([]float64, r*c),
	}
}

// NewDenseFromData wraps existing row-major data without copying.
// It checks that the data length matches r*c.
func NewDenseFromData(r, c int, data []float64) *Dense {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return &Dense{
		Rows:   r,
		Cols:   c,
		Stride: c,
		Data:   data,
	}
}

// At returns the element at row i, column j.
func (m *Dense) At(i, j int) float64 {
	if i < 0 || i >= m.Rows || j < 0 || j >= m.Cols {
		panic("index out of range")
	}
	return m.Data[i*m.Stride+j]
}

// Set stores v at row i, column j.
func (m *Dense) Set(i, j int, v float64) {
	if i < 0 || i >= m.Rows || j < 0 || j >= m.Cols {
		panic("index out of range")
	}
	m.Data[i*m.Stride+j] = v
}

// Row returns a view of the i-th row. Modifications to the returned slice
// update the underlying matrix values.
func (m *Dense) Row(i int) []float64 {
	if i < 0 || i >= m.Rows {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.Cols]
}

// Slice returns a view of the sub-matrix covering rows [r0,r1) and columns
// [c0,c1). The view shares storage with m.
func (m *Dense) Slice(r0, r1, c0, c1 int) *Dense {
	if r0 < 0 || r1 < r0 || r1 > m.Rows || c0 < 0 || c1 < c0 || c1 > m.Cols {
		panic("slice bounds out of range")
	}
	return &Dense{
		Rows:   r1 - r0,
		Cols:   c1 - c0,
		Stride: m.Stride,
		Data:   m.Data[r0*m.Stride+c0:],
	}
}

// General returns the gonum blas64 view of m. The view shares storage.
func (m *Dense) General() blas64.General {
	return blas64.General{
		Rows:   m.Rows,
		Cols:   m.Cols,
		Stride: m.Stride,
		Data:   m.Data,
	}
}

// Clone returns a compact deep copy of m.
func (m *Dense) Clone() *Dense {
	out := NewDense(m.Rows, m.Cols)
	for i := range m.Rows {
		copy(out.Row(i), m.Row(i))
	}
	return out
}

// FillRand fills the matrix with reproducible pseudo-random values in a
// small range around zero. The seed controls the sequence; identical seeds
// produce identical matrices.
func FillRand(m *Dense, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Rows {
		row := m.Row(i)
		for j := range row {
			row[j] = (rng.Float64() - 0.5) * 0.02
		}
	}
}

// NewSPD builds a reproducible symmetric positive-definite matrix
// G*G^T + n*I with entries of G drawn from (-1,1). Both triangles are
// populated. Useful for tests and benchmarks.
func NewSPD(n int, seed int64) *Dense {
	if n < 0 {
		panic("negative dimension for matrix")
	}
	rng := rand.New(rand.NewSource(seed))
	g := NewDense(n, n)
	for i := range g.Data {
		g.Data[i] = 2*rng.Float64() - 1
	}
	a := NewDense(n, n)
	if n > 0 {
		blas64.Syrk(blas.NoTrans, 1, g.General(), 0, blas64.Symmetric{
			N:      n,
			Stride: a.Stride,
			Data:   a.Data,
			Uplo:   blas.Lower,
		})
	}
	for i := range n {
		a.Data[i*a.Stride+i] += float64(n)
	}
	CopyTriang(a, Lower)
	return a
}
