package mat

// Triangle selects one half of a square matrix.
type Triangle int

const (
	Lower Triangle = iota
	Upper
)

func (t Triangle) String() string {
	switch t {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	}
	return "unknown"
}

// Side selects the broadcast direction for VecMulTriang.
type Side int

const (
	SideRow Side = iota
	SideCol
)

// CopyTriang mirrors the populated triangle of a square matrix onto the
// other, producing a symmetric matrix. The diagonal is untouched and the
// operation is idempotent.
func CopyTriang(a *Dense, from Triangle) {
	n := square(a)
	switch from {
	case Lower:
		for i := 1; i < n; i++ {
			row := a.Row(i)
			for j := range i {
				a.Data[j*a.Stride+i] = row[j]
			}
		}
	case Upper:
		for i := 1; i < n; i++ {
			row := a.Row(i)
			for j := range i {
				row[j] = a.Data[j*a.Stride+i]
			}
		}
	}
}

// MulTriang scales the named triangle of a square matrix by alpha. The
// diagonal is part of the triangle unless preserveDiag is set. An alpha of
// zero clears the triangle.
func MulTriang(a *Dense, t Triangle, preserveDiag bool, alpha float64) {
	n := square(a)
	for i := range n {
		row := a.Row(i)
		lo, hi := 0, i+1
		if t == Upper {
			lo, hi = i, n
		}
		for j := lo; j < hi; j++ {
			if preserveDiag && j == i {
				continue
			}
			row[j] *= alpha
		}
	}
}

// VecMulTriang scales the named triangle of a square matrix elementwise by
// v, broadcast along rows (entry (i,j) scaled by v[i]) or columns (scaled
// by v[j]). The diagonal is always included. len(v) must equal the matrix
// order.
func VecMulTriang(a *Dense, v []float64, t Triangle, side Side) {
	n := square(a)
	if len(v) != n {
		panic("vector length mismatch")
	}
	for i := range n {
		row := a.Row(i)
		lo, hi := 0, i+1
		if t == Upper {
			lo, hi = i, n
		}
		for j := lo; j < hi; j++ {
			if side == SideRow {
				row[j] *= v[i]
			} else {
				row[j] *= v[j]
			}
		}
	}
}

// CopyTranspose writes the transpose of src into dst. The two matrices must
// not share storage and dst must have the transposed shape.
func CopyTranspose(dst, src *Dense) {
	if dst.Rows != src.Cols || dst.Cols != src.Rows {
		panic("transpose shape mismatch")
	}
	for i := range src.Rows {
		row := src.Row(i)
		for j, v := range row {
			dst.Data[j*dst.Stride+i] = v
		}
	}
}

func square(a *Dense) int {
	if a.Rows != a.Cols {
		panic("matrix is not square")
	}
	return a.Rows
}
