package mat

import (
	"math"
	"testing"
)

func maxAbsDiff(a, b []float64) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func TestFillRandDeterministic(t *testing.T) {
	a := NewDense(8, 8)
	b := NewDense(8, 8)
	FillRand(a, 7)
	FillRand(b, 7)
	if maxAbsDiff(a.Data, b.Data) != 0 {
		t.Fatal("same seed produced different matrices")
	}
	FillRand(b, 8)
	if maxAbsDiff(a.Data, b.Data) == 0 {
		t.Fatal("different seeds produced identical matrices")
	}
}

func TestSliceSharesStorage(t *testing.T) {
	a := NewDense(6, 6)
	v := a.Slice(2, 5, 1, 4)
	if v.Rows != 3 || v.Cols != 3 || v.Stride != a.Stride {
		t.Fatalf("unexpected view shape %dx%d stride %d", v.Rows, v.Cols, v.Stride)
	}
	v.Set(0, 0, 42)
	if a.At(2, 1) != 42 {
		t.Fatal("view write did not reach the parent")
	}
}

func TestNewSPDSymmetric(t *testing.T) {
	a := NewSPD(17, 3)
	for i := range 17 {
		for j := range 17 {
			if a.At(i, j) != a.At(j, i) {
				t.Fatalf("asymmetric at (%d,%d): %g vs %g", i, j, a.At(i, j), a.At(j, i))
			}
		}
	}
	// Diagonal dominance from the n*I shift keeps the matrix comfortably
	// positive definite.
	for i := range 17 {
		if a.At(i, i) <= 0 {
			t.Fatalf("non-positive diagonal at %d: %g", i, a.At(i, i))
		}
	}
}

func TestCloneIsCompact(t *testing.T) {
	a := NewDense(4, 8)
	FillRand(a, 1)
	v := a.Slice(1, 4, 2, 7)
	c := v.Clone()
	if c.Stride != c.Cols {
		t.Fatalf("clone stride %d, want %d", c.Stride, c.Cols)
	}
	for i := range v.Rows {
		if maxAbsDiff(c.Row(i), v.Row(i)) != 0 {
			t.Fatalf("row %d differs", i)
		}
	}
	c.Set(0, 0, 99)
	if v.At(0, 0) == 99 {
		t.Fatal("clone shares storage with source")
	}
}
