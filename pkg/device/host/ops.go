package host

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"

	"github.com/samcharles93/ashlar/pkg/device"
)

// CopyIn copies a rows-by-cols host region into dst, asynchronously on s.
func (c *Context) CopyIn(dst device.Buffer, dstLD int, src []float64, srcLD, rows, cols int, s device.Stream) error {
	hb, err := c.own(dst)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("copy src", len(src), srcLD, rows, cols); err != nil {
		return err
	}
	if err := checkRegion("copy dst", len(hb.data), dstLD, rows, cols); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	return hs.enqueue(streamOp{run: func() error {
		copy2D(hb.data, dstLD, src, srcLD, rows, cols)
		return nil
	}})
}

// CopyOut copies a rows-by-cols device region into host memory,
// asynchronously on s.
func (c *Context) CopyOut(dst []float64, dstLD int, src device.Buffer, srcLD, rows, cols int, s device.Stream) error {
	hb, err := c.own(src)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("copy src", len(hb.data), srcLD, rows, cols); err != nil {
		return err
	}
	if err := checkRegion("copy dst", len(dst), dstLD, rows, cols); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	return hs.enqueue(streamOp{run: func() error {
		copy2D(dst, dstLD, hb.data, srcLD, rows, cols)
		return nil
	}})
}

// Potrf factors the lower triangle of the n-by-n block in a. It drains s
// before returning so a numerical failure is observed before dependent
// work is issued.
func (c *Context) Potrf(n int, a device.Buffer, lda int, s device.Stream) error {
	hb, err := c.own(a)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("potrf a", len(hb.data), lda, n, n); err != nil {
		return err
	}
	if n == 0 {
		return hs.Sync()
	}
	if err := hs.enqueue(streamOp{run: func() error {
		_, ok := lapack64.Potrf(blas64.Symmetric{
			Uplo:   blas.Lower,
			N:      n,
			Stride: lda,
			Data:   hb.data,
		})
		if !ok {
			return &device.NotPDError{}
		}
		return nil
	}}); err != nil {
		return err
	}
	return hs.Sync()
}

// Trsm solves B = B * L^-T in place for the m-by-n panel b against the
// n-by-n lower-triangular block l, asynchronously on s.
func (c *Context) Trsm(m, n int, l device.Buffer, ldl int, b device.Buffer, ldb int, s device.Stream) error {
	lb, err := c.own(l)
	if err != nil {
		return err
	}
	bb, err := c.own(b)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("trsm l", len(lb.data), ldl, n, n); err != nil {
		return err
	}
	if err := checkRegion("trsm b", len(bb.data), ldb, m, n); err != nil {
		return err
	}
	if m == 0 || n == 0 {
		return nil
	}
	return hs.enqueue(streamOp{run: func() error {
		blas64.Trsm(blas.Right, blas.Trans, 1, blas64.Triangular{
			Uplo:   blas.Lower,
			Diag:   blas.NonUnit,
			N:      n,
			Stride: ldl,
			Data:   lb.data,
		}, blas64.General{
			Rows:   m,
			Cols:   n,
			Stride: ldb,
			Data:   bb.data,
		})
		return nil
	}})
}

// Syrk applies C = C - A*A^T to the lower triangle of the n-by-n block c2,
// with a an n-by-k panel, asynchronously on s.
func (c *Context) Syrk(n, k int, a device.Buffer, lda int, c2 device.Buffer, ldc int, s device.Stream) error {
	ab, err := c.own(a)
	if err != nil {
		return err
	}
	cb, err := c.own(c2)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("syrk a", len(ab.data), lda, n, k); err != nil {
		return err
	}
	if err := checkRegion("syrk c", len(cb.data), ldc, n, n); err != nil {
		return err
	}
	if n == 0 || k == 0 {
		return nil
	}
	return hs.enqueue(streamOp{run: func() error {
		blas64.Syrk(blas.NoTrans, -1, blas64.General{
			Rows:   n,
			Cols:   k,
			Stride: lda,
			Data:   ab.data,
		}, 1, blas64.Symmetric{
			Uplo:   blas.Lower,
			N:      n,
			Stride: ldc,
			Data:   cb.data,
		})
		return nil
	}})
}

// Gemm applies C = C - A*B^T with a m-by-k, b n-by-k, and c2 m-by-n,
// asynchronously on s.
func (c *Context) Gemm(m, n, k int, a device.Buffer, lda int, b device.Buffer, ldb int, c2 device.Buffer, ldc int, s device.Stream) error {
	ab, err := c.own(a)
	if err != nil {
		return err
	}
	bb, err := c.own(b)
	if err != nil {
		return err
	}
	cb, err := c.own(c2)
	if err != nil {
		return err
	}
	hs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("gemm a", len(ab.data), lda, m, k); err != nil {
		return err
	}
	if err := checkRegion("gemm b", len(bb.data), ldb, n, k); err != nil {
		return err
	}
	if err := checkRegion("gemm c", len(cb.data), ldc, m, n); err != nil {
		return err
	}
	if m == 0 || n == 0 || k == 0 {
		return nil
	}
	return hs.enqueue(streamOp{run: func() error {
		blas64.Gemm(blas.NoTrans, blas.Trans, -1, blas64.General{
			Rows:   m,
			Cols:   k,
			Stride: lda,
			Data:   ab.data,
		}, blas64.General{
			Rows:   n,
			Cols:   k,
			Stride: ldb,
			Data:   bb.data,
		}, 1, blas64.General{
			Rows:   m,
			Cols:   n,
			Stride: ldc,
			Data:   cb.data,
		})
		return nil
	}})
}

func copy2D(dst []float64, dstLD int, src []float64, srcLD, rows, cols int) {
	for r := range rows {
		copy(dst[r*dstLD:r*dstLD+cols], src[r*srcLD:r*srcLD+cols])
	}
}

// checkRegion validates that a rows-by-cols region with leading dimension
// ld fits inside a slice of length n.
func checkRegion(name string, n, ld, rows, cols int) error {
	if rows < 0 || cols < 0 {
		return fmt.Errorf("%s: negative dimensions %dx%d", name, rows, cols)
	}
	if ld < max(1, cols) {
		return fmt.Errorf("%s: leading dimension %d < %d", name, ld, cols)
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	if need := (rows-1)*ld + cols; need > n {
		return fmt.Errorf("%s: region %dx%d (ld %d) needs %d elements, have %d",
			name, rows, cols, ld, need, n)
	}
	return nil
}
