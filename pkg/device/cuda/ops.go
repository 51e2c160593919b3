//go:build cuda

package cuda

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/ashlar/internal/cu"
	"github.com/samcharles93/ashlar/pkg/device"
)

// CopyIn stages a rows-by-cols host region into dst through one pitched
// transfer, asynchronously on s.
func (c *Context) CopyIn(dst device.Buffer, dstLD int, src []float64, srcLD, rows, cols int, s device.Stream) error {
	db, err := c.own(dst)
	if err != nil {
		return err
	}
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("copy src", len(src), srcLD, rows, cols); err != nil {
		return err
	}
	if err := checkRegion("copy dst", db.elems, dstLD, rows, cols); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	if err := c.set(); err != nil {
		return err
	}
	return cu.Memcpy2DH2DAsync(
		db.buf, int64(dstLD)*elemSize,
		unsafe.Pointer(&src[0]), int64(srcLD)*elemSize,
		int64(cols)*elemSize, int64(rows), cs.s)
}

// CopyOut writes a rows-by-cols device region back to host memory,
// asynchronously on s.
func (c *Context) CopyOut(dst []float64, dstLD int, src device.Buffer, srcLD, rows, cols int, s device.Stream) error {
	sb, err := c.own(src)
	if err != nil {
		return err
	}
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("copy src", sb.elems, srcLD, rows, cols); err != nil {
		return err
	}
	if err := checkRegion("copy dst", len(dst), dstLD, rows, cols); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	if err := c.set(); err != nil {
		return err
	}
	return cu.Memcpy2DD2HAsync(
		unsafe.Pointer(&dst[0]), int64(dstLD)*elemSize,
		sb.buf, int64(srcLD)*elemSize,
		int64(cols)*elemSize, int64(rows), cs.s)
}

// Potrf factors the lower triangle of the n-by-n block in a. On the
// column-major view this is an upper factorization. It drains s before
// returning so the devInfo status can be read.
func (c *Context) Potrf(n int, a device.Buffer, lda int, s device.Stream) error {
	ab, err := c.own(a)
	if err != nil {
		return err
	}
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("potrf a", ab.elems, lda, n, n); err != nil {
		return err
	}
	if n == 0 {
		return cs.Sync()
	}
	if err := c.set(); err != nil {
		return err
	}

	lwork, err := cu.DpotrfBufferSize(cs.solver, cu.FillUpper, n, ab.buf, lda)
	if err != nil {
		return err
	}
	work, err := cu.AllocDevice(int64(max(lwork, 1)) * elemSize)
	if err != nil {
		free, _, infoErr := cu.MemGetInfo()
		if infoErr != nil {
			return err
		}
		return &device.ExhaustedError{
			Device:    c.id,
			Requested: uint64(max(lwork, 1)) * elemSize,
			Free:      free,
		}
	}
	defer func() { _ = work.Free() }()

	if err := cu.Dpotrf(cs.solver, cu.FillUpper, n, ab.buf, lda, work, lwork, cs.devInfo); err != nil {
		return err
	}
	if err := cs.s.Synchronize(); err != nil {
		return err
	}

	var info int32
	if err := cu.MemcpyD2H(unsafe.Pointer(&info), cs.devInfo, 4); err != nil {
		return err
	}
	if info > 0 {
		return &device.NotPDError{Minor: int(info)}
	}
	if info < 0 {
		return fmt.Errorf("cusolver dpotrf: argument %d is invalid", -info)
	}
	return nil
}

// Trsm solves B = B * L^-T in place for the m-by-n panel b against the
// n-by-n lower block l, asynchronously on s. On the column-major view the
// solve runs from the left against the transposed upper factor.
func (c *Context) Trsm(m, n int, l device.Buffer, ldl int, b device.Buffer, ldb int, s device.Stream) error {
	lb, err := c.own(l)
	if err != nil {
		return err
	}
	bb, err := c.own(b)
	if err != nil {
		return err
	}
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("trsm l", lb.elems, ldl, n, n); err != nil {
		return err
	}
	if err := checkRegion("trsm b", bb.elems, ldb, m, n); err != nil {
		return err
	}
	if m == 0 || n == 0 {
		return nil
	}
	if err := c.set(); err != nil {
		return err
	}
	return cu.Dtrsm(cs.blas, cu.SideLeft, cu.FillUpper, cu.OpT, cu.DiagNonUnit,
		n, m, 1, lb.buf, ldl, bb.buf, ldb)
}

// Syrk applies C = C - A*A^T to the lower triangle of the n-by-n block
// c2, asynchronously on s.
func (c *Context) Syrk(n, k int, a device.Buffer, lda int, c2 device.Buffer, ldc int, s device.Stream) error {
	ab, err := c.own(a)
	if err != nil {
		return err
	}
	cb, err := c.own(c2)
	if err != nil {
		return err
	}
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("syrk a", ab.elems, lda, n, k); err != nil {
		return err
	}
	if err := checkRegion("syrk c", cb.elems, ldc, n, n); err != nil {
		return err
	}
	if n == 0 || k == 0 {
		return nil
	}
	if err := c.set(); err != nil {
		return err
	}
	return cu.Dsyrk(cs.blas, cu.FillUpper, cu.OpT, n, k, -1, ab.buf, lda, 1, cb.buf, ldc)
}

// Gemm applies C = C - A*B^T with a m-by-k, b n-by-k, and c2 m-by-n,
// asynchronously on s. Operand order swaps on the column-major view.
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
	cs, err := c.ownStream(s)
	if err != nil {
		return err
	}
	if err := checkRegion("gemm a", ab.elems, lda, m, k); err != nil {
		return err
	}
	if err := checkRegion("gemm b", bb.elems, ldb, n, k); err != nil {
		return err
	}
	if err := checkRegion("gemm c", cb.elems, ldc, m, n); err != nil {
		return err
	}
	if m == 0 || n == 0 || k == 0 {
		return nil
	}
	if err := c.set(); err != nil {
		return err
	}
	return cu.Dgemm(cs.blas, cu.OpT, cu.OpN, n, m, k, -1, bb.buf, ldb, ab.buf, lda, 1, cb.buf, ldc)
}

// checkRegion validates that a rows-by-cols region with leading dimension
// ld fits inside a buffer of length n elements.
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
