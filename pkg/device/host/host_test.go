package host

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/samcharles93/ashlar/pkg/device"
)

func newTestCtx(t *testing.T, capacity uint64) (*Context, device.Stream) {
	t.Helper()
	ctx := New(0, capacity)
	t.Cleanup(func() { _ = ctx.Close() })
	s, err := ctx.NewStream()
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	return ctx, s
}

func upload(t *testing.T, ctx *Context, s device.Stream, data []float64, rows, cols int) device.Buffer {
	t.Helper()
	buf, err := ctx.Alloc(rows * cols)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := ctx.CopyIn(buf, cols, data, cols, rows, cols, s); err != nil {
		t.Fatalf("copy in: %v", err)
	}
	return buf
}

func download(t *testing.T, ctx *Context, s device.Stream, buf device.Buffer, rows, cols int) []float64 {
	t.Helper()
	out := make([]float64, rows*cols)
	if err := ctx.CopyOut(out, cols, buf, cols, rows, cols, s); err != nil {
		t.Fatalf("copy out: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return out
}

func randSlice(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 2*rng.Float64() - 1
	}
	return out
}

// spdSlice builds a row-major SPD matrix G*G^T + n*I.
func spdSlice(n int, seed int64) []float64 {
	g := randSlice(n*n, seed)
	a := make([]float64, n*n)
	for i := range n {
		for j := range n {
			var s float64
			for t := range n {
				s += g[i*n+t] * g[j*n+t]
			}
			a[i*n+j] = s
		}
		a[i*n+i] += float64(n)
	}
	return a
}

// cholNaive factors the lower triangle in place, returning false on a
// non-positive pivot.
func cholNaive(n int, a []float64) bool {
	for j := range n {
		d := a[j*n+j]
		for t := range j {
			d -= a[j*n+t] * a[j*n+t]
		}
		if d <= 0 {
			return false
		}
		d = math.Sqrt(d)
		a[j*n+j] = d
		for i := j + 1; i < n; i++ {
			s := a[i*n+j]
			for t := range j {
				s -= a[i*n+t] * a[j*n+t]
			}
			a[i*n+j] = s / d
		}
	}
	return true
}

func maxAbsDiffLower(n int, a, b []float64) float64 {
	var m float64
	for i := range n {
		for j := 0; j <= i; j++ {
			d := math.Abs(a[i*n+j] - b[i*n+j])
			if d > m {
				m = d
			}
		}
	}
	return m
}

func TestCopyRoundTripStrided(t *testing.T) {
	ctx, s := newTestCtx(t, 1<<20)
	const rows, cols, hostLD, devLD = 4, 3, 7, 5

	src := randSlice(rows*hostLD, 1)
	buf, err := ctx.Alloc(rows * devLD)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := ctx.CopyIn(buf, devLD, src, hostLD, rows, cols, s); err != nil {
		t.Fatalf("copy in: %v", err)
	}
	dst := make([]float64, rows*hostLD)
	if err := ctx.CopyOut(dst, hostLD, buf, devLD, rows, cols, s); err != nil {
		t.Fatalf("copy out: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for r := range rows {
		for c := range cols {
			if dst[r*hostLD+c] != src[r*hostLD+c] {
				t.Fatalf("entry (%d,%d) lost in round trip", r, c)
			}
		}
		// Cells beyond cols must stay zero.
		for c := cols; c < hostLD; c++ {
			if dst[r*hostLD+c] != 0 {
				t.Fatalf("entry (%d,%d) outside region written", r, c)
			}
		}
	}
}

func TestPotrfMatchesNaive(t *testing.T) {
	const n = 8
	ctx, s := newTestCtx(t, 1<<20)

	a := spdSlice(n, 2)
	want := append([]float64(nil), a...)
	if !cholNaive(n, want) {
		t.Fatal("reference factorization failed")
	}

	buf := upload(t, ctx, s, a, n, n)
	if err := ctx.Potrf(n, buf, n, s); err != nil {
		t.Fatalf("potrf: %v", err)
	}
	got := download(t, ctx, s, buf, n, n)
	if d := maxAbsDiffLower(n, got, want); d > 1e-10 {
		t.Fatalf("max abs diff %g", d)
	}
}

func TestPotrfNotPositiveDefinite(t *testing.T) {
	const n = 4
	ctx, s := newTestCtx(t, 1<<20)

	a := spdSlice(n, 3)
	a[2*n+2] = -5

	buf := upload(t, ctx, s, a, n, n)
	err := ctx.Potrf(n, buf, n, s)
	var npd *device.NotPDError
	if !errors.As(err, &npd) {
		t.Fatalf("want NotPDError, got %v", err)
	}
}

func TestTrsmMatchesNaive(t *testing.T) {
	const n, m = 5, 7
	ctx, s := newTestCtx(t, 1<<20)

	l := spdSlice(n, 4)
	if !cholNaive(n, l) {
		t.Fatal("factorization failed")
	}
	b := randSlice(m*n, 5)

	// Solve x * L^T = b row by row: forward substitution in j.
	want := make([]float64, m*n)
	for i := range m {
		for j := range n {
			acc := b[i*n+j]
			for p := range j {
				acc -= want[i*n+p] * l[j*n+p]
			}
			want[i*n+j] = acc / l[j*n+j]
		}
	}

	lb := upload(t, ctx, s, l, n, n)
	bb := upload(t, ctx, s, b, m, n)
	if err := ctx.Trsm(m, n, lb, n, bb, n, s); err != nil {
		t.Fatalf("trsm: %v", err)
	}
	got := download(t, ctx, s, bb, m, n)
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-10 {
			t.Fatalf("entry %d: got %g want %g", i, got[i], want[i])
		}
	}
}

func TestSyrkUpdatesLowerOnly(t *testing.T) {
	const n, k = 5, 3
	ctx, s := newTestCtx(t, 1<<20)

	a := randSlice(n*k, 6)
	c := randSlice(n*n, 7)
	want := append([]float64(nil), c...)
	for i := range n {
		for j := 0; j <= i; j++ {
			for p := range k {
				want[i*n+j] -= a[i*k+p] * a[j*k+p]
			}
		}
	}

	ab := upload(t, ctx, s, a, n, k)
	cb := upload(t, ctx, s, c, n, n)
	if err := ctx.Syrk(n, k, ab, k, cb, n, s); err != nil {
		t.Fatalf("syrk: %v", err)
	}
	got := download(t, ctx, s, cb, n, n)
	for i := range n {
		for j := range n {
			if j > i {
				if got[i*n+j] != c[i*n+j] {
					t.Fatalf("upper entry (%d,%d) changed", i, j)
				}
				continue
			}
			if math.Abs(got[i*n+j]-want[i*n+j]) > 1e-12 {
				t.Fatalf("entry (%d,%d): got %g want %g", i, j, got[i*n+j], want[i*n+j])
			}
		}
	}
}

func TestGemmMatchesNaive(t *testing.T) {
	const m, n, k = 4, 5, 3
	ctx, s := newTestCtx(t, 1<<20)

	a := randSlice(m*k, 8)
	b := randSlice(n*k, 9)
	c := randSlice(m*n, 10)
	want := append([]float64(nil), c...)
	for i := range m {
		for j := range n {
			for p := range k {
				want[i*n+j] -= a[i*k+p] * b[j*k+p]
			}
		}
	}

	ab := upload(t, ctx, s, a, m, k)
	bb := upload(t, ctx, s, b, n, k)
	cb := upload(t, ctx, s, c, m, n)
	if err := ctx.Gemm(m, n, k, ab, k, bb, k, cb, n, s); err != nil {
		t.Fatalf("gemm: %v", err)
	}
	got := download(t, ctx, s, cb, m, n)
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("entry %d: got %g want %g", i, got[i], want[i])
		}
	}
}

func TestAllocBudget(t *testing.T) {
	ctx := New(3, 128) // room for 16 elements
	defer ctx.Close()

	b1, err := ctx.Alloc(10)
	if err != nil {
		t.Fatalf("alloc within budget: %v", err)
	}
	_, err = ctx.Alloc(10)
	var ex *device.ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("want ExhaustedError, got %v", err)
	}
	if ex.Device != 3 || ex.Requested != 80 || ex.Free != 48 {
		t.Fatalf("unexpected exhaustion report: %+v", ex)
	}

	if err := ctx.Free(b1); err != nil {
		t.Fatalf("free: %v", err)
	}
	if _, err := ctx.Alloc(16); err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
}

func TestFreeRejectsViewsAndDoubleFree(t *testing.T) {
	ctx := New(0, 1<<10)
	defer ctx.Close()

	b, err := ctx.Alloc(8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := ctx.Free(b.Slice(0, 4)); err == nil {
		t.Fatal("freeing a view should fail")
	}
	if err := ctx.Free(b); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := ctx.Free(b); err == nil {
		t.Fatal("double free should fail")
	}

	other := New(1, 1<<10)
	defer other.Close()
	ob, _ := other.Alloc(4)
	if err := ctx.Free(ob); !errors.Is(err, device.ErrForeignHandle) {
		t.Fatalf("want ErrForeignHandle, got %v", err)
	}
}
