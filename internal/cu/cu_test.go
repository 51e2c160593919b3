//go:build cuda

package cu

import (
	"testing"
	"unsafe"
)

func TestMemcpy2DRoundTrip(t *testing.T) {
	count, err := DeviceCount()
	if err != nil {
		t.Fatalf("DeviceCount: %v", err)
	}
	if count < 1 {
		t.Skip("no cuda device available")
	}
	if err := SetDevice(0); err != nil {
		t.Fatalf("SetDevice: %v", err)
	}

	stream, err := NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer func() {
		if err := stream.Destroy(); err != nil {
			t.Fatalf("stream destroy: %v", err)
		}
	}()

	// 4 rows of 6 elements inside an 8-element host stride.
	const rows, cols, hostLD, devLD = 4, 6, 8, 6
	src := make([]float64, rows*hostLD)
	for i := range src {
		src[i] = float64(i) * 0.5
	}
	dst := make([]float64, rows*hostLD)

	dev, err := AllocDevice(rows * devLD * 8)
	if err != nil {
		t.Fatalf("AllocDevice: %v", err)
	}
	defer func() {
		if err := dev.Free(); err != nil {
			t.Fatalf("device free: %v", err)
		}
	}()

	if err := Memcpy2DH2DAsync(dev, devLD*8, unsafe.Pointer(&src[0]), hostLD*8, cols*8, rows, stream); err != nil {
		t.Fatalf("Memcpy2DH2DAsync: %v", err)
	}
	if err := Memcpy2DD2HAsync(unsafe.Pointer(&dst[0]), hostLD*8, dev, devLD*8, cols*8, rows, stream); err != nil {
		t.Fatalf("Memcpy2DD2HAsync: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("stream synchronize: %v", err)
	}

	for r := range rows {
		for c := range cols {
			if dst[r*hostLD+c] != src[r*hostLD+c] {
				t.Fatalf("mismatch at (%d,%d): got %v want %v", r, c, dst[r*hostLD+c], src[r*hostLD+c])
			}
		}
	}
}

func TestDpotrfIdentity(t *testing.T) {
	count, err := DeviceCount()
	if err != nil {
		t.Fatalf("DeviceCount: %v", err)
	}
	if count < 1 {
		t.Skip("no cuda device available")
	}
	if err := SetDevice(0); err != nil {
		t.Fatalf("SetDevice: %v", err)
	}

	stream, err := NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer func() { _ = stream.Destroy() }()

	solver, err := NewSolverHandle(stream)
	if err != nil {
		t.Fatalf("NewSolverHandle: %v", err)
	}
	defer func() { _ = solver.Destroy() }()

	// 4x4 scaled identity factors to its element-wise square root.
	const n = 4
	host := make([]float64, n*n)
	for i := range n {
		host[i*n+i] = 9
	}

	dev, err := AllocDevice(n * n * 8)
	if err != nil {
		t.Fatalf("AllocDevice: %v", err)
	}
	defer func() { _ = dev.Free() }()
	if err := Memcpy2DH2DAsync(dev, n*8, unsafe.Pointer(&host[0]), n*8, n*8, n, stream); err != nil {
		t.Fatalf("upload: %v", err)
	}

	lwork, err := DpotrfBufferSize(solver, FillLower, n, dev, n)
	if err != nil {
		t.Fatalf("DpotrfBufferSize: %v", err)
	}
	work, err := AllocDevice(max(int64(lwork), 1) * 8)
	if err != nil {
		t.Fatalf("alloc workspace: %v", err)
	}
	defer func() { _ = work.Free() }()
	devInfo, err := AllocDevice(8)
	if err != nil {
		t.Fatalf("alloc devinfo: %v", err)
	}
	defer func() { _ = devInfo.Free() }()

	if err := Dpotrf(solver, FillLower, n, dev, n, work, lwork, devInfo); err != nil {
		t.Fatalf("Dpotrf: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("synchronize: %v", err)
	}

	var info int32
	if err := MemcpyD2H(unsafe.Pointer(&info), devInfo, 4); err != nil {
		t.Fatalf("devinfo read: %v", err)
	}
	if info != 0 {
		t.Fatalf("devinfo = %d, want 0", info)
	}

	if err := Memcpy2DD2HAsync(unsafe.Pointer(&host[0]), n*8, dev, n*8, n*8, n, stream); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("synchronize: %v", err)
	}
	for i := range n {
		if host[i*n+i] != 3 {
			t.Fatalf("diagonal %d = %v, want 3", i, host[i*n+i])
		}
	}
}
