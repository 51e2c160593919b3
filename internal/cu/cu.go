//go:build cuda

// Package cu provides minimal cgo bindings to the CUDA runtime, cuBLAS,
// and cuSOLVER for the cuda device backend.
package cu

/*
#cgo LDFLAGS: -lcudart -lcublas -lcusolver

// Minimal CUDA forward declarations to avoid requiring headers at compile time.
// The linker still requires the CUDA libraries when building with the cuda tag.
typedef void* cudaStream_t;
typedef void* cudaEvent_t;
typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaMemGetInfo(unsigned long long* free, unsigned long long* total);
extern cudaError_t cudaStreamCreate(cudaStream_t* stream);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaEventCreateWithFlags(cudaEvent_t* event, unsigned int flags);
extern cudaError_t cudaEventDestroy(cudaEvent_t event);
extern cudaError_t cudaEventRecord(cudaEvent_t event, cudaStream_t stream);
extern cudaError_t cudaStreamWaitEvent(cudaStream_t stream, cudaEvent_t event, unsigned int flags);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMemcpy(void* dst, const void* src, unsigned long long size, int kind);
extern cudaError_t cudaMemcpy2DAsync(void* dst, unsigned long long dpitch, const void* src, unsigned long long spitch, unsigned long long width, unsigned long long height, int kind, cudaStream_t stream);

#define ASHLAR_CUDA_MEMCPY_HOST_TO_DEVICE 1
#define ASHLAR_CUDA_MEMCPY_DEVICE_TO_HOST 2
#define ASHLAR_CUDA_EVENT_DISABLE_TIMING 2

typedef struct cublasContext* cublasHandle_t;
typedef int cublasStatus_t;

extern cublasStatus_t cublasCreate_v2(cublasHandle_t* handle);
extern cublasStatus_t cublasDestroy_v2(cublasHandle_t handle);
extern cublasStatus_t cublasSetStream_v2(cublasHandle_t handle, cudaStream_t stream);
extern cublasStatus_t cublasDtrsm_v2(
	cublasHandle_t handle,
	int side,
	int uplo,
	int trans,
	int diag,
	int m,
	int n,
	const double* alpha,
	const double* A,
	int lda,
	double* B,
	int ldb);
extern cublasStatus_t cublasDsyrk_v2(
	cublasHandle_t handle,
	int uplo,
	int trans,
	int n,
	int k,
	const double* alpha,
	const double* A,
	int lda,
	const double* beta,
	double* C,
	int ldc);
extern cublasStatus_t cublasDgemm_v2(
	cublasHandle_t handle,
	int transa,
	int transb,
	int m,
	int n,
	int k,
	const double* alpha,
	const double* A,
	int lda,
	const double* B,
	int ldb,
	const double* beta,
	double* C,
	int ldc);

typedef struct cusolverDnContext* cusolverDnHandle_t;
typedef int cusolverStatus_t;

extern cusolverStatus_t cusolverDnCreate(cusolverDnHandle_t* handle);
extern cusolverStatus_t cusolverDnDestroy(cusolverDnHandle_t handle);
extern cusolverStatus_t cusolverDnSetStream(cusolverDnHandle_t handle, cudaStream_t stream);
extern cusolverStatus_t cusolverDnDpotrf_bufferSize(
	cusolverDnHandle_t handle,
	int uplo,
	int n,
	double* A,
	int lda,
	int* lwork);
extern cusolverStatus_t cusolverDnDpotrf(
	cusolverDnHandle_t handle,
	int uplo,
	int n,
	double* A,
	int lda,
	double* workspace,
	int lwork,
	int* devInfo);

static const char* ashlarCudaGetErrorString(cudaError_t err) {
	return cudaGetErrorString(err);
}

static int ashlarCudaGetDeviceCount(int* out) {
	cudaError_t err = cudaGetDeviceCount(out);
	return (int)err;
}

static int ashlarCudaSetDevice(int device) {
	cudaError_t err = cudaSetDevice(device);
	return (int)err;
}

static int ashlarCudaMemGetInfo(unsigned long long* freeBytes, unsigned long long* totalBytes) {
	cudaError_t err = cudaMemGetInfo(freeBytes, totalBytes);
	return (int)err;
}

static int ashlarCudaStreamCreate(cudaStream_t* out) {
	cudaError_t err = cudaStreamCreate(out);
	return (int)err;
}

static int ashlarCudaStreamDestroy(cudaStream_t stream) {
	cudaError_t err = cudaStreamDestroy(stream);
	return (int)err;
}

static int ashlarCudaStreamSynchronize(cudaStream_t stream) {
	cudaError_t err = cudaStreamSynchronize(stream);
	return (int)err;
}

static int ashlarCudaEventCreate(cudaEvent_t* out) {
	cudaError_t err = cudaEventCreateWithFlags(out, ASHLAR_CUDA_EVENT_DISABLE_TIMING);
	return (int)err;
}

static int ashlarCudaEventDestroy(cudaEvent_t event) {
	cudaError_t err = cudaEventDestroy(event);
	return (int)err;
}

static int ashlarCudaEventRecord(cudaEvent_t event, cudaStream_t stream) {
	cudaError_t err = cudaEventRecord(event, stream);
	return (int)err;
}

static int ashlarCudaStreamWaitEvent(cudaStream_t stream, cudaEvent_t event) {
	cudaError_t err = cudaStreamWaitEvent(stream, event, 0);
	return (int)err;
}

static int ashlarCudaMalloc(void** ptr, unsigned long long size) {
	cudaError_t err = cudaMalloc(ptr, size);
	return (int)err;
}

static int ashlarCudaFree(void* ptr) {
	cudaError_t err = cudaFree(ptr);
	return (int)err;
}

static int ashlarCudaMemcpy(void* dst, const void* src, unsigned long long size, int kind) {
	cudaError_t err = cudaMemcpy(dst, src, size, kind);
	return (int)err;
}

static int ashlarCudaMemcpy2DAsync(
	void* dst,
	unsigned long long dpitch,
	const void* src,
	unsigned long long spitch,
	unsigned long long width,
	unsigned long long height,
	int kind,
	cudaStream_t stream) {
	cudaError_t err = cudaMemcpy2DAsync(dst, dpitch, src, spitch, width, height, kind, stream);
	return (int)err;
}

static int ashlarCublasCreate(cublasHandle_t* out) {
	cublasStatus_t st = cublasCreate_v2(out);
	return (int)st;
}

static int ashlarCublasDestroy(cublasHandle_t handle) {
	cublasStatus_t st = cublasDestroy_v2(handle);
	return (int)st;
}

static int ashlarCublasSetStream(cublasHandle_t handle, cudaStream_t stream) {
	cublasStatus_t st = cublasSetStream_v2(handle, stream);
	return (int)st;
}

static int ashlarCublasDtrsm(
	cublasHandle_t handle,
	int side,
	int uplo,
	int trans,
	int diag,
	int m,
	int n,
	const double* alpha,
	const double* A,
	int lda,
	double* B,
	int ldb) {
	cublasStatus_t st = cublasDtrsm_v2(handle, side, uplo, trans, diag, m, n, alpha, A, lda, B, ldb);
	return (int)st;
}

static int ashlarCublasDsyrk(
	cublasHandle_t handle,
	int uplo,
	int trans,
	int n,
	int k,
	const double* alpha,
	const double* A,
	int lda,
	const double* beta,
	double* C,
	int ldc) {
	cublasStatus_t st = cublasDsyrk_v2(handle, uplo, trans, n, k, alpha, A, lda, beta, C, ldc);
	return (int)st;
}

static int ashlarCublasDgemm(
	cublasHandle_t handle,
	int transa,
	int transb,
	int m,
	int n,
	int k,
	const double* alpha,
	const double* A,
	int lda,
	const double* B,
	int ldb,
	const double* beta,
	double* C,
	int ldc) {
	cublasStatus_t st = cublasDgemm_v2(handle, transa, transb, m, n, k, alpha, A, lda, B, ldb, beta, C, ldc);
	return (int)st;
}

static int ashlarCusolverCreate(cusolverDnHandle_t* out) {
	cusolverStatus_t st = cusolverDnCreate(out);
	return (int)st;
}

static int ashlarCusolverDestroy(cusolverDnHandle_t handle) {
	cusolverStatus_t st = cusolverDnDestroy(handle);
	return (int)st;
}

static int ashlarCusolverSetStream(cusolverDnHandle_t handle, cudaStream_t stream) {
	cusolverStatus_t st = cusolverDnSetStream(handle, stream);
	return (int)st;
}

static int ashlarCusolverDpotrfBufferSize(
	cusolverDnHandle_t handle,
	int uplo,
	int n,
	double* A,
	int lda,
	int* lwork) {
	cusolverStatus_t st = cusolverDnDpotrf_bufferSize(handle, uplo, n, A, lda, lwork);
	return (int)st;
}

static int ashlarCusolverDpotrf(
	cusolverDnHandle_t handle,
	int uplo,
	int n,
	double* A,
	int lda,
	double* workspace,
	int lwork,
	int* devInfo) {
	cusolverStatus_t st = cusolverDnDpotrf(handle, uplo, n, A, lda, workspace, lwork, devInfo);
	return (int)st;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type Stream struct {
	ptr C.cudaStream_t
}

type Event struct {
	ptr C.cudaEvent_t
}

type BlasHandle struct {
	ptr C.cublasHandle_t
}

type SolverHandle struct {
	ptr C.cusolverDnHandle_t
}

type DeviceBuffer struct {
	ptr unsafe.Pointer
}

type FillMode int

const (
	FillLower FillMode = 0 // CUBLAS_FILL_MODE_LOWER
	FillUpper FillMode = 1 // CUBLAS_FILL_MODE_UPPER
)

type Op int

const (
	OpN Op = 0 // CUBLAS_OP_N
	OpT Op = 1 // CUBLAS_OP_T
)

type SideMode int

const (
	SideLeft  SideMode = 0 // CUBLAS_SIDE_LEFT
	SideRight SideMode = 1 // CUBLAS_SIDE_RIGHT
)

type DiagType int

const (
	DiagNonUnit DiagType = 0 // CUBLAS_DIAG_NON_UNIT
	DiagUnit    DiagType = 1 // CUBLAS_DIAG_UNIT
)

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.ashlarCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// SetDevice binds the calling OS thread to the given device ordinal. The
// runtime tracks the current device per thread, so callers issue this
// before work that must land on a specific device.
func SetDevice(device int) error {
	return cudaErr(C.ashlarCudaSetDevice(C.int(device)))
}

// MemGetInfo reports free and total memory of the current device in bytes.
func MemGetInfo() (free, total uint64, err error) {
	var f, t C.ulonglong
	if err := cudaErr(C.ashlarCudaMemGetInfo(&f, &t)); err != nil {
		return 0, 0, err
	}
	return uint64(f), uint64(t), nil
}

func NewStream() (Stream, error) {
	var stream C.cudaStream_t
	if err := cudaErr(C.ashlarCudaStreamCreate(&stream)); err != nil {
		return Stream{}, err
	}
	return Stream{ptr: stream}, nil
}

func (s Stream) Destroy() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.ashlarCudaStreamDestroy(s.ptr))
}

func (s Stream) Synchronize() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.ashlarCudaStreamSynchronize(s.ptr))
}

// NewEvent creates a timing-disabled event for cross-stream ordering.
func NewEvent() (Event, error) {
	var event C.cudaEvent_t
	if err := cudaErr(C.ashlarCudaEventCreate(&event)); err != nil {
		return Event{}, err
	}
	return Event{ptr: event}, nil
}

func (e Event) Destroy() error {
	if e.ptr == nil {
		return nil
	}
	return cudaErr(C.ashlarCudaEventDestroy(e.ptr))
}

func RecordEvent(e Event, s Stream) error {
	return cudaErr(C.ashlarCudaEventRecord(e.ptr, s.ptr))
}

func StreamWaitEvent(s Stream, e Event) error {
	return cudaErr(C.ashlarCudaStreamWaitEvent(s.ptr, e.ptr))
}

func AllocDevice(bytes int64) (DeviceBuffer, error) {
	if bytes <= 0 {
		return DeviceBuffer{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.ashlarCudaMalloc((*unsafe.Pointer)(&ptr), C.ulonglong(bytes))); err != nil {
		return DeviceBuffer{}, err
	}
	return DeviceBuffer{ptr: ptr}, nil
}

func (b DeviceBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.ashlarCudaFree(b.ptr))
}

func (b DeviceBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Offset returns a view of the buffer shifted by the given byte offset.
// The view must not be freed.
func (b DeviceBuffer) Offset(bytes int64) DeviceBuffer {
	return DeviceBuffer{ptr: unsafe.Add(b.ptr, bytes)}
}

// Memcpy2DH2DAsync stages rows separated by spitch bytes on the host into
// rows separated by dpitch bytes on the device, width bytes per row.
func Memcpy2DH2DAsync(dst DeviceBuffer, dpitch int64, src unsafe.Pointer, spitch int64, width, rows int64, stream Stream) error {
	if width <= 0 || rows <= 0 {
		return nil
	}
	return cudaErr(C.ashlarCudaMemcpy2DAsync(
		dst.ptr, C.ulonglong(dpitch),
		src, C.ulonglong(spitch),
		C.ulonglong(width), C.ulonglong(rows),
		C.ASHLAR_CUDA_MEMCPY_HOST_TO_DEVICE, stream.ptr))
}

// Memcpy2DD2HAsync is the device-to-host counterpart of Memcpy2DH2DAsync.
func Memcpy2DD2HAsync(dst unsafe.Pointer, dpitch int64, src DeviceBuffer, spitch int64, width, rows int64, stream Stream) error {
	if width <= 0 || rows <= 0 {
		return nil
	}
	return cudaErr(C.ashlarCudaMemcpy2DAsync(
		dst, C.ulonglong(dpitch),
		src.ptr, C.ulonglong(spitch),
		C.ulonglong(width), C.ulonglong(rows),
		C.ASHLAR_CUDA_MEMCPY_DEVICE_TO_HOST, stream.ptr))
}

// MemcpyD2H copies synchronously, used for small status reads like devInfo.
func MemcpyD2H(dst unsafe.Pointer, src DeviceBuffer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.ashlarCudaMemcpy(dst, src.ptr, C.ulonglong(bytes), C.ASHLAR_CUDA_MEMCPY_DEVICE_TO_HOST))
}

func NewBlasHandle(stream Stream) (BlasHandle, error) {
	var handle C.cublasHandle_t
	if err := cublasErr(C.ashlarCublasCreate(&handle)); err != nil {
		return BlasHandle{}, err
	}
	if err := cublasErr(C.ashlarCublasSetStream(handle, stream.ptr)); err != nil {
		_ = cublasErr(C.ashlarCublasDestroy(handle))
		return BlasHandle{}, err
	}
	return BlasHandle{ptr: handle}, nil
}

func (h BlasHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cublasErr(C.ashlarCublasDestroy(h.ptr))
}

func NewSolverHandle(stream Stream) (SolverHandle, error) {
	var handle C.cusolverDnHandle_t
	if err := cusolverErr(C.ashlarCusolverCreate(&handle)); err != nil {
		return SolverHandle{}, err
	}
	if err := cusolverErr(C.ashlarCusolverSetStream(handle, stream.ptr)); err != nil {
		_ = cusolverErr(C.ashlarCusolverDestroy(handle))
		return SolverHandle{}, err
	}
	return SolverHandle{ptr: handle}, nil
}

func (h SolverHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cusolverErr(C.ashlarCusolverDestroy(h.ptr))
}

func Dtrsm(handle BlasHandle, side SideMode, uplo FillMode, trans Op, diag DiagType, m, n int, alpha float64, a DeviceBuffer, lda int, b DeviceBuffer, ldb int) error {
	return cublasErr(C.ashlarCublasDtrsm(
		handle.ptr,
		C.int(side),
		C.int(uplo),
		C.int(trans),
		C.int(diag),
		C.int(m),
		C.int(n),
		(*C.double)(unsafe.Pointer(&alpha)),
		(*C.double)(a.ptr),
		C.int(lda),
		(*C.double)(b.ptr),
		C.int(ldb),
	))
}

func Dsyrk(handle BlasHandle, uplo FillMode, trans Op, n, k int, alpha float64, a DeviceBuffer, lda int, beta float64, c DeviceBuffer, ldc int) error {
	return cublasErr(C.ashlarCublasDsyrk(
		handle.ptr,
		C.int(uplo),
		C.int(trans),
		C.int(n),
		C.int(k),
		(*C.double)(unsafe.Pointer(&alpha)),
		(*C.double)(a.ptr),
		C.int(lda),
		(*C.double)(unsafe.Pointer(&beta)),
		(*C.double)(c.ptr),
		C.int(ldc),
	))
}

func Dgemm(handle BlasHandle, transA, transB Op, m, n, k int, alpha float64, a DeviceBuffer, lda int, b DeviceBuffer, ldb int, beta float64, c DeviceBuffer, ldc int) error {
	return cublasErr(C.ashlarCublasDgemm(
		handle.ptr,
		C.int(transA),
		C.int(transB),
		C.int(m),
		C.int(n),
		C.int(k),
		(*C.double)(unsafe.Pointer(&alpha)),
		(*C.double)(a.ptr),
		C.int(lda),
		(*C.double)(b.ptr),
		C.int(ldb),
		(*C.double)(unsafe.Pointer(&beta)),
		(*C.double)(c.ptr),
		C.int(ldc),
	))
}

func DpotrfBufferSize(handle SolverHandle, uplo FillMode, n int, a DeviceBuffer, lda int) (int, error) {
	var lwork C.int
	err := cusolverErr(C.ashlarCusolverDpotrfBufferSize(
		handle.ptr,
		C.int(uplo),
		C.int(n),
		(*C.double)(a.ptr),
		C.int(lda),
		&lwork,
	))
	if err != nil {
		return 0, err
	}
	return int(lwork), nil
}

// Dpotrf factors in place on the device. devInfo receives the LAPACK info
// value and must be a device allocation of at least 4 bytes.
func Dpotrf(handle SolverHandle, uplo FillMode, n int, a DeviceBuffer, lda int, workspace DeviceBuffer, lwork int, devInfo DeviceBuffer) error {
	return cusolverErr(C.ashlarCusolverDpotrf(
		handle.ptr,
		C.int(uplo),
		C.int(n),
		(*C.double)(a.ptr),
		C.int(lda),
		(*C.double)(workspace.ptr),
		C.int(lwork),
		(*C.int)(devInfo.ptr),
	))
}

func cublasErr(code C.int) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("cublas error %d", int(code))
}

func cusolverErr(code C.int) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("cusolver error %d", int(code))
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.ashlarCudaGetErrorString(C.cudaError_t(code)))
	return fmt.Errorf("cuda runtime error %d: %s", int(code), msg)
}
