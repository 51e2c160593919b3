// Package device defines the abstraction the out-of-core engine schedules
// against: a per-device solver context with budgeted allocation, strided
// host transfers, ordered asynchronous streams, and the four dense kernels
// the blocked factorization needs.
//
// Implementations live in the host and cuda subpackages. A context only
// accepts buffers, streams, and events it created itself; handles from
// different devices never mix.
package device

// ID identifies a device within a process.
type ID int

// Resource describes one usable device: an informational free-memory
// figure consumed by the planner, the non-nil solver context, and the
// device id.
type Resource struct {
	FreeMemory uint64
	Handle     Context
	ID         ID
}

// Buffer is an opaque handle to device-resident float64 storage.
type Buffer interface {
	// Elems returns the buffer length in elements.
	Elems() int
	// Slice returns a view of elements [lo,hi). The view shares storage
	// with its parent and cannot be freed on its own.
	Slice(lo, hi int) Buffer
}

// Event is a one-shot completion marker recorded on a stream. An event is
// only meaningful to streams of the backend that recorded it.
type Event any

// Stream is an ordered asynchronous work queue bound to one device.
// Operations issued on a stream execute in FIFO order; operations on
// different streams are unordered unless linked through an event.
//
// The first failing operation poisons the stream: subsequent work is
// skipped and Sync reports the failure. Waiting on an event recorded after
// a failure propagates that failure into the waiting stream.
type Stream interface {
	// Record enqueues a completion marker for all previously issued work.
	Record() Event
	// Wait makes work issued after the call run only once ev has fired.
	Wait(ev Event) error
	// Sync blocks until all issued work has drained and returns the
	// stream's sticky error, if any.
	Sync() error
	// Close releases the stream. Work still queued is drained first.
	Close() error
}

// Context is the solver handle for one device.
//
// CopyIn, CopyOut, Trsm, Syrk, and Gemm are asynchronous: they enqueue on
// the given stream and return immediately. Potrf completes synchronously so
// the caller can observe a numerical failure before issuing dependent work.
type Context interface {
	// Device returns the id this context is bound to.
	Device() ID
	// NewStream creates an ordered work queue on this device.
	NewStream() (Stream, error)
	// Close releases the context and everything it still holds.
	Close() error

	// Alloc reserves elems float64 values of device storage against the
	// device budget. Failure is an *ExhaustedError.
	Alloc(elems int) (Buffer, error)
	// Free returns an allocation to the budget. Views cannot be freed.
	Free(b Buffer) error

	// CopyIn copies a rows-by-cols host region into dst. Strides are in
	// elements between consecutive rows on either side.
	CopyIn(dst Buffer, dstLD int, src []float64, srcLD, rows, cols int, s Stream) error
	// CopyOut copies a rows-by-cols device region into host memory.
	CopyOut(dst []float64, dstLD int, src Buffer, srcLD, rows, cols int, s Stream) error

	// Potrf overwrites the lower triangle of the n-by-n block in a with
	// its Cholesky factor. It drains s before returning; a non-positive-
	// definite block surfaces as a *NotPDError.
	Potrf(n int, a Buffer, lda int, s Stream) error
	// Trsm solves B = B * L^-T in place for the m-by-n panel b against
	// the n-by-n lower-triangular block l.
	Trsm(m, n int, l Buffer, ldl int, b Buffer, ldb int, s Stream) error
	// Syrk applies the symmetric rank-k update C = C - A*A^T to the lower
	// triangle of the n-by-n block c, with a an n-by-k panel.
	Syrk(n, k int, a Buffer, lda int, c Buffer, ldc int, s Stream) error
	// Gemm applies C = C - A*B^T with a m-by-k, b n-by-k, and c m-by-n.
	Gemm(m, n, k int, a Buffer, lda int, b Buffer, ldb int, c Buffer, ldc int, s Stream) error
}
