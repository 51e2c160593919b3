//go:build cuda

// Package cuda implements the device abstraction on NVIDIA GPUs through
// the cuBLAS and cuSOLVER dense routines.
//
// Buffers keep the host's row-major layout. Kernels run on the transposed
// column-major view of the same memory, so lower-triangular work maps to
// upper-triangular calls and product operands swap.
package cuda

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/samcharles93/ashlar/internal/cu"
	"github.com/samcharles93/ashlar/pkg/device"
)

const elemSize = 8

// Context is a device.Context bound to one CUDA device ordinal.
type Context struct {
	id      device.ID
	ordinal int

	mu      sync.Mutex
	closed  bool
	bufs    map[unsafe.Pointer]cu.DeviceBuffer
	streams []*stream
	events  []cu.Event
}

// New creates a context for the CUDA device at the given ordinal.
func New(id device.ID, ordinal int) (*Context, error) {
	if err := cu.SetDevice(ordinal); err != nil {
		return nil, fmt.Errorf("cuda device %d: %w", ordinal, err)
	}
	return &Context{
		id:      id,
		ordinal: ordinal,
		bufs:    make(map[unsafe.Pointer]cu.DeviceBuffer),
	}, nil
}

// Enumerate builds one resource per visible CUDA device, up to limit when
// limit > 0. Free memory is probed per device for the planner.
func Enumerate(limit int) ([]device.Resource, error) {
	count, err := cu.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, errors.New("no cuda devices detected")
	}
	if limit > 0 && count > limit {
		count = limit
	}
	resources := make([]device.Resource, 0, count)
	for i := range count {
		ctx, err := New(device.ID(i), i)
		if err != nil {
			closeResources(resources)
			return nil, err
		}
		free, _, err := cu.MemGetInfo()
		if err != nil {
			_ = ctx.Close()
			closeResources(resources)
			return nil, fmt.Errorf("cuda device %d: %w", i, err)
		}
		resources = append(resources, device.Resource{
			FreeMemory: free,
			Handle:     ctx,
			ID:         device.ID(i),
		})
	}
	return resources, nil
}

func closeResources(resources []device.Resource) {
	for _, r := range resources {
		_ = r.Handle.Close()
	}
}

// Device returns the id this context is bound to.
func (c *Context) Device() device.ID { return c.id }

// set binds the calling thread to this context's device. The CUDA runtime
// tracks the current device per OS thread, so every entry point re-binds.
func (c *Context) set() error {
	return cu.SetDevice(c.ordinal)
}

// buffer is device storage tracked by its owning context.
type buffer struct {
	ctx   *Context
	buf   cu.DeviceBuffer
	elems int
	root  bool
}

func (b *buffer) Elems() int { return b.elems }

func (b *buffer) Slice(lo, hi int) device.Buffer {
	if lo < 0 || hi < lo || hi > b.elems {
		panic(fmt.Sprintf("buffer slice [%d:%d) outside 0..%d", lo, hi, b.elems))
	}
	return &buffer{
		ctx:   b.ctx,
		buf:   b.buf.Offset(int64(lo) * elemSize),
		elems: hi - lo,
	}
}

// Alloc reserves elems float64 values of device memory. Failure reports
// the device's current free figure in an *ExhaustedError.
func (c *Context) Alloc(elems int) (device.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, device.ErrClosed
	}
	if elems <= 0 {
		return nil, errors.New("device alloc size must be > 0")
	}
	if err := c.set(); err != nil {
		return nil, err
	}
	bytes := uint64(elems) * elemSize
	buf, err := cu.AllocDevice(int64(elems) * elemSize)
	if err != nil {
		free, _, infoErr := cu.MemGetInfo()
		if infoErr != nil {
			return nil, err
		}
		return nil, &device.ExhaustedError{Device: c.id, Requested: bytes, Free: free}
	}
	c.bufs[buf.Ptr()] = buf
	return &buffer{ctx: c, buf: buf, elems: elems, root: true}, nil
}

// Free releases a root allocation. Views cannot be freed.
func (c *Context) Free(b device.Buffer) error {
	cb, err := c.own(b)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !cb.root {
		return errors.New("cannot free a buffer view")
	}
	if _, ok := c.bufs[cb.buf.Ptr()]; !ok {
		return errors.New("buffer already freed")
	}
	delete(c.bufs, cb.buf.Ptr())
	if err := c.set(); err != nil {
		return err
	}
	return cb.buf.Free()
}

// Close synchronizes and releases all streams, recorded events, and any
// allocations still outstanding.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	events := c.events
	bufs := c.bufs
	c.streams = nil
	c.events = nil
	c.bufs = make(map[unsafe.Pointer]cu.DeviceBuffer)
	c.mu.Unlock()

	var errs []error
	if err := c.set(); err != nil {
		errs = append(errs, err)
	}
	for _, s := range streams {
		if err := s.destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ev := range events {
		if err := ev.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range bufs {
		if err := b.Free(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Context) own(b device.Buffer) (*buffer, error) {
	cb, ok := b.(*buffer)
	if !ok || cb.ctx != c {
		return nil, device.ErrForeignHandle
	}
	return cb, nil
}

func (c *Context) ownStream(s device.Stream) (*stream, error) {
	cs, ok := s.(*stream)
	if !ok || cs.ctx != c {
		return nil, device.ErrForeignHandle
	}
	return cs, nil
}
