// Package host implements the device abstraction on the CPU.
//
// It is the reference backend and the multi-device emulation used by tests
// and the cpu fallback of the CLI: several contexts with separate memory
// budgets behave like separate accelerators sharing the host BLAS. Kernels
// run on gonum's blas64/lapack64; build with -tags netlib to route them
// through a system BLAS via cgo.
package host

import (
	"errors"
	"sync"

	"github.com/samcharles93/ashlar/pkg/device"
)

const elemSize = 8

// fallbackMemory is used when the platform exposes no cheap probe for
// available memory.
const fallbackMemory = 8 << 30

// Context is a host-backed device.Context with a fixed allocation budget.
type Context struct {
	id device.ID

	mu       sync.Mutex
	capacity uint64
	used     uint64
	closed   bool
	streams  []*stream
}

// New creates a host context with a memory budget in bytes. Allocations
// beyond the budget fail with a *device.ExhaustedError.
func New(id device.ID, capacity uint64) *Context {
	return &Context{id: id, capacity: capacity}
}

// Device returns the id this context is bound to.
func (c *Context) Device() device.ID { return c.id }

// Capacity returns the allocation budget in bytes.
func (c *Context) Capacity() uint64 { return c.capacity }

// Used returns the bytes currently allocated.
func (c *Context) Used() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// NewStream creates an ordered work queue backed by a worker goroutine.
func (c *Context) NewStream() (device.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, device.ErrClosed
	}
	s := newStream(c)
	c.streams = append(c.streams, s)
	return s, nil
}

// Close drains and stops every stream created by this context.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()
	for _, s := range streams {
		_ = s.Close()
	}
	return nil
}

// buffer is host storage allocated from a context's budget. Views created
// through Slice share the backing array and cannot be freed.
type buffer struct {
	ctx  *Context
	data []float64
	root bool
}

func (b *buffer) Elems() int { return len(b.data) }

func (b *buffer) Slice(lo, hi int) device.Buffer {
	if lo < 0 || hi < lo || hi > len(b.data) {
		panic("buffer slice out of range")
	}
	return &buffer{ctx: b.ctx, data: b.data[lo:hi]}
}

// Alloc reserves elems float64 values against the budget.
func (c *Context) Alloc(elems int) (device.Buffer, error) {
	if elems <= 0 {
		return nil, errors.New("device alloc size must be > 0")
	}
	bytes := uint64(elems) * elemSize
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, device.ErrClosed
	}
	if c.used+bytes > c.capacity {
		return nil, &device.ExhaustedError{
			Device:    c.id,
			Requested: bytes,
			Free:      c.capacity - c.used,
		}
	}
	c.used += bytes
	return &buffer{ctx: c, data: make([]float64, elems), root: true}, nil
}

// Free returns an allocation to the budget.
func (c *Context) Free(b device.Buffer) error {
	hb, err := c.own(b)
	if err != nil {
		return err
	}
	if !hb.root {
		return errors.New("cannot free a buffer view")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used -= uint64(len(hb.data)) * elemSize
	hb.root = false
	hb.data = nil
	return nil
}

func (c *Context) own(b device.Buffer) (*buffer, error) {
	hb, ok := b.(*buffer)
	if !ok || hb.ctx != c {
		return nil, device.ErrForeignHandle
	}
	return hb, nil
}

func (c *Context) ownStream(s device.Stream) (*stream, error) {
	hs, ok := s.(*stream)
	if !ok || hs.ctx != c {
		return nil, device.ErrForeignHandle
	}
	return hs, nil
}
