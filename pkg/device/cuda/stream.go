//go:build cuda

package cuda

import (
	"errors"

	"github.com/samcharles93/ashlar/internal/cu"
	"github.com/samcharles93/ashlar/pkg/device"
)

// stream wraps a CUDA stream together with the cuBLAS and cuSOLVER
// handles bound to it and a persistent devInfo word for potrf status.
type stream struct {
	ctx     *Context
	s       cu.Stream
	blas    cu.BlasHandle
	solver  cu.SolverHandle
	devInfo cu.DeviceBuffer
}

// event marks a point in a stream's work. Events cross device boundaries:
// any stream of this backend may wait on it.
type event struct {
	ev  cu.Event
	err error
}

// NewStream creates a CUDA stream with its library handles.
func (c *Context) NewStream() (device.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, device.ErrClosed
	}
	if err := c.set(); err != nil {
		return nil, err
	}

	cs, err := cu.NewStream()
	if err != nil {
		return nil, err
	}
	blas, err := cu.NewBlasHandle(cs)
	if err != nil {
		_ = cs.Destroy()
		return nil, err
	}
	solver, err := cu.NewSolverHandle(cs)
	if err != nil {
		_ = blas.Destroy()
		_ = cs.Destroy()
		return nil, err
	}
	devInfo, err := cu.AllocDevice(elemSize)
	if err != nil {
		_ = solver.Destroy()
		_ = blas.Destroy()
		_ = cs.Destroy()
		return nil, err
	}

	s := &stream{ctx: c, s: cs, blas: blas, solver: solver, devInfo: devInfo}
	c.streams = append(c.streams, s)
	return s, nil
}

// Record enqueues a completion marker. A failure to create or record the
// event surfaces on whoever waits for it.
func (s *stream) Record() device.Event {
	if err := s.ctx.set(); err != nil {
		return &event{err: err}
	}
	ev, err := cu.NewEvent()
	if err != nil {
		return &event{err: err}
	}
	if err := cu.RecordEvent(ev, s.s); err != nil {
		_ = ev.Destroy()
		return &event{err: err}
	}
	s.ctx.mu.Lock()
	s.ctx.events = append(s.ctx.events, ev)
	s.ctx.mu.Unlock()
	return &event{ev: ev}
}

// Wait orders all later work on s after ev. Events from any context of
// this backend are accepted; that is how panels hand off between devices.
func (s *stream) Wait(ev device.Event) error {
	ce, ok := ev.(*event)
	if !ok {
		return device.ErrForeignHandle
	}
	if ce.err != nil {
		return ce.err
	}
	if err := s.ctx.set(); err != nil {
		return err
	}
	return cu.StreamWaitEvent(s.s, ce.ev)
}

// Sync drains the stream.
func (s *stream) Sync() error {
	if err := s.ctx.set(); err != nil {
		return err
	}
	return s.s.Synchronize()
}

// Close drains and destroys the stream and its handles.
func (s *stream) Close() error {
	c := s.ctx
	c.mu.Lock()
	for i, other := range c.streams {
		if other == s {
			c.streams = append(c.streams[:i], c.streams[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	if err := c.set(); err != nil {
		return err
	}
	return s.destroy()
}

func (s *stream) destroy() error {
	var errs []error
	if err := s.s.Synchronize(); err != nil {
		errs = append(errs, err)
	}
	if err := s.solver.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.blas.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.devInfo.Free(); err != nil {
		errs = append(errs, err)
	}
	if err := s.s.Destroy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
