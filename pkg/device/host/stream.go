package host

import (
	"sync"

	"github.com/samcharles93/ashlar/pkg/device"
)

// stream is a goroutine-backed FIFO op queue. CUDA streams order work in
// hardware; a single worker draining an unbounded queue gives the same
// contract on the host. The queue must be unbounded: the scheduler issues
// work for several streams from one goroutine, and a bounded queue could
// block it before a dependent stream's producer op was ever issued.
type stream struct {
	ctx *Context

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []streamOp
	err    error
	closed bool
	done   chan struct{}
}

// streamOp is either work (run != nil) or a completion marker (ev != nil).
type streamOp struct {
	run func() error
	ev  *event
}

// event fires exactly once. err is written before ch closes and must only
// be read after <-ch.
type event struct {
	ch  chan struct{}
	err error
}

func newStream(ctx *Context) *stream {
	s := &stream{ctx: ctx, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

func (s *stream) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		err := s.err
		s.mu.Unlock()

		// The first failure is sticky: later work is skipped, markers
		// still fire so waiters can observe the failure.
		if op.run != nil && err == nil {
			if e := op.run(); e != nil {
				s.mu.Lock()
				s.err = e
				s.mu.Unlock()
				err = e
			}
		}
		if op.ev != nil {
			op.ev.err = err
			close(op.ev.ch)
		}
	}
}

func (s *stream) enqueue(op streamOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if op.ev != nil {
			op.ev.err = device.ErrClosed
			close(op.ev.ch)
		}
		return device.ErrClosed
	}
	s.queue = append(s.queue, op)
	s.cond.Signal()
	return nil
}

// Record enqueues a completion marker for all previously issued work.
func (s *stream) Record() device.Event {
	ev := &event{ch: make(chan struct{})}
	_ = s.enqueue(streamOp{ev: ev})
	return ev
}

// Wait orders work issued after the call behind ev. An event recorded on a
// failed stream propagates that failure into this stream.
func (s *stream) Wait(e device.Event) error {
	ev, ok := e.(*event)
	if !ok || ev == nil {
		return device.ErrForeignHandle
	}
	return s.enqueue(streamOp{run: func() error {
		<-ev.ch
		return ev.err
	}})
}

// Sync drains the stream and returns its sticky error.
func (s *stream) Sync() error {
	ev := &event{ch: make(chan struct{})}
	_ = s.enqueue(streamOp{ev: ev})
	<-ev.ch
	return ev.err
}

// Close drains queued work and stops the worker. Further use of the stream
// fails with device.ErrClosed.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
	return nil
}
