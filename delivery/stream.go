package delivery

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/streamkit/buffer"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/source"
)

// stream is the producer side of one delivery attempt.
type stream struct {
	ctx context.Context
	buf *buffer.Buffer
}

func newStream(ctx context.Context, buf *buffer.Buffer) *stream {
	return &stream{ctx: ctx, buf: buf}
}

// fail records a producer failure. Only the first terminal signal counts.
func (s *stream) fail(err error) {
	if err == nil {
		err = stderrors.New("producer failed without an error")
	}
	s.buf.Fail(errors.Producer(err))
}

// call runs fn, converting a panic into an error.
func (s *stream) call(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return fn(s.ctx)
}

// activate starts production for src.
func (s *stream) activate(src source.Source, lowWater int) {
	switch src := src.(type) {
	case *source.Eager:
		data, err := src.Data()
		if err != nil {
			s.fail(err)
			return
		}
		if err := s.buf.Push(s.ctx, data); err != nil {
			return
		}
		s.buf.Complete()
	case *source.Push:
		if src.Start == nil {
			s.fail(fmt.Errorf("push source has no start callback"))
			return
		}
		s.run(src.Start)
	case *source.Pull:
		if src.Pull == nil {
			s.fail(fmt.Errorf("pull source has no pull callback"))
			return
		}
		go s.pullLoop(src, lowWater)
	default:
		s.fail(fmt.Errorf("unsupported source %T", src))
	}
}

// pullLoop invokes the pull callback whenever the buffer drains below
// lowWater, waiting for each step and its continuations to finish first.
// A step that neither emitted nor ended the stream is not repeated until
// something else touches the buffer.
func (s *stream) pullLoop(src *source.Pull, lowWater int) {
	for {
		if err := s.buf.WaitBelow(s.ctx, lowWater); err != nil {
			return
		}
		if s.buf.State() != buffer.Open {
			return
		}
		version := s.buf.Version()
		st := s.run(src.Pull)
		select {
		case <-st.done:
		case <-s.ctx.Done():
			return
		}
		if st.progressed.Load() {
			continue
		}
		if err := s.buf.WaitChange(s.ctx, version); err != nil {
			return
		}
	}
}

// run starts one production step in its own goroutine.
func (s *stream) run(fn func(ctx context.Context, e source.Emitter) error) *step {
	st := &step{s: s, done: make(chan struct{})}
	go st.drain(fn)
	return st
}

// step is the Emitter for a single production step: the callback itself
// followed by every continuation it deferred.
type step struct {
	s *stream

	mu       sync.Mutex
	queue    []func(ctx context.Context) error
	finished bool
	done     chan struct{}

	// progressed is set once the step buffered data or ended the stream.
	progressed atomic.Bool
}

func (st *step) drain(fn func(ctx context.Context, e source.Emitter) error) {
	defer close(st.done)
	if err := st.s.call(func(ctx context.Context) error { return fn(ctx, st) }); err != nil {
		st.s.fail(err)
	}
	for {
		next := st.pop()
		if next == nil {
			return
		}
		if err := st.s.call(next); err != nil {
			st.s.fail(err)
		}
	}
}

func (st *step) pop() func(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.queue) == 0 {
		st.finished = true
		return nil
	}
	next := st.queue[0]
	st.queue = st.queue[1:]
	return next
}

// Enqueue implements source.Emitter.
func (st *step) Enqueue(chunk []byte) error {
	if st.s.ctx.Err() != nil {
		return source.ErrClosed
	}
	if err := st.s.buf.Push(st.s.ctx, chunk); err != nil {
		return source.ErrClosed
	}
	if len(chunk) > 0 {
		st.progressed.Store(true)
	}
	return nil
}

// Close implements source.Emitter.
func (st *step) Close() {
	st.progressed.Store(true)
	st.s.buf.Complete()
}

// Error implements source.Emitter.
func (st *step) Error(err error) {
	st.progressed.Store(true)
	st.s.fail(err)
}

// Context implements source.Emitter.
func (st *step) Context() context.Context { return st.s.ctx }

// Defer implements source.Emitter. A continuation deferred after its step
// already finished runs on its own goroutine.
func (st *step) Defer(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	st.mu.Lock()
	if !st.finished {
		st.queue = append(st.queue, fn)
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()
	go func() {
		if err := st.s.call(fn); err != nil {
			st.s.fail(err)
		}
	}()
}
