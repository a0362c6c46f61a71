package buffer

import (
	"context"
	stderrors "errors"
	"sync"
)

var (
	// ErrAbandoned is returned to both sides after Abandon.
	ErrAbandoned = stderrors.New("buffer: abandoned")
	// ErrTerminated is returned by Push after Complete or Fail.
	ErrTerminated = stderrors.New("buffer: already terminated")
)

// State is the terminal marker of a buffer.
type State int

const (
	Open State = iota
	Completed
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemKind tags what Next returned.
type ItemKind int

const (
	ItemChunk ItemKind = iota
	ItemCompleted
	ItemFailed
)

// Item is one unit handed to the writer: a chunk or a terminal signal.
type Item struct {
	Kind  ItemKind
	Chunk []byte
	Err   error
}

// Buffer is a bounded FIFO of pending chunks plus a terminal marker.
// It is safe for one producer and one consumer running concurrently.
type Buffer struct {
	mu        sync.Mutex
	chunks    [][]byte
	size      int
	capacity  int
	state     State
	err       error
	abandoned bool
	changed   chan struct{}
	version   uint64
}

// New returns a buffer holding at most capacity bytes. A single chunk larger
// than capacity is still accepted when the buffer is empty.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{capacity: capacity, changed: make(chan struct{})}
}

// broadcast wakes every waiter. Callers hold mu.
func (b *Buffer) broadcast() {
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
}

// wait releases mu until the next change or ctx is done, then reacquires it.
func (b *Buffer) wait(ctx context.Context) error {
	ch := b.changed
	b.mu.Unlock()
	defer b.mu.Lock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Push appends chunk, blocking while it would exceed capacity.
// Empty chunks are dropped.
func (b *Buffer) Push(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		switch {
		case b.abandoned:
			return ErrAbandoned
		case b.state != Open:
			return ErrTerminated
		case b.size == 0 || b.size+len(chunk) <= b.capacity:
			b.chunks = append(b.chunks, chunk)
			b.size += len(chunk)
			b.broadcast()
			return nil
		}
		if err := b.wait(ctx); err != nil {
			return err
		}
	}
}

// Complete marks the stream as finished. It reports whether this call
// changed the state; only the first terminal signal counts.
func (b *Buffer) Complete() bool {
	return b.terminate(Completed, nil)
}

// Fail marks the stream as failed with err. It reports whether this call
// changed the state; only the first terminal signal counts.
func (b *Buffer) Fail(err error) bool {
	return b.terminate(Failed, err)
}

func (b *Buffer) terminate(state State, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open || b.abandoned {
		return false
	}
	b.state = state
	b.err = err
	b.broadcast()
	return true
}

// Next removes and returns the oldest chunk. Once the queue is empty and the
// stream has ended it returns the terminal item, repeatedly. It blocks while
// the buffer is empty and open.
func (b *Buffer) Next(ctx context.Context) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.abandoned {
			return Item{}, ErrAbandoned
		}
		if len(b.chunks) > 0 {
			chunk := b.chunks[0]
			b.chunks[0] = nil
			b.chunks = b.chunks[1:]
			b.size -= len(chunk)
			b.broadcast()
			return Item{Kind: ItemChunk, Chunk: chunk}, nil
		}
		switch b.state {
		case Completed:
			return Item{Kind: ItemCompleted}, nil
		case Failed:
			return Item{Kind: ItemFailed, Err: b.err}, nil
		}
		if err := b.wait(ctx); err != nil {
			return Item{}, err
		}
	}
}

// WaitBelow blocks until fewer than mark bytes are buffered, the buffer is
// empty, or the stream has ended.
func (b *Buffer) WaitBelow(ctx context.Context, mark int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.abandoned {
			return ErrAbandoned
		}
		if b.size == 0 || b.size < mark || b.state != Open {
			return nil
		}
		if err := b.wait(ctx); err != nil {
			return err
		}
	}
}

// Version counts the changes made to the buffer so far: pushes, reads,
// terminal signals and Abandon.
func (b *Buffer) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// WaitChange blocks until the buffer has changed since version was observed.
func (b *Buffer) WaitChange(ctx context.Context, version uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.version == version {
		if err := b.wait(ctx); err != nil {
			return err
		}
	}
	if b.abandoned {
		return ErrAbandoned
	}
	return nil
}

// Abandon drops pending chunks and releases every waiter with ErrAbandoned.
func (b *Buffer) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abandoned {
		return
	}
	b.abandoned = true
	b.chunks = nil
	b.size = 0
	b.broadcast()
}

// State returns the terminal marker.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the failure recorded by Fail.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Buffered returns the number of bytes waiting to be written.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Len returns the number of chunks waiting to be written.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Capacity returns the configured capacity in bytes.
func (b *Buffer) Capacity() int { return b.capacity }
