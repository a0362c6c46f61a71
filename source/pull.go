package source

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/kbukum/streamkit/errors"
)

// DefaultChunkSize is used by the reader adapters when chunkSize <= 0.
const DefaultChunkSize = 32 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before a reader is
// considered stuck.
const maxEmptyReads = 100

// Pull is a body whose producer is asked for more data on demand.
type Pull struct {
	once

	// Pull is invoked whenever the delivery buffer drops below its low-water
	// mark. It may emit zero or more chunks, defer continuations, and must
	// eventually call Close or Error. The next invocation waits until this
	// one and all of its continuations have finished.
	Pull func(ctx context.Context, e Emitter) error

	// Cancel, if set, is called once when the consumer stops reading before
	// the stream reached a terminal state.
	Cancel func(reason error)
}

// NewPull returns a pull source running pull.
func NewPull(pull func(ctx context.Context, e Emitter) error) *Pull {
	return &Pull{Pull: pull}
}

// Kind returns KindPull.
func (p *Pull) Kind() Kind { return KindPull }

func (p *Pull) sealed() {}

// Reader returns a pull source reading r in chunks of chunkSize bytes.
// If r is an io.Closer it is closed once the stream ends or is cancelled.
func Reader(r io.Reader, chunkSize int) *Pull {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var closeOnce sync.Once
	release := func() {
		closeOnce.Do(func() {
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
		})
	}

	p := NewPull(func(_ context.Context, e Emitter) error {
		buf := make([]byte, chunkSize)
		var (
			n   int
			err error
		)
		for empty := 0; n == 0 && err == nil; empty++ {
			if empty == maxEmptyReads {
				err = io.ErrNoProgress
				break
			}
			n, err = r.Read(buf)
		}
		if n > 0 {
			if qerr := e.Enqueue(buf[:n]); qerr != nil {
				release()
				return qerr
			}
		}
		switch {
		case stderrors.Is(err, io.EOF):
			release()
			e.Close()
		case err != nil:
			release()
			return err
		}
		return nil
	})
	p.Cancel = func(error) { release() }
	return p
}

// FileStream returns a pull source streaming the file at path. The file is
// opened on the first pull, so a missing file fails before any byte is sent.
func FileStream(path string, chunkSize int) *Pull {
	return Lazy(func(context.Context) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Producer(err).WithDetail("path", path)
		}
		return f, nil
	}, chunkSize)
}

// Lazy returns a pull source over the reader returned by open, read in
// chunks of chunkSize. open runs on the first pull and never after Cancel.
func Lazy(open func(ctx context.Context) (io.ReadCloser, error), chunkSize int) *Pull {
	var (
		mu        sync.Mutex
		inner     *Pull
		cancelled bool
	)
	reader := func(ctx context.Context) (*Pull, error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case cancelled:
			return nil, ErrClosed
		case inner == nil:
			rc, err := open(ctx)
			if err != nil {
				return nil, errors.Producer(err)
			}
			inner = Reader(rc, chunkSize)
		}
		return inner, nil
	}

	p := NewPull(func(ctx context.Context, e Emitter) error {
		r, err := reader(ctx)
		if err != nil {
			return err
		}
		return r.Pull(ctx, e)
	})
	p.Cancel = func(reason error) {
		mu.Lock()
		defer mu.Unlock()
		cancelled = true
		if inner != nil {
			inner.Cancel(reason)
		}
	}
	return p
}

// Iterator yields chunks one at a time. Next returns ok=false when exhausted.
type Iterator interface {
	Next(ctx context.Context) ([]byte, bool, error)
	Close() error
}

// FromIterator returns a pull source emitting one non-empty iterator value
// per pull. Empty values are skipped within the same pull.
func FromIterator(it Iterator) *Pull {
	var closeOnce sync.Once
	release := func() { closeOnce.Do(func() { _ = it.Close() }) }

	p := NewPull(func(ctx context.Context, e Emitter) error {
		for {
			if err := ctx.Err(); err != nil {
				release()
				return err
			}
			chunk, ok, err := it.Next(ctx)
			if err != nil {
				release()
				return err
			}
			if !ok {
				release()
				e.Close()
				return nil
			}
			if len(chunk) > 0 {
				return e.Enqueue(chunk)
			}
		}
	})
	p.Cancel = func(error) { release() }
	return p
}
