package source

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"github.com/kbukum/streamkit/errors"
)

// Kind identifies the production protocol of a Source.
type Kind int

const (
	KindEager Kind = iota
	KindPush
	KindPull
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEager:
		return "eager"
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	default:
		return "unknown"
	}
}

// Source is a single-use response body producer. The set of implementations
// is closed: *Eager, *Push and *Pull.
type Source interface {
	// Kind returns the production protocol.
	Kind() Kind
	// Claim marks the source as consumed. It fails on every call after the first.
	Claim() error

	sealed()
}

// ErrClosed is returned by Emitter.Enqueue once the stream has been closed,
// failed or abandoned by the consumer.
var ErrClosed = stderrors.New("source: stream closed")

// Emitter is handed to Push and Pull callbacks.
type Emitter interface {
	// Enqueue appends a chunk to the stream. It blocks while the delivery
	// buffer is full and returns ErrClosed after the stream has ended.
	// Empty chunks are ignored.
	Enqueue(chunk []byte) error
	// Close signals successful completion. Later calls are no-ops.
	Close()
	// Error signals failure. Later calls, or calls after Close, are no-ops.
	Error(err error)
	// Defer schedules fn to run after the current callback returns, as part
	// of the same production step. Continuations run in order, one at a time.
	// A returned error fails the stream.
	Defer(fn func(ctx context.Context) error)
	// Context is cancelled when the consumer abandons the stream.
	Context() context.Context
}

// once implements Claim for every variant.
type once struct {
	claimed atomic.Bool
}

// Claim marks the source as consumed.
func (o *once) Claim() error {
	if o.claimed.Swap(true) {
		return errors.SourceConsumed()
	}
	return nil
}

// Claimed reports whether the source has been activated.
func (o *once) Claimed() bool { return o.claimed.Load() }
