package source

import "context"

// Push is a body whose producer is started exactly once and emits at its own pace.
type Push struct {
	once

	// Start is invoked once at activation. It may emit synchronously, defer
	// further emits through Emitter.Defer, or hand the emitter to another
	// goroutine. The stream stays open until Close or Error is called.
	Start func(ctx context.Context, e Emitter) error

	// Cancel, if set, is called once when the consumer stops reading before
	// the stream reached a terminal state.
	Cancel func(reason error)
}

// NewPush returns a push source running start.
func NewPush(start func(ctx context.Context, e Emitter) error) *Push {
	return &Push{Start: start}
}

// Kind returns KindPush.
func (p *Push) Kind() Kind { return KindPush }

func (p *Push) sealed() {}

// Chunks returns a push source that emits each chunk in order and completes.
func Chunks(chunks ...[]byte) *Push {
	return NewPush(func(_ context.Context, e Emitter) error {
		for _, c := range chunks {
			if err := e.Enqueue(c); err != nil {
				return err
			}
		}
		e.Close()
		return nil
	})
}
