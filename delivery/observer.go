package delivery

import (
	"context"
	"time"
)

// Observer receives delivery lifecycle events. Implementations must be safe
// for concurrent use; every in-flight response reports to the same observer.
type Observer interface {
	DeliveryStarted(ctx context.Context)
	ChunkWritten(ctx context.Context, n int)
	DeliveryFinished(ctx context.Context, outcome string, substituted bool, bytes int64, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) DeliveryStarted(context.Context)    {}
func (nopObserver) ChunkWritten(context.Context, int) {}
func (nopObserver) DeliveryFinished(context.Context, string, bool, int64, time.Duration) {
}

type multiObserver []Observer

// Observers fans events out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return nopObserver{}
	}
	return m
}

func (m multiObserver) DeliveryStarted(ctx context.Context) {
	for _, o := range m {
		o.DeliveryStarted(ctx)
	}
}

func (m multiObserver) ChunkWritten(ctx context.Context, n int) {
	for _, o := range m {
		o.ChunkWritten(ctx, n)
	}
}

func (m multiObserver) DeliveryFinished(ctx context.Context, outcome string, substituted bool, bytes int64, d time.Duration) {
	for _, o := range m {
		o.DeliveryFinished(ctx, outcome, substituted, bytes, d)
	}
}
