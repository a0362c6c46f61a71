package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/streamkit/errors"
)

// hold occupies one slot until the returned channel is closed.
func hold(t *testing.T, b *Bulkhead) chan struct{} {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	return release
}

func TestBulkhead_AllowsRequestsWithinLimit(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "streams", MaxConcurrent: 3})

	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBulkhead_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		maxWait time.Duration
		ctx     func() (context.Context, context.CancelFunc)
		cause   error
	}{
		{
			name:    "full",
			maxWait: 0,
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			cause:   ErrBulkheadFull,
		},
		{
			name:    "wait timeout",
			maxWait: 10 * time.Millisecond,
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			cause:   ErrBulkheadTimeout,
		},
		{
			name:    "context deadline",
			maxWait: time.Second,
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			cause: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBulkhead(BulkheadConfig{Name: "streams", MaxConcurrent: 1, MaxWait: tt.maxWait})
			release := hold(t, b)
			defer close(release)

			ctx, cancel := tt.ctx()
			defer cancel()
			_, err := b.Acquire(ctx)
			if !stderrors.Is(err, tt.cause) {
				t.Errorf("expected cause %v, got %v", tt.cause, err)
			}
			if errors.CodeOf(err) != errors.ErrCodeServiceUnavailable {
				t.Errorf("expected SERVICE_UNAVAILABLE, got %v", errors.CodeOf(err))
			}
		})
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "streams", MaxConcurrent: 1, MaxWait: 200 * time.Millisecond})

	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			return nil
		})
	}()
	<-started

	start := time.Now()
	release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer release()
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected some wait time, got %v", elapsed)
	}
}

func TestBulkhead_ReleaseIsIdempotent(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "streams", MaxConcurrent: 2})

	r1, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Available() != 0 || b.InUse() != 2 {
		t.Fatalf("available=%d inUse=%d", b.Available(), b.InUse())
	}

	r1()
	r1()
	if b.InUse() != 1 {
		t.Errorf("double release freed an extra slot: inUse=%d", b.InUse())
	}
	r2()
	if b.Available() != 2 {
		t.Errorf("expected 2 available after release, got %d", b.Available())
	}
}

func TestBulkhead_Callbacks(t *testing.T) {
	var acquired, released, rejected int32
	var lastInUse int32

	b := NewBulkhead(BulkheadConfig{
		Name:          "streams",
		MaxConcurrent: 1,
		OnAcquire: func(name string, inUse int) {
			atomic.AddInt32(&acquired, 1)
			atomic.StoreInt32(&lastInUse, int32(inUse))
		},
		OnRelease: func(name string, inUse int) {
			atomic.AddInt32(&released, 1)
		},
		OnReject: func(name string, err error) {
			if name != "streams" || !stderrors.Is(err, ErrBulkheadFull) {
				t.Errorf("unexpected reject %s: %v", name, err)
			}
			atomic.AddInt32(&rejected, 1)
		},
	})

	release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, _ = b.Acquire(context.Background())
	release()

	if acquired != 1 || released != 1 || rejected != 1 {
		t.Errorf("acquired=%d released=%d rejected=%d", acquired, released, rejected)
	}
	if lastInUse != 1 {
		t.Errorf("expected inUse 1 on acquire, got %d", lastInUse)
	}
}

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "streams"})
	if b.MaxConcurrent() != DefaultBulkheadConfig("streams").MaxConcurrent {
		t.Errorf("expected default slot count, got %d", b.MaxConcurrent())
	}
}
