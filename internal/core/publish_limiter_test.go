package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishLimiter_AcquireRelease(t *testing.T) {
	limiter := NewPublishLimiter(2, time.Second)
	ctx := context.Background()

	steps := []struct {
		name string
		op   func() error
		want PublishLimiterStatus
	}{
		{"idle", func() error { return nil }, PublishLimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}},
		{"first acquire", func() error { return limiter.Acquire(ctx) }, PublishLimiterStatus{Active: 1, Available: 1, MaxConcurrent: 2}},
		{"second acquire", func() error { return limiter.Acquire(ctx) }, PublishLimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}},
		{"first release", func() error { limiter.Release(); return nil }, PublishLimiterStatus{Active: 1, Available: 1, MaxConcurrent: 2}},
		{"second release", func() error { limiter.Release(); return nil }, PublishLimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}},
	}

	for _, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := limiter.Status(); got != step.want {
			t.Errorf("%s: Status() = %+v, want %+v", step.name, got, step.want)
		}
	}
}

func TestPublishLimiter_Defaults(t *testing.T) {
	limiter := NewPublishLimiter(0, 0)

	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentPublishes {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentPublishes)
	}
	if limiter.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, DefaultMaxWaitTime)
	}
}

func TestPublishLimiter_RejectsWhenFull(t *testing.T) {
	limiter := NewPublishLimiter(1, 100*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyPublishes) {
		t.Errorf("expected ErrTooManyPublishes, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("gave up too early: %v", elapsed)
	}
	if got := limiter.Status().Active; got != 1 {
		t.Errorf("a rejected caller changed Active to %d", got)
	}
}

func TestPublishLimiter_WaiterGetsFreedSlot(t *testing.T) {
	limiter := NewPublishLimiter(1, time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	got := make(chan error, 1)
	go func() { got <- limiter.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	limiter.Release()

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("waiting Acquire = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting Acquire did not get the released slot")
	}
	limiter.Release()
}

func TestPublishLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 2
	const callers = 8

	limiter := NewPublishLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var inside, peak atomic.Int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > maxConcurrent {
		t.Errorf("observed %d publishes at once, max %d", got, maxConcurrent)
	}
	if got := limiter.Status().Active; got != 0 {
		t.Errorf("final Active = %d, want 0", got)
	}
}

func TestPublishLimiter_ContextCancellation(t *testing.T) {
	limiter := NewPublishLimiter(1, 5*time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(cancelCtx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after context cancellation")
	}
}

func TestPublishLimiter_CancelledContextTakesNoSlot(t *testing.T) {
	limiter := NewPublishLimiter(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire with cancelled ctx = %v, want context.Canceled", err)
	}
	if got := limiter.Status().Available; got != 1 {
		t.Errorf("Available = %d, want 1", got)
	}
}

func TestPublishLimiter_WaitForDrain(t *testing.T) {
	limiter := NewPublishLimiter(2, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limiter.WaitForDrain(context.Background())
	}()

	limiter.Release()
	select {
	case <-drainDone:
		t.Fatal("WaitForDrain returned with a publish in flight")
	case <-time.After(50 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after the last release")
	}
}

func TestPublishLimiter_WaitForDrain_Idle(t *testing.T) {
	limiter := NewPublishLimiter(1, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain on idle limiter = %v, want nil", err)
	}

	// Busy again after draining once.
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer limiter.Release()

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := limiter.WaitForDrain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain = %v, want context.DeadlineExceeded", err)
	}
}
