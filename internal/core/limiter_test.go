package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := NewLimiter(2, time.Second)
	ctx := context.Background()

	if got := l.Status(); got.Active != 0 || got.Available != 2 {
		t.Fatalf("initial status = %+v", got)
	}

	r1, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	r2, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := l.Status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("status when full = %+v", got)
	}

	r1()
	r1() // second call must not free another slot
	if got := l.Status().Active; got != 1 {
		t.Errorf("after double release, Active = %d, want 1", got)
	}

	r2()
	if got := l.Status().Active; got != 0 {
		t.Errorf("after all releases, Active = %d, want 0", got)
	}
}

func TestLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	start := time.Now()
	_, err = l.Acquire(context.Background())
	if !errors.Is(err, ErrTooManyUploads) {
		t.Fatalf("Acquire() error = %v, want ErrTooManyUploads", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, expected to wait for the timeout", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	release, _ := l.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
	if got := l.Status().Waiting; got != 0 {
		t.Errorf("Waiting = %d after cancelled wait, want 0", got)
	}
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := NewLimiter(1, time.Second)

	release, ok := l.TryAcquire()
	if !ok {
		t.Fatal("TryAcquire on empty limiter failed")
	}
	if _, ok := l.TryAcquire(); ok {
		t.Error("TryAcquire succeeded on full limiter")
	}
	release()
	if r, ok := l.TryAcquire(); !ok {
		t.Error("TryAcquire failed after release")
	} else {
		r()
	}
}

func TestLimiter_UnblocksWaiter(t *testing.T) {
	l := NewLimiter(1, time.Second)
	release, _ := l.Acquire(context.Background())

	got := make(chan error, 1)
	go func() {
		r, err := l.Acquire(context.Background())
		if err == nil {
			r()
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case err := <-got:
		if err != nil {
			t.Errorf("waiter got %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not unblocked")
	}
}

func TestLimiter_ConcurrentNeverExceedsMax(t *testing.T) {
	const max = 3
	l := NewLimiter(max, 5*time.Second)

	var (
		wg      sync.WaitGroup
		current atomic.Int32
		peak    atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > max {
		t.Errorf("peak concurrency = %d, want <= %d", p, max)
	}
}

func TestLimiter_Drain(t *testing.T) {
	l := NewLimiter(2, time.Second)
	release, _ := l.Acquire(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Drain(ctx); err != nil {
		t.Errorf("Drain() error = %v", err)
	}
}

func TestLimiter_DrainTimeout(t *testing.T) {
	l := NewLimiter(1, time.Second)
	release, _ := l.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want DeadlineExceeded", err)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if got := l.Status().MaxConcurrent; got != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}
	if l.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultMaxWaitTime)
	}
}
