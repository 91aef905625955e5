package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSubmitLimiter_Defaults(t *testing.T) {
	l := NewSubmitLimiter(0, 0)
	st := l.Status()
	if st.MaxConcurrent != DefaultMaxConcurrentSubmissions || st.Available != DefaultMaxConcurrentSubmissions {
		t.Errorf("Status() = %+v", st)
	}
}

func TestSubmitLimiter_AcquireRelease(t *testing.T) {
	l := NewSubmitLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
	}

	if st := l.Status(); st.Active != 2 || st.Available != 0 {
		t.Errorf("Status() = %+v, want 2 active and 0 available", st)
	}

	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManySubmissions) {
		t.Errorf("Acquire() on full limiter = %v, want ErrTooManySubmissions", err)
	}
	if l.TryAcquire() {
		t.Error("TryAcquire() succeeded on full limiter")
	}

	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire() failed after Release")
	}
	l.Release()
	l.Release()

	if st := l.Status(); st.Active != 0 || st.Available != 2 {
		t.Errorf("Status() = %+v after releasing all", st)
	}
}

func TestSubmitLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewSubmitLimiter(1, time.Minute)
	if !l.TryAcquire() {
		t.Fatal("TryAcquire() failed on empty limiter")
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() = %v, want context.Canceled", err)
	}
}

func TestSubmitLimiter_Drain(t *testing.T) {
	l := NewSubmitLimiter(3, time.Second)

	if err := l.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() on idle limiter = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			l.Release()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Drain(ctx); err != nil {
		t.Errorf("Drain() = %v", err)
	}
	wg.Wait()

	if st := l.Status(); st.Active != 0 {
		t.Errorf("Active = %d after drain", st.Active)
	}
}

func TestSubmitLimiter_DrainTimeout(t *testing.T) {
	l := NewSubmitLimiter(1, time.Second)
	if !l.TryAcquire() {
		t.Fatal("TryAcquire() failed")
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() = %v, want DeadlineExceeded", err)
	}
}
