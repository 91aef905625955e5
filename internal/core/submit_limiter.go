package core

// submit_limiter.go bounds how many import files are relayed to the backend
// at once. When every slot is taken a submission waits up to maxWait before
// failing with ErrTooManySubmissions. Drain blocks until in-flight relays
// finish, for graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySubmissions is returned when no relay slot frees up in time.
var ErrTooManySubmissions = errors.New("too many concurrent uploads, please try again later")

const (
	// DefaultMaxConcurrentSubmissions is used when the configured limit is not positive.
	DefaultMaxConcurrentSubmissions = 5

	// DefaultSubmitWait is used when the configured wait is not positive.
	DefaultSubmitWait = 30 * time.Second
)

// SubmitLimiter is a counting semaphore for backend relays.
type SubmitLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewSubmitLimiter allows at most maxConcurrent simultaneous relays.
func NewSubmitLimiter(maxConcurrent int, maxWait time.Duration) *SubmitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSubmissions
	}
	if maxWait <= 0 {
		maxWait = DefaultSubmitWait
	}

	idle := make(chan struct{})
	close(idle)

	return &SubmitLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// Every successful Acquire must be paired with Release.
func (l *SubmitLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.inc()
		return nil
	case <-timer.C:
		return ErrTooManySubmissions
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *SubmitLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.inc()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *SubmitLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *SubmitLimiter) inc() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// Drain blocks until no relay is active or ctx ends.
func (l *SubmitLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitLimiterStatus is a snapshot of the limiter for monitoring.
type SubmitLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *SubmitLimiter) Status() SubmitLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return SubmitLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
