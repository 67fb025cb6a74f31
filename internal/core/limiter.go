package core

// limiter.go bounds how many imports run at once.
//
// Slots are a buffered channel. A caller that finds every slot taken waits up
// to maxWait and then gets ErrTooManyUploads. Each successful Acquire returns
// a release func; calling it more than once is harmless. Drain waits for
// every held slot to be released, which is what shutdown uses.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTooManyUploads is returned when no import slot frees up within the
// wait time. Clients should retry after a short delay.
var ErrTooManyUploads = errors.New("too many concurrent imports, please try again later")

const (
	// DefaultMaxConcurrentImports is used when the configured limit is not positive.
	DefaultMaxConcurrentImports = 4
	// DefaultMaxWaitTime is used when the configured wait is not positive.
	DefaultMaxWaitTime = 15 * time.Second
)

// Limiter caps concurrent imports.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	waiting atomic.Int64

	mu   sync.Mutex
	held int
	idle chan struct{} // closed when held drops to zero
}

// NewLimiter allows at most maxConcurrent imports, each waiting at most
// maxWait for a slot.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The returned func gives it back and must be called
// once the import finishes. ctx cancellation is reported as ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.slots <- struct{}{}:
		return l.hold(), nil
	default:
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return l.hold(), nil
	case <-timer.C:
		return nil, ErrTooManyUploads
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes a slot without waiting. ok is false when none is free.
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	select {
	case l.slots <- struct{}{}:
		return l.hold(), true
	default:
		return nil, false
	}
}

func (l *Limiter) hold() func() {
	l.mu.Lock()
	if l.held == 0 {
		l.idle = make(chan struct{})
	}
	l.held++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held--
			if l.held == 0 {
				close(l.idle)
			}
			l.mu.Unlock()
			<-l.slots
		})
	}
}

// Drain blocks until every held slot is released or ctx is done.
func (l *Limiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	if l.held == 0 {
		l.mu.Unlock()
		return nil
	}
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is a snapshot of the limiter for the health endpoint.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	Waiting       int64 `json:"waiting"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// Status reports current slot usage.
func (l *Limiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		Waiting:       l.waiting.Load(),
		MaxConcurrent: cap(l.slots),
	}
}
