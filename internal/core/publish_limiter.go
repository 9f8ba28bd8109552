package core

// publish_limiter.go bounds how many dataset publishes run at once.
//
// A publish holds the whole table in memory, fetches a token and sends one
// large POST. Slots are tokens in a buffered channel; a caller that finds
// none free waits up to maxWait and then gets ErrTooManyPublishes. Shutdown
// calls WaitForDrain, which returns as soon as the last slot is released.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyPublishes is returned when every publish slot stays occupied for
// longer than the limiter's wait time.
var ErrTooManyPublishes = errors.New("too many publishes in progress, please try again later")

// DefaultMaxConcurrentPublishes is the slot count used when none is configured.
const DefaultMaxConcurrentPublishes = 2

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// PublishLimiter caps concurrent publishes.
type PublishLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewPublishLimiter allows at most maxConcurrent publishes at once.
// Non-positive arguments use the defaults.
func NewPublishLimiter(maxConcurrent int, maxWait time.Duration) *PublishLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentPublishes
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &PublishLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a publish slot. The caller must call Release when done.
// A cancelled ctx wins over the limiter's own timeout.
func (l *PublishLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case l.slots <- struct{}{}:
	default:
		timer := time.NewTimer(l.maxWait)
		defer timer.Stop()

		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrTooManyPublishes
		}
	}

	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
	return nil
}

// Release frees a slot taken by Acquire.
func (l *PublishLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// WaitForDrain blocks until no publish is in flight or ctx is done.
func (l *PublishLimiter) WaitForDrain(ctx context.Context) error {
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

// PublishLimiterStatus is a snapshot of the limiter for the status endpoint.
type PublishLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *PublishLimiter) Status() PublishLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return PublishLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
