package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for pacing outbound requests
type Limiter interface {
	// Allow reports whether a call may proceed right now and consumes the slot if so
	Allow() bool
	// Wait blocks until the next call may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets previous calls so the next one is immediate
	Reset()
}

// Interval enforces a minimum spacing between calls. The first call is immediate.
type Interval struct {
	every time.Duration
	mu    sync.Mutex
	lim   *rate.Limiter
}

// NewInterval creates a limiter allowing one call per every
func NewInterval(every time.Duration) *Interval {
	return &Interval{
		every: every,
		lim:   newLimiter(every),
	}
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

func (i *Interval) limiter() *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lim
}

// Allow checks if a call can proceed without waiting
func (i *Interval) Allow() bool {
	return i.limiter().Allow()
}

// Wait blocks until the interval since the previous call has elapsed
func (i *Interval) Wait(ctx context.Context) error {
	return i.limiter().Wait(ctx)
}

// Reset restores the limiter to its initial state
func (i *Interval) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lim = newLimiter(i.every)
}

// Every returns the configured spacing
func (i *Interval) Every() time.Duration {
	return i.every
}

// SlidingWindow allows at most maxRequests calls within any windowSize period
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// Wait blocks until a request is allowed or ctx is done
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		wait := 10 * time.Millisecond
		if len(sw.requests) > 0 {
			wait = sw.windowSize - time.Since(sw.requests[0])
		}
		sw.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset clears the request history
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the current window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}
