package worker

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how long Acquire sleeps between slot checks.
const DefaultPollInterval = 100 * time.Millisecond

// RateLimiter bounds outbound provider requests.
type RateLimiter interface {
	// Acquire blocks until a slot is taken (true) or maxWait elapses (false).
	Acquire(ctx context.Context, maxWait time.Duration) bool
}

// WindowRateLimiter is a fixed-window counter aligned to wall-clock
// minutes. Up to limit requests pass per minute; a caller straddling a
// minute boundary can see two full bursts back to back.
type WindowRateLimiter struct {
	mu           sync.Mutex
	limit        int
	windowStart  time.Time
	count        int
	pollInterval time.Duration
	now          func() time.Time
}

// NewWindowRateLimiter creates a limiter allowing perMinute requests per
// wall-clock minute.
func NewWindowRateLimiter(perMinute int) *WindowRateLimiter {
	now := func() time.Time { return time.Now().UTC() }
	return &WindowRateLimiter{
		limit:        perMinute,
		windowStart:  now().Truncate(time.Minute),
		pollInterval: DefaultPollInterval,
		now:          now,
	}
}

// Acquire polls for a slot every pollInterval. The lock is only held for
// the check, never across the sleep.
func (l *WindowRateLimiter) Acquire(ctx context.Context, maxWait time.Duration) bool {
	start := time.Now()
	for {
		if l.tryAcquire() {
			return true
		}
		if time.Since(start) >= maxWait {
			return false
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (l *WindowRateLimiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if minute := l.now().Truncate(time.Minute); !minute.Equal(l.windowStart) {
		l.windowStart = minute
		l.count = 0
	}
	if l.count < l.limit {
		l.count++
		return true
	}
	return false
}
