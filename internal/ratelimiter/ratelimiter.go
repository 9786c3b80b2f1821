// Package ratelimiter enforces the request budget against the
// generative API: a sliding one-minute window of granted requests plus
// a minimum delay between consecutive grants.
package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const window = time.Minute

// Limiter serializes grants under a mutex so no two callers can take
// the same vacant slot. Acquire blocks until both the window and the
// minimum delay permit a new request.
type Limiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	minimumDelay      time.Duration
	grants            []time.Time
	lastGrant         time.Time
	log               *slog.Logger

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(requestsPerMinute int, minimumDelay time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		minimumDelay:      minimumDelay,
		log:               log,
		now:               time.Now,
		sleep:             sleepContext,
	}
}

// Acquire blocks the caller until a request is permitted or ctx is
// cancelled. The grant timestamp is recorded before Acquire returns, so
// concurrent callers never observe the same free slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)

		wait := l.waitLocked(now)
		if wait <= 0 {
			l.grants = append(l.grants, now)
			l.lastGrant = now
			l.mu.Unlock()

			return nil
		}
		l.mu.Unlock()

		l.log.DebugContext(ctx, "Rate budget exhausted, waiting",
			"wait", wait,
			"requestsPerMinute", l.requestsPerMinute,
			"minimumDelay", l.minimumDelay)

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// pruneLocked drops grants that left the trailing window.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-window)

	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}

// waitLocked returns how long the caller must wait before the next
// grant is permitted; zero or less means it is permitted now.
func (l *Limiter) waitLocked(now time.Time) time.Duration {
	var wait time.Duration

	if !l.lastGrant.IsZero() {
		if d := l.minimumDelay - now.Sub(l.lastGrant); d > wait {
			wait = d
		}
	}

	if l.requestsPerMinute > 0 && len(l.grants) >= l.requestsPerMinute {
		oldest := l.grants[len(l.grants)-l.requestsPerMinute]
		if d := oldest.Add(window).Sub(now); d > wait {
			wait = d
		}
	}

	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
