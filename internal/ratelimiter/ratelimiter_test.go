package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when the limiter sleeps, so tests cover
// minutes of budget in microseconds.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	return nil
}

func newTestLimiter(requestsPerMinute int, minimumDelay time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()

	l := New(requestsPerMinute, minimumDelay, slog.Default())
	l.now = clock.Now
	l.sleep = clock.Sleep

	return l, clock
}

func grantTimes(l *Limiter) []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]time.Time(nil), l.grants...)
}

func TestAcquireMinimumDelay(t *testing.T) {
	l, _ := newTestLimiter(100, 4*time.Second)

	for range 10 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	grants := grantTimes(l)
	for i := 1; i < len(grants); i++ {
		if spacing := grants[i].Sub(grants[i-1]); spacing < 4*time.Second {
			t.Fatalf("grants %d and %d only %s apart", i-1, i, spacing)
		}
	}
}

func TestAcquireWindowBudget(t *testing.T) {
	const requestsPerMinute = 15

	l, _ := newTestLimiter(requestsPerMinute, 4*time.Second)

	// The limiter prunes its internal log, so capture every grant
	// timestamp as it happens.
	all := make([]time.Time, 0, 20)
	for range 20 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		l.mu.Lock()
		all = append(all, l.lastGrant)
		l.mu.Unlock()
	}

	for _, anchor := range all {
		inWindow := 0
		for _, g := range all {
			if !g.After(anchor) && g.After(anchor.Add(-time.Minute)) {
				inWindow++
			}
		}
		if inWindow > requestsPerMinute {
			t.Fatalf("window ending at %s holds %d grants", anchor, inWindow)
		}
	}
}

func TestAcquireWindowForcesWait(t *testing.T) {
	// No minimum delay: the first requestsPerMinute grants are
	// immediate, the next one must wait out the window.
	l, clock := newTestLimiter(5, 0)

	start := clock.Now()
	for range 6 {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if elapsed := clock.Now().Sub(start); elapsed < time.Minute {
		t.Fatalf("expected the sixth grant to wait out the window, elapsed %s", elapsed)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestAcquireConcurrent(t *testing.T) {
	const (
		callers      = 10
		minimumDelay = 2 * time.Millisecond
	)

	l := New(1000, minimumDelay, slog.Default())

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	grants := grantTimes(l)
	if len(grants) != callers {
		t.Fatalf("expected %d grants, got %d", callers, len(grants))
	}
	for i := 1; i < len(grants); i++ {
		if spacing := grants[i].Sub(grants[i-1]); spacing < minimumDelay {
			t.Fatalf("concurrent grants %d and %d only %s apart", i-1, i, spacing)
		}
	}
}
