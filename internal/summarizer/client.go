package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

const maxBackoffShift = 6

// Limiter gates outgoing requests under the run's rate budget.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client wraps a Provider with the rate gate, a per-call timeout, and
// bounded exponential-backoff retries around transient failures.
// Rate-limited responses wait and go again without consuming the
// attempt budget; permanent and content-filtered failures propagate
// after a single attempt.
type Client struct {
	provider       Provider
	limiter        Limiter
	maxAttempts    int
	baseBackoff    time.Duration
	requestTimeout time.Duration
	log            *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(
	provider Provider,
	limiter Limiter,
	maxAttempts int,
	baseBackoff time.Duration,
	requestTimeout time.Duration,
	log *slog.Logger,
) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Client{
		provider:       provider,
		limiter:        limiter,
		maxAttempts:    maxAttempts,
		baseBackoff:    baseBackoff,
		requestTimeout: requestTimeout,
		log:            log,
		sleep:          sleepContext,
	}
}

// Generate runs one chunk-summary exchange. It returns the generated
// text along with the number of attempts actually made, so the caller
// can record it against the chunk.
func (c *Client) Generate(ctx context.Context, req Request) (string, int, error) {
	attempts := 0
	transientFailures := 0

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", attempts, fmt.Errorf("acquire rate budget: %w", err)
		}

		attempts++
		text, err := c.call(ctx, req)
		if err == nil {
			return text, attempts, nil
		}

		c.log.WarnContext(ctx, "Generate attempt failed",
			"provider", c.provider.Name(),
			"attempt", attempts,
			"error", err)

		switch {
		case IsRateLimited(err):
			// Never terminal: wait out the budget and go again.
			if sleepErr := c.sleep(ctx, c.backoff(transientFailures)); sleepErr != nil {
				return "", attempts, sleepErr
			}
		case IsTransient(err):
			transientFailures++
			if transientFailures >= c.maxAttempts {
				return "", attempts, err
			}
			if sleepErr := c.sleep(ctx, c.backoff(transientFailures)); sleepErr != nil {
				return "", attempts, sleepErr
			}
		default:
			return "", attempts, err
		}
	}
}

// GenerateStream runs one streaming exchange, forwarding fragments to
// fn. A failure before the first fragment follows the normal retry
// path; a mid-stream failure surfaces immediately because the stream
// is not restartable and fragments were already delivered.
func (c *Client) GenerateStream(
	ctx context.Context,
	req Request,
	fn func(fragment string) error,
) (string, error) {
	transientFailures := 0

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", fmt.Errorf("acquire rate budget: %w", err)
		}

		delivered := 0
		wrapped := func(fragment string) error {
			delivered++
			if fn == nil {
				return nil
			}

			return fn(fragment)
		}

		text, err := c.callStream(ctx, req, wrapped)
		if err == nil {
			return text, nil
		}

		c.log.WarnContext(ctx, "Streaming attempt failed",
			"provider", c.provider.Name(),
			"deliveredFragments", delivered,
			"error", err)

		if delivered > 0 {
			return "", err
		}

		switch {
		case IsRateLimited(err):
			if sleepErr := c.sleep(ctx, c.backoff(transientFailures)); sleepErr != nil {
				return "", sleepErr
			}
		case IsTransient(err):
			transientFailures++
			if transientFailures >= c.maxAttempts {
				return "", err
			}
			if sleepErr := c.sleep(ctx, c.backoff(transientFailures)); sleepErr != nil {
				return "", sleepErr
			}
		default:
			return "", err
		}
	}
}

// CountTokens is a best-effort estimate: the provider's native count
// when it works, the local encoding otherwise.
func (c *Client) CountTokens(ctx context.Context, text string) int {
	n, err := c.provider.CountTokens(ctx, text)
	if err != nil || n <= 0 {
		return EstimateTokens(text)
	}

	return n
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	text, err := c.provider.Generate(callCtx, req)
	if err != nil {
		return "", c.normalize(ctx, err)
	}

	return text, nil
}

func (c *Client) callStream(
	ctx context.Context,
	req Request,
	fn func(fragment string) error,
) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	text, err := c.provider.GenerateStream(callCtx, req, fn)
	if err != nil {
		return "", c.normalize(ctx, err)
	}

	return text, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

// normalize keeps cancellation of the parent context distinct from the
// per-call timeout: the former propagates as-is, the latter is a
// transient timeout like any other.
func (c *Client) normalize(parent context.Context, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}

	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: TransientTimeout, Message: err.Error()}
	}

	return err
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

// backoff grows exponentially with jitter so concurrent workers do not
// retry in lockstep against the shared rate budget.
func (c *Client) backoff(failures int) time.Duration {
	shift := failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	d := c.baseBackoff << shift
	if d <= 0 {
		return 0
	}

	return d + time.Duration(rand.Float64()*float64(d)/2)
}
