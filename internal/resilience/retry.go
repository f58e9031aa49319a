package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Policy controls retry behavior for provider calls.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error should trigger another
	// attempt. When nil, IsTransient is used.
	Retryable func(error) bool
}

// DefaultPolicy suits LLM API calls where overload clears within
// seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Do runs fn, retrying transient failures with exponential backoff and
// full jitter. The last error is returned once attempts are exhausted.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "resilience: %s canceled", name)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := backoff(p, attempt)
		zap.L().Warn("transient failure, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "resilience: %s canceled", name)
		case <-time.After(delay):
		}
	}
	return eris.Wrapf(lastErr, "resilience: %s failed after %d attempts", name, p.MaxAttempts)
}

func backoff(p Policy, attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	// Full jitter spreads simultaneous retries apart.
	return time.Duration(rand.Int63n(int64(delay) + 1))
}
