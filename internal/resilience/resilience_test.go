package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(3), "invoke", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(3), "invoke", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("api error 529: overloaded_error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(3), "invoke", func(ctx context.Context) error {
		calls++
		return errors.New("503 service unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := errors.New("invalid_request_error: model not found")
	err := Do(context.Background(), fastPolicy(3), "invoke", func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), "invoke", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"overloaded", errors.New("anthropic: overloaded_error"), true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("received 502 from upstream"), true},
		{"timeout text", errors.New("request timeout exceeded"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"bad request", errors.New("400 invalid_request_error"), false},
		{"auth", errors.New("401 authentication_error"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("primary", 3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow())
		cb.Failure()
	}

	assert.False(t, cb.Allow())
	assert.Equal(t, "open", cb.State())
}

func TestCircuitHalfOpensAfterCooldown(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cb := NewCircuitBreaker("primary", 1, time.Minute)
	cb.nowFunc = func() time.Time { return now }

	cb.Failure()
	require.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, "half-open", cb.State())

	cb.Success()
	assert.Equal(t, "closed", cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitReopensOnFailedProbe(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cb := NewCircuitBreaker("secondary", 2, time.Minute)
	cb.nowFunc = func() time.Time { return now }

	cb.Failure()
	cb.Failure()
	require.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, "open", cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("primary", 3, time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()
	cb.Failure()
	cb.Failure()

	assert.True(t, cb.Allow())
	assert.Equal(t, "closed", cb.State())
}
