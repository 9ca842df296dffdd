package collectors

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SleepsUntilResetWhenExhausted(t *testing.T) {
	now := time.Unix(1_000, 0)
	var slept time.Duration

	l := newRateLimiter()
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	require.NoError(t, l.wait(context.Background()))
	assert.Zero(t, slept, "fresh limiter does not wait")

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "1")
	h.Set("X-RateLimit-Reset", "1030")
	l.update(h)

	require.NoError(t, l.wait(context.Background()))
	assert.Equal(t, 30*time.Second, slept)
}

func TestRateLimiter_ResetInPastDoesNotWait(t *testing.T) {
	l := newRateLimiter()
	l.now = func() time.Time { return time.Unix(2_000, 0) }
	l.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected sleep")
		return nil
	}

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", "1000")
	l.update(h)

	require.NoError(t, l.wait(context.Background()))
	assert.True(t, l.exhausted())
}

func TestRateLimiter_MissingHeadersKeepState(t *testing.T) {
	l := newRateLimiter()
	l.update(http.Header{})
	assert.Equal(t, anonymousQuota, l.remaining)
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
