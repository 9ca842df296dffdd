package collectors

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const anonymousQuota = 60

// rateLimiter tracks the X-RateLimit-Remaining/Reset pair and blocks
// before a call once the quota is spent.
type rateLimiter struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		remaining: anonymousQuota,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func (l *rateLimiter) wait(ctx context.Context) error {
	l.mu.Lock()
	var d time.Duration
	if l.remaining <= 1 {
		d = l.reset.Sub(l.now())
	}
	l.mu.Unlock()

	if d <= 0 {
		return nil
	}
	return l.sleep(ctx, d)
}

// update records quota headers; responses without them change nothing.
func (l *rateLimiter) update(h http.Header) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			l.remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			l.reset = time.Unix(ts, 0)
		}
	}
}

func (l *rateLimiter) exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining <= 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
