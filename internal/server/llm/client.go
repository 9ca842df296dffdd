// Package llm is the narrow chat-completion boundary used by extraction
// and newsletter generation.
package llm

import (
	"context"
	"time"
)

// Request is a single system+user completion.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Enabled reports whether c can be called at all. Clients that cannot tell
// are assumed enabled.
func Enabled(c Client) bool {
	if e, ok := c.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}

// WithTimeout bounds every call made through c. A deadline surfaces as an
// ordinary error so callers fall back as for any other failure.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (t *timeoutClient) Enabled() bool {
	return Enabled(t.next)
}

func (t *timeoutClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
