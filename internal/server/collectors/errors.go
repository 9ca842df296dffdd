package collectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
)

// CollectorError is returned by every collector. It matches
// common.ErrCollectorFailure and the underlying cause with errors.Is.
type CollectorError struct {
	Platform  string
	Op        string
	Retryable bool
	Err       error
}

func (e *CollectorError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Op, kind, e.Err)
}

func (e *CollectorError) Unwrap() []error {
	return []error{common.ErrCollectorFailure, e.Err}
}

// IsRetryable reports whether err is a collector failure worth retrying.
func IsRetryable(err error) bool {
	var ce *CollectorError
	return errors.As(err, &ce) && ce.Retryable
}

// statusError classifies a non-2xx response. rateExhausted marks a 403
// that GitHub sends once the quota is spent.
func statusError(platform, op string, status int, body []byte, rateExhausted bool) *CollectorError {
	detail := fmt.Sprintf("status %d: %s", status, truncate(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests || (status == http.StatusForbidden && rateExhausted):
		return &CollectorError{Platform: platform, Op: op, Retryable: true, Err: fmt.Errorf("%w: %s", common.ErrRateLimited, detail)}
	case status == http.StatusNotFound:
		return &CollectorError{Platform: platform, Op: op, Err: fmt.Errorf("%w: %s", common.ErrorNotFound, detail)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &CollectorError{Platform: platform, Op: op, Err: fmt.Errorf("%w: %s", common.ErrorUnauthorized, detail)}
	case status >= 500:
		return &CollectorError{Platform: platform, Op: op, Retryable: true, Err: errors.New(detail)}
	default:
		return &CollectorError{Platform: platform, Op: op, Err: errors.New(detail)}
	}
}

// transportError wraps a failed round trip. Network errors are retryable;
// a cancelled caller is not.
func transportError(ctx context.Context, platform, op string, err error) *CollectorError {
	return &CollectorError{Platform: platform, Op: op, Retryable: ctx.Err() == nil, Err: err}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
