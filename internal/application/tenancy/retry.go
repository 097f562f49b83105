package tenancy

import (
	"context"
	"time"
)

// RetryPolicy is the linear backoff schedule for transient resolution
// failures. With the defaults an attempt that keeps failing is retried after
// 1s, 2s and 3s before the session gives up.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy returns the default schedule
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Delay returns the wait before retry number n (1-based)
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(n)
}

// ShouldRetry reports whether retry number n is still allowed
func (p RetryPolicy) ShouldRetry(n int) bool {
	return n >= 1 && n <= p.MaxRetries
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
