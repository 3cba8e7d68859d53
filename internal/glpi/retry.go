package glpi

import (
	"context"
	"time"
)

// retryPolicy retries transient failures with exponential backoff. It is
// shared by every outbound call (count queries and schema discovery use
// the same policy).
type retryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{MaxRetries: 2, BaseDelay: 250 * time.Millisecond}
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. fn reports via its second return value whether
// the failure is transient.
func (p retryPolicy) Do(ctx context.Context, fn func() (retryable bool, err error)) error {
	delay := p.BaseDelay
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
