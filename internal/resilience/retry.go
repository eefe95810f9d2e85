package resilience

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy retries an operation a bounded number of times with
// exponential backoff. The zero value performs exactly one attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Doubled after
	// each subsequent attempt. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay. Default: 5s.
	MaxBackoff time.Duration
}

// Do runs fn until it succeeds, the attempt budget is exhausted, fn
// returns a non-retryable error, or ctx is cancelled. retryable decides
// whether a given error is worth another attempt; a nil retryable means
// nothing is retried. The last error seen is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || attempt >= attempts || retryable == nil || !retryable(err) {
			return err
		}

		slog.Debug("retrying after transient upstream failure",
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", backoff,
			"err", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
