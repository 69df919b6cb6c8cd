package broker

import (
	"context"
	"time"
)

// retryDelays is the shared retry policy (spec.md §9 open question (d)):
// up to 3 retries after the initial attempt, backing off 250ms, 500ms,
// then 1s between tries.
var retryDelays = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// withRetry runs fn, retrying on error per retryDelays until it succeeds
// or the attempts are exhausted. Returns the last error.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= len(retryDelays) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
}
