package probe

import (
	"context"
	"time"
)

// RetryChecker re-runs the inner checker on failure. The backoff sleep is
// cancellable so a stopping scheduler never waits out a retry series.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Success {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	// annotate message so a retry series is visible in persisted outcomes
	last.Message = last.Message + " (after retries)"
	return last
}
