package probe

import "context"

// CheckResult is the unified result of a single lightweight probe.
//
// StatusCode is the HTTP status when one was received; 0 for transport/DNS
// errors. Probes never return a Go error: a failed check is data, not an
// exception, so the scheduler can treat every round uniformly.
type CheckResult struct {
	Success    bool
	StatusCode int
	LatencyMS  float64
	Message    string
}

// Checker performs a single bounded-time availability check for a target URL.
// Implementations must honor ctx cancellation and deadlines.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
