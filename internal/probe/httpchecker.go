package probe

import (
	"context"
	"net/http"
	"time"
)

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return CheckResult{Success: false, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return CheckResult{Success: false, Message: err.Error(), LatencyMS: sinceMS(start)}
	}
	resp.Body.Close()

	// Some servers reject HEAD; fall back to GET before judging.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		req2, err2 := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err2 != nil {
			return CheckResult{Success: false, Message: err2.Error(), LatencyMS: sinceMS(start)}
		}
		resp2, err2 := h.Client.Do(req2)
		if err2 != nil {
			return CheckResult{Success: false, Message: err2.Error(), LatencyMS: sinceMS(start)}
		}
		resp2.Body.Close()
		resp = resp2
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return CheckResult{
		Success:    success,
		StatusCode: resp.StatusCode,
		LatencyMS:  sinceMS(start),
		Message:    resp.Status,
	}
}

func sinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
