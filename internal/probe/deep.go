package probe

import (
	"context"
	"errors"
)

// ErrDeepUnavailable is returned by the absent deep-probe variant. Callers
// treat it as "no deep diagnostics this round", never as a failed check.
var ErrDeepUnavailable = errors.New("deep probe unavailable")

// DeepResult is what the browser-based probe observed. Available already
// folds the DOM-ready requirement in: a page whose document never became
// ready is not available even when the HTTP status looked fine. JS errors do
// not affect Available; they only clear JSHealthy.
type DeepResult struct {
	Available        bool
	StatusCode       int
	LatencyMS        float64
	DOMReady         bool
	JSHealthy        bool
	JSErrors         []string
	ConsoleErrors    int
	DOMContentLoaded *float64 // ms
	PageLoad         *float64 // ms
	FirstPaint       *float64 // ms
	FailedResources  int
	Message          string
}

// DeepChecker is the optional slow probe. Unlike Checker it may fail with an
// error (a broken browser is an operational problem, not an availability
// signal); callers must isolate such failures from the lightweight result.
type DeepChecker interface {
	Check(ctx context.Context, target string) (DeepResult, error)
}

// NoDeep is the explicit "absent" deep-probe variant, selected when browser
// checks are disabled process-wide. Keeping it a real implementation keeps
// the orchestrator's merge rule total without nil checks sprinkled around.
type NoDeep struct{}

func (NoDeep) Check(ctx context.Context, target string) (DeepResult, error) {
	return DeepResult{}, ErrDeepUnavailable
}
