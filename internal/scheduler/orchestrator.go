package scheduler

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
)

// Runner executes one round for one target snapshot. The supervisor depends
// on this interface so tests can script outcomes.
type Runner interface {
	Run(ctx context.Context, t *domain.Target) domain.CheckOutcome
}

// Orchestrator runs the lightweight probe, optionally the deep probe, and
// merges the two into one CheckOutcome. It never returns an error: probe
// failures of any kind are data in the outcome, and a broken deep probe can
// only cost diagnostics, never the lightweight result.
type Orchestrator struct {
	Logger *zap.Logger
	Light  probe.Checker
	Deep   probe.DeepChecker
}

func NewOrchestrator(logger *zap.Logger, light probe.Checker, deep probe.DeepChecker) *Orchestrator {
	if deep == nil {
		deep = probe.NoDeep{}
	}
	return &Orchestrator{Logger: logger, Light: light, Deep: deep}
}

// Close releases resources held by the deep probe, if it holds any.
func (o *Orchestrator) Close() error {
	if c, ok := o.Deep.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (o *Orchestrator) Run(ctx context.Context, t *domain.Target) domain.CheckOutcome {
	timeout := t.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	light := o.Light.Check(lctx, t.URL)
	cancel()

	out := domain.CheckOutcome{
		TargetID:  t.ID,
		Available: light.Success,
		LatencyMS: light.LatencyMS,
		Reason:    light.Message,
		CheckedAt: time.Now().UTC(),
	}
	if light.StatusCode != 0 {
		status := light.StatusCode
		out.HTTPStatus = &status
	}

	if !t.DeepCheckEnabled || t.URL == "" {
		return out
	}

	deep := o.runDeep(ctx, t)
	if deep == nil {
		return out
	}
	out.Deep = deep

	// Merge rule: the round is available only when both probes agree. A page
	// whose DOM never became ready is down even if the socket said 200.
	if !deep.DOMReady {
		out.Available = false
		out.Reason = "DOM did not load"
	} else if !deep.Available {
		out.Available = false
		if deep.Error != "" {
			out.Reason = deep.Error
		}
	}

	// The deep probe's own timing reflects real rendering cost; prefer it,
	// but only when the probe actually completed.
	if deep.Error == "" && deep.LatencyMS > 0 {
		out.LatencyMS = deep.LatencyMS
	}
	return out
}

// runDeep isolates the deep probe completely: its own timeout, errors
// reduced to a degraded diagnostics record, and panics contained.
func (o *Orchestrator) runDeep(ctx context.Context, t *domain.Target) (diag *domain.DeepDiagnostics) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("deep_probe_panic",
				zap.String("target_id", string(t.ID)),
				zap.Any("panic", r),
			)
			diag = &domain.DeepDiagnostics{
				Available: true, // unknown; must not flip availability
				DOMReady:  true,
				JSHealthy: true,
				Error:     fmt.Sprintf("deep probe panic: %v", r),
			}
		}
	}()

	timeout := t.DeepCheckTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := o.Deep.Check(dctx, t.URL)
	if err == probe.ErrDeepUnavailable {
		return nil
	}
	if err != nil {
		o.Logger.Warn("deep_probe_error",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		return &domain.DeepDiagnostics{
			Available: true, // unknown; must not flip availability
			DOMReady:  true,
			JSHealthy: true,
			LatencyMS: res.LatencyMS,
			Error:     err.Error(),
		}
	}

	d := domain.DeepDiagnostics{
		Available:        res.Available,
		LatencyMS:        res.LatencyMS,
		DOMReady:         res.DOMReady,
		JSHealthy:        res.JSHealthy,
		JSErrors:         res.JSErrors,
		ConsoleErrors:    res.ConsoleErrors,
		DOMContentLoaded: res.DOMContentLoaded,
		PageLoad:         res.PageLoad,
		FirstPaint:       res.FirstPaint,
		FailedResources:  res.FailedResources,
		Error:            res.Message,
	}
	if res.StatusCode != 0 {
		status := res.StatusCode
		d.HTTPStatus = &status
	}
	return &d
}
