package domain

import "time"

type TargetID string

// Target is a monitored site together with its per-target schedule and
// alerting settings. The scheduler re-reads the target every round, so edits
// made through the registry take effect without a restart (interval and
// deep-check changes excepted; those need a loop restart).
type Target struct {
	ID               TargetID      `json:"id"`
	URL              string        `json:"url"`
	Active           bool          `json:"active"`
	CheckInterval    time.Duration `json:"check_interval"`
	ProbeTimeout     time.Duration `json:"probe_timeout"`
	DeepCheckTimeout time.Duration `json:"deep_check_timeout"`
	AlertThreshold   int           `json:"alert_threshold"`
	DeepCheckEnabled bool          `json:"deep_check_enabled"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CheckOutcome is the merged result of one round (lightweight probe plus the
// optional deep probe). It is produced once per round and never mutated.
type CheckOutcome struct {
	TargetID   TargetID         `json:"target_id"`
	Available  bool             `json:"available"`
	HTTPStatus *int             `json:"http_status"` // nil for transport/DNS errors
	LatencyMS  float64          `json:"latency_ms"`
	Reason     string           `json:"reason,omitempty"`
	Deep       *DeepDiagnostics `json:"deep,omitempty"`
	CheckedAt  time.Time        `json:"checked_at"`
}

// DeepDiagnostics carries what the browser-based probe saw. Only present when
// the deep check ran for the round.
type DeepDiagnostics struct {
	Available        bool     `json:"available"`
	HTTPStatus       *int     `json:"http_status"`
	LatencyMS        float64  `json:"latency_ms"`
	DOMReady         bool     `json:"dom_ready"`
	JSHealthy        bool     `json:"js_healthy"`
	JSErrors         []string `json:"js_errors,omitempty"`
	ConsoleErrors    int      `json:"console_errors"`
	DOMContentLoaded *float64 `json:"dom_content_loaded_ms"`
	PageLoad         *float64 `json:"page_load_ms"`
	FirstPaint       *float64 `json:"first_contentful_paint_ms"`
	FailedResources  int      `json:"failed_resources"`
	Error            string   `json:"error,omitempty"`
}
