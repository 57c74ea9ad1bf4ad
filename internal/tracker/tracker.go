// Package tracker turns the per-target stream of check outcomes into
// alert/recovery events. One Entry exists per monitored target; it is
// created when monitoring starts and thrown away when monitoring stops,
// so a restart always begins a fresh episode.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type State int

const (
	// Healthy iff the consecutive-failure counter is zero.
	Healthy State = iota
	// Degraded: failing, but the threshold has not been crossed yet.
	Degraded
	// Alerting: the threshold was crossed and one alert was emitted for
	// this episode.
	Alerting
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Alerting:
		return "alerting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EventKind int

const (
	KindAlert EventKind = iota
	KindRecovery
)

// Event is emitted at most once per episode for each kind. Outcome is the
// round that caused the transition, so the publisher can describe it.
type Event struct {
	Kind     EventKind
	TargetID domain.TargetID
	Message  string
	Outcome  domain.CheckOutcome
	At       time.Time
}

// Entry is the mutable failure state for one target. Methods are safe for
// concurrent use; in practice the only contention is a manual check racing
// the scheduled loop.
type Entry struct {
	mu          sync.Mutex
	consecutive int
	state       State
}

func NewEntry() *Entry { return &Entry{} }

// Observe applies one outcome and returns the resulting event, or nil when
// the round caused no episode boundary. threshold is read fresh by the
// caller every round; a mid-episode change only affects this and later
// comparisons, never an already-raised alert.
func (e *Entry) Observe(out domain.CheckOutcome, threshold int) *Event {
	if threshold < 1 {
		threshold = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if out.Available {
		wasAlerting := e.state == Alerting
		e.consecutive = 0
		e.state = Healthy
		if wasAlerting {
			return &Event{
				Kind:     KindRecovery,
				TargetID: out.TargetID,
				Message:  recoveryMessage(out),
				Outcome:  out,
				At:       out.CheckedAt,
			}
		}
		return nil
	}

	e.consecutive++
	if e.consecutive >= threshold && e.state != Alerting {
		e.state = Alerting
		return &Event{
			Kind:     KindAlert,
			TargetID: out.TargetID,
			Message:  alertMessage(out),
			Outcome:  out,
			At:       out.CheckedAt,
		}
	}
	if e.state != Alerting {
		e.state = Degraded
	}
	return nil
}

// Snapshot returns the current state and consecutive failure count.
func (e *Entry) Snapshot() (State, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.consecutive
}

func alertMessage(out domain.CheckOutcome) string {
	reason := out.Reason
	if reason == "" {
		reason = "no response"
	}
	if out.HTTPStatus != nil {
		return fmt.Sprintf("target unavailable: %s (http %d)", reason, *out.HTTPStatus)
	}
	return fmt.Sprintf("target unavailable: %s", reason)
}

func recoveryMessage(out domain.CheckOutcome) string {
	return fmt.Sprintf("target recovered (%.0f ms)", out.LatencyMS)
}
