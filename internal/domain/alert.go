package domain

import "time"

const (
	AlertTypeAvailability = "availability"
	AlertTypeRecovery     = "recovery"
)

// Alert is a persisted alert record. One "availability" alert opens an
// episode, one "recovery" alert closes it.
type Alert struct {
	ID        string    `json:"id"`
	TargetID  TargetID  `json:"target_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
