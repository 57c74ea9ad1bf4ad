package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Event is what gets delivered to a channel: the persisted alert plus the
// target URL for human-readable bodies.
type Event struct {
	Alert     domain.Alert
	TargetURL string
}

// Notifier delivers one event to one channel. Delivery is best-effort;
// the scheduler logs and forgets failures.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Multi fans an event out to every configured channel and aggregates the
// failures so the caller can log them all at once.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev Event) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, ev))
	}
	return errs
}

func title(ev Event) string {
	if ev.Alert.Type == domain.AlertTypeRecovery {
		return "🟢 Target RECOVERED"
	}
	return "🔴 Target DOWN"
}

func timestamp(ev Event) string {
	return ev.Alert.CreatedAt.Format(time.RFC3339)
}
