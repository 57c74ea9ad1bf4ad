package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/tracker"
)

// EventSink receives episode-boundary events from the loops. A returned
// error means the alert record could not be persisted and the round must be
// abandoned.
type EventSink interface {
	Publish(ctx context.Context, ev tracker.Event, targetURL string) error
}

// Publisher persists alert/recovery records and forwards them through the
// notification channels. Persistence failures propagate; delivery failures
// are logged and forgotten, never retried here.
type Publisher struct {
	Logger   *zap.Logger
	Alerts   repo.AlertStore
	Notifier notify.Notifier

	// NotifyTimeout bounds one delivery attempt. Zero means 10s.
	NotifyTimeout time.Duration
}

func NewPublisher(logger *zap.Logger, alerts repo.AlertStore, notifier notify.Notifier) *Publisher {
	return &Publisher{Logger: logger, Alerts: alerts, Notifier: notifier}
}

func (p *Publisher) Publish(ctx context.Context, ev tracker.Event, targetURL string) error {
	alertType := domain.AlertTypeAvailability
	if ev.Kind == tracker.KindRecovery {
		alertType = domain.AlertTypeRecovery
	}
	al := domain.Alert{
		TargetID:  ev.TargetID,
		Type:      alertType,
		Message:   ev.Message,
		CreatedAt: ev.At,
	}
	if err := p.Alerts.Insert(ctx, &al); err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}
	p.Logger.Info("alert_recorded",
		zap.String("target_id", string(al.TargetID)),
		zap.String("type", al.Type),
		zap.String("message", al.Message),
	)

	if p.Notifier == nil {
		return nil
	}
	timeout := p.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := p.Notifier.Send(nctx, notify.Event{Alert: al, TargetURL: targetURL}); err != nil {
		p.Logger.Warn("notify_error",
			zap.String("target_id", string(al.TargetID)),
			zap.String("type", al.Type),
			zap.Error(err),
		)
	}
	return nil
}
