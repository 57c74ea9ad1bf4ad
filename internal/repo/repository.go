package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// ErrNotFound is returned by Get/Update/Delete when the target id does not
// resolve.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any DB adapter later.

// TargetStore is the target registry. The scheduler reads a fresh snapshot
// every round, so implementations must not hand out shared mutable state.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]*domain.Target, error)
	ListActive(ctx context.Context) ([]*domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) error
	Delete(ctx context.Context, id domain.TargetID) error
}

// ResultStore persists one record per completed round.
type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckOutcome) error
	ListByTarget(ctx context.Context, id domain.TargetID, limit int) ([]*domain.CheckOutcome, error)
}

// AlertStore persists alert/recovery records. Insert assigns the ID.
type AlertStore interface {
	Insert(ctx context.Context, a *domain.Alert) error
	ListAlerts(ctx context.Context, id domain.TargetID, limit int) ([]*domain.Alert, error)
}
