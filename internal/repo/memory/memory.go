package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store is the in-memory adapter for all three ports. Default when no
// DATABASE_URL is configured; also what most tests run against.
type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]domain.Target
	results []domain.CheckOutcome
	alerts  []domain.Alert
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]domain.Target),
		results: make([]domain.CheckOutcome, 0, 128),
	}
}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.targets[t.ID] = *t
	return nil
}

func (m *Store) List(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		tt := t
		out = append(out, &tt)
	}
	return out, nil
}

func (m *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if !t.Active {
			continue
		}
		tt := t
		out = append(out, &tt)
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	tt := t
	return &tt, nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	m.targets[t.ID] = *t
	return nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, r *domain.CheckOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *r)
	return nil
}

func (m *Store) ListByTarget(ctx context.Context, id domain.TargetID, limit int) ([]*domain.CheckOutcome, error) {
	if limit < 0 {
		limit = 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.CheckOutcome, 0, limit)
	// newest first
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].TargetID != id {
			continue
		}
		r := m.results[i]
		out = append(out, &r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- AlertStore ----

func (m *Store) Insert(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *Store) ListAlerts(ctx context.Context, id domain.TargetID, limit int) ([]*domain.Alert, error) {
	if limit < 0 {
		limit = 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Alert, 0, limit)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].TargetID != id {
			continue
		}
		a := m.alerts[i]
		out = append(out, &a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
