package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store is the pgx-backed adapter. Schema is expected to exist (migrations
// run out-of-band); durations are stored as whole seconds, deep diagnostics
// as jsonb.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets
		   (id, url, active, check_interval_s, probe_timeout_s, deep_timeout_s,
		    alert_threshold, deep_check_enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(t.ID), t.URL, t.Active,
		int(t.CheckInterval.Seconds()), int(t.ProbeTimeout.Seconds()), int(t.DeepCheckTimeout.Seconds()),
		t.AlertThreshold, t.DeepCheckEnabled, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

const targetCols = `id, url, active, check_interval_s, probe_timeout_s, deep_timeout_s,
	alert_threshold, deep_check_enabled, created_at`

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var (
		t                                    domain.Target
		id                                   string
		intervalS, probeS, deepS, thresholds int
	)
	if err := row.Scan(&id, &t.URL, &t.Active, &intervalS, &probeS, &deepS,
		&thresholds, &t.DeepCheckEnabled, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.CheckInterval = time.Duration(intervalS) * time.Second
	t.ProbeTimeout = time.Duration(probeS) * time.Second
	t.DeepCheckTimeout = time.Duration(deepS) * time.Second
	t.AlertThreshold = thresholds
	return &t, nil
}

func (s *Store) list(ctx context.Context, where string) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+targetCols+` FROM targets `+where+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	return s.list(ctx, "")
}

func (s *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return s.list(ctx, "WHERE active")
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+targetCols+` FROM targets WHERE id = $1`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET url = $2, active = $3, check_interval_s = $4, probe_timeout_s = $5,
		        deep_timeout_s = $6, alert_threshold = $7, deep_check_enabled = $8
		  WHERE id = $1`,
		string(t.ID), t.URL, t.Active,
		int(t.CheckInterval.Seconds()), int(t.ProbeTimeout.Seconds()), int(t.DeepCheckTimeout.Seconds()),
		t.AlertThreshold, t.DeepCheckEnabled,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckOutcome) error {
	var deep []byte
	if r.Deep != nil {
		b, err := json.Marshal(r.Deep)
		if err != nil {
			return fmt.Errorf("marshal deep diagnostics: %w", err)
		}
		deep = b
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_results
		   (target_id, available, http_status, latency_ms, reason, deep, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.TargetID), r.Available, r.HTTPStatus, r.LatencyMS, r.Reason, deep, r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) ListByTarget(ctx context.Context, id domain.TargetID, limit int) ([]*domain.CheckOutcome, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, available, http_status, latency_ms, reason, deep, checked_at
		   FROM check_results
		  WHERE target_id = $1
		  ORDER BY checked_at DESC
		  LIMIT $2`,
		string(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*domain.CheckOutcome
	for rows.Next() {
		var (
			r    domain.CheckOutcome
			tid  string
			deep []byte
		)
		if err := rows.Scan(&tid, &r.Available, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &deep, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.TargetID = domain.TargetID(tid)
		if len(deep) > 0 {
			var d domain.DeepDiagnostics
			if err := json.Unmarshal(deep, &d); err != nil {
				s.log.Warn("deep_diagnostics_decode_error", zap.String("target_id", tid), zap.Error(err))
			} else {
				r.Deep = &d
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

func (s *Store) Insert(ctx context.Context, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, target_id, type, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, string(a.TargetID), a.Type, a.Message, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, id domain.TargetID, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, type, message, created_at
		   FROM alerts
		  WHERE target_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		string(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var (
			a   domain.Alert
			tid string
		)
		if err := rows.Scan(&a.ID, &tid, &a.Type, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TargetID = domain.TargetID(tid)
		out = append(out, &a)
	}
	return out, rows.Err()
}
