package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store is the embedded SQLite adapter (pure-Go driver, no cgo). Unlike the
// postgres adapter it creates its own schema on open, so a file path is all
// the deployment needs.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id                 TEXT PRIMARY KEY,
	url                TEXT NOT NULL,
	active             INTEGER NOT NULL DEFAULT 1,
	check_interval_s   INTEGER NOT NULL,
	probe_timeout_s    INTEGER NOT NULL,
	deep_timeout_s     INTEGER NOT NULL,
	alert_threshold    INTEGER NOT NULL,
	deep_check_enabled INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS check_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id   TEXT NOT NULL,
	available   INTEGER NOT NULL,
	http_status INTEGER,
	latency_ms  REAL NOT NULL,
	reason      TEXT,
	deep        TEXT,
	checked_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_target_checked
	ON check_results (target_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	target_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_target_created
	ON alerts (target_id, created_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets
		   (id, url, active, check_interval_s, probe_timeout_s, deep_timeout_s,
		    alert_threshold, deep_check_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.ID), t.URL, t.Active,
		int(t.CheckInterval.Seconds()), int(t.ProbeTimeout.Seconds()), int(t.DeepCheckTimeout.Seconds()),
		t.AlertThreshold, t.DeepCheckEnabled, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, where string) ([]*domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, active, check_interval_s, probe_timeout_s, deep_timeout_s,
		        alert_threshold, deep_check_enabled, created_at
		   FROM targets `+where+` ORDER BY created_at DESC, id DESC`)
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

func scanTarget(row interface{ Scan(...any) error }) (*domain.Target, error) {
	var (
		t                        domain.Target
		id                       string
		intervalS, probeS, deepS int
	)
	if err := row.Scan(&id, &t.URL, &t.Active, &intervalS, &probeS, &deepS,
		&t.AlertThreshold, &t.DeepCheckEnabled, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.CheckInterval = time.Duration(intervalS) * time.Second
	t.ProbeTimeout = time.Duration(probeS) * time.Second
	t.DeepCheckTimeout = time.Duration(deepS) * time.Second
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	return s.list(ctx, "")
}

func (s *Store) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return s.list(ctx, "WHERE active = 1")
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, active, check_interval_s, probe_timeout_s, deep_timeout_s,
		        alert_threshold, deep_check_enabled, created_at
		   FROM targets WHERE id = ?`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets
		    SET url = ?, active = ?, check_interval_s = ?, probe_timeout_s = ?,
		        deep_timeout_s = ?, alert_threshold = ?, deep_check_enabled = ?
		  WHERE id = ?`,
		t.URL, t.Active,
		int(t.CheckInterval.Seconds()), int(t.ProbeTimeout.Seconds()), int(t.DeepCheckTimeout.Seconds()),
		t.AlertThreshold, t.DeepCheckEnabled, string(t.ID),
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckOutcome) error {
	var deep any
	if r.Deep != nil {
		b, err := json.Marshal(r.Deep)
		if err != nil {
			return fmt.Errorf("marshal deep diagnostics: %w", err)
		}
		deep = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO check_results
		   (target_id, available, http_status, latency_ms, reason, deep, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, available, http_status, latency_ms, reason, deep, checked_at
		   FROM check_results
		  WHERE target_id = ?
		  ORDER BY checked_at DESC
		  LIMIT ?`,
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
			deep sql.NullString
		)
		if err := rows.Scan(&tid, &r.Available, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &deep, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.TargetID = domain.TargetID(tid)
		if deep.Valid && deep.String != "" {
			var d domain.DeepDiagnostics
			if err := json.Unmarshal([]byte(deep.String), &d); err != nil {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, target_id, type, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, type, message, created_at
		   FROM alerts
		  WHERE target_id = ?
		  ORDER BY created_at DESC
		  LIMIT ?`,
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
