package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

// Scheduler is the slice of the supervisor the API needs.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	StartMonitoring(ctx context.Context, id domain.TargetID) error
	StopMonitoring(id domain.TargetID)
	Status() scheduler.Status
	TargetStatus(id domain.TargetID) scheduler.TargetStatus
	CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error)
}

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Results repo.ResultStore
	Alerts  repo.AlertStore
	Sched   Scheduler
	SSL     *probe.SSLChecker
}

func NewServer(l *zap.Logger, ts repo.TargetStore, rs repo.ResultStore, as repo.AlertStore, sch Scheduler) *Server {
	return &Server{
		Logger:  l,
		Targets: ts,
		Results: rs,
		Alerts:  as,
		Sched:   sch,
		SSL:     probe.NewSSLChecker(10 * time.Second),
	}
}

// Router wires the full API surface. Reads require any configured key,
// mutations require an admin key; with no keys configured everything is open
// (local dev).
func (s *Server) Router(keys middleware.Keys, allowedOrigins []string, ratePerMin int) http.Handler {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "X-API-Key", "Content-Type"},
			AllowCredentials: false,
		}))
	}
	r.Use(middleware.RateLimit(ratePerMin, ratePerMin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAny(keys))
			r.Get("/targets", s.handleListTargets)
			r.Get("/targets/{id}", s.handleGetTarget)
			r.Get("/targets/{id}/results", s.handleListResults)
			r.Get("/targets/{id}/alerts", s.handleListAlerts)
			r.Get("/targets/{id}/ssl", s.handleSSLStatus)
			r.Get("/scheduler/status", s.handleSchedulerStatus)
			r.Get("/scheduler/targets/{id}/status", s.handleTargetStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(keys))
			r.Post("/targets", s.handleAddTarget)
			r.Put("/targets/{id}", s.handleUpdateTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
			r.Post("/targets/{id}/check", s.handleCheckNow)
			r.Post("/scheduler/start", s.handleSchedulerStart)
			r.Post("/scheduler/stop", s.handleSchedulerStop)
			r.Post("/scheduler/targets/{id}/start", s.handleStartMonitoring)
			r.Post("/scheduler/targets/{id}/stop", s.handleStopMonitoring)
		})
	})

	return r
}

// targetPayload is the write shape for targets. Durations are whole seconds;
// omitted fields keep server defaults (add) or the stored value (update).
type targetPayload struct {
	URL               string `json:"url"`
	Active            *bool  `json:"active"`
	CheckIntervalS    *int   `json:"check_interval_s"`
	ProbeTimeoutS     *int   `json:"probe_timeout_s"`
	DeepCheckTimeoutS *int   `json:"deep_check_timeout_s"`
	AlertThreshold    *int   `json:"alert_threshold"`
	DeepCheckEnabled  *bool  `json:"deep_check_enabled"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	norm, err := normalizeURL(p.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	for _, t := range existing {
		if t.URL == norm {
			writeError(w, http.StatusConflict, "target already exists")
			return
		}
	}

	t := &domain.Target{
		URL:            norm,
		Active:         true,
		CheckInterval:  60 * time.Second,
		ProbeTimeout:   10 * time.Second,
		AlertThreshold: 3,
		CreatedAt:      time.Now().UTC(),
	}
	applyPayload(t, &p)
	if err := s.Targets.Add(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	if t.Active {
		if err := s.Sched.StartMonitoring(r.Context(), t.ID); err != nil {
			s.Logger.Warn("start_monitoring_error",
				zap.String("target_id", string(t.ID)),
				zap.Error(err),
			)
		}
	}

	s.Logger.Info("added_target",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Bool("active", t.Active),
	)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.Targets.Get(r.Context(), targetID(r))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTarget edits target settings. A monitored target's loop is
// restarted so the new interval and deep-check settings apply; this resets
// its failure state (stop-then-start contract).
func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id := targetID(r)
	t, err := s.Targets.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}

	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.URL != "" {
		norm, err := normalizeURL(p.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t.URL = norm
	}
	applyPayload(t, &p)

	if err := s.Targets.Update(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "update error")
		return
	}

	monitored := s.Sched.TargetStatus(id).Monitored
	switch {
	case t.Active && monitored:
		if err := s.Sched.StartMonitoring(r.Context(), id); err != nil {
			s.Logger.Warn("restart_monitoring_error", zap.String("target_id", string(id)), zap.Error(err))
		}
	case t.Active && !monitored && s.Sched.Status().Running:
		if err := s.Sched.StartMonitoring(r.Context(), id); err != nil {
			s.Logger.Warn("start_monitoring_error", zap.String("target_id", string(id)), zap.Error(err))
		}
	case !t.Active && monitored:
		s.Sched.StopMonitoring(id)
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := targetID(r)
	s.Sched.StopMonitoring(id)
	err := s.Targets.Delete(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	out, err := s.Sched.CheckNow(r.Context(), targetID(r))
	if errors.Is(err, scheduler.ErrTargetNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "check error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.ListByTarget(r.Context(), targetID(r), limitParam(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Alerts.ListAlerts(r.Context(), targetID(r), limitParam(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleSSLStatus inspects the target's certificate on demand. Works only
// for https targets; other schemes return the inspection error as data.
func (s *Server) handleSSLStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.Targets.Get(r.Context(), targetID(r))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}
	writeJSON(w, http.StatusOK, s.SSL.Check(r.Context(), t.URL))
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Sched.Start(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "start error")
		return
	}
	writeJSON(w, http.StatusOK, s.Sched.Status())
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.Sched.Stop(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "stop error")
		return
	}
	writeJSON(w, http.StatusOK, s.Sched.Status())
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sched.Status())
}

func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	id := targetID(r)
	err := s.Sched.StartMonitoring(r.Context(), id)
	if errors.Is(err, scheduler.ErrTargetNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "start error")
		return
	}
	writeJSON(w, http.StatusOK, s.Sched.TargetStatus(id))
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	id := targetID(r)
	s.Sched.StopMonitoring(id)
	writeJSON(w, http.StatusOK, s.Sched.TargetStatus(id))
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sched.TargetStatus(targetID(r)))
}

func targetID(r *http.Request) domain.TargetID {
	return domain.TargetID(chi.URLParam(r, "id"))
}

func applyPayload(t *domain.Target, p *targetPayload) {
	if p.Active != nil {
		t.Active = *p.Active
	}
	if p.CheckIntervalS != nil && *p.CheckIntervalS > 0 {
		t.CheckInterval = time.Duration(*p.CheckIntervalS) * time.Second
	}
	if p.ProbeTimeoutS != nil && *p.ProbeTimeoutS > 0 {
		t.ProbeTimeout = time.Duration(*p.ProbeTimeoutS) * time.Second
	}
	if p.DeepCheckTimeoutS != nil && *p.DeepCheckTimeoutS > 0 {
		t.DeepCheckTimeout = time.Duration(*p.DeepCheckTimeoutS) * time.Second
	}
	if p.AlertThreshold != nil && *p.AlertThreshold > 0 {
		t.AlertThreshold = *p.AlertThreshold
	}
	if p.DeepCheckEnabled != nil {
		t.DeepCheckEnabled = *p.DeepCheckEnabled
	}
}

// normalizeURL validates the scheme and canonicalizes host case and a bare
// trailing slash so duplicates compare equal.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("url must be http or https")
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "/" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = ""
	}
	return u.String(), nil
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
