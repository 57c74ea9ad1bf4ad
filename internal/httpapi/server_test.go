package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

// fakeSched records which supervisor operations the handlers invoke.
type fakeSched struct {
	mu         sync.Mutex
	running    bool
	monitoring map[domain.TargetID]bool
	started    []domain.TargetID
	stopped    []domain.TargetID
	checkErr   error
	outcome    domain.CheckOutcome
}

func newFakeSched() *fakeSched {
	return &fakeSched{monitoring: map[domain.TargetID]bool{}}
}

func (f *fakeSched) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeSched) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeSched) StartMonitoring(ctx context.Context, id domain.TargetID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitoring[id] = true
	f.started = append(f.started, id)
	return nil
}

func (f *fakeSched) StopMonitoring(id domain.TargetID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.monitoring, id)
	f.stopped = append(f.stopped, id)
}

func (f *fakeSched) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := scheduler.Status{
		Running:       f.running,
		ActiveTargets: []domain.TargetID{},
		FailureCounts: map[domain.TargetID]int{},
	}
	for id := range f.monitoring {
		st.ActiveTargets = append(st.ActiveTargets, id)
	}
	return st
}

func (f *fakeSched) TargetStatus(id domain.TargetID) scheduler.TargetStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return scheduler.TargetStatus{TargetID: id, Monitored: f.monitoring[id], State: "healthy"}
}

func (f *fakeSched) CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return domain.CheckOutcome{}, f.checkErr
	}
	out := f.outcome
	out.TargetID = id
	return out, nil
}

func setup(t *testing.T) (*httptest.Server, *memory.Store, *fakeSched) {
	t.Helper()
	store := memory.New()
	sched := newFakeSched()
	srv := NewServer(zap.NewNop(), store, store, store, sched)

	keys := middleware.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000))
	t.Cleanup(ts.Close)
	return ts, store, sched
}

func do(t *testing.T, method, url, key string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestAddTarget_OK_Duplicate_Invalid(t *testing.T) {
	ts, _, sched := setup(t)

	resp := do(t, http.MethodPost, ts.URL+"/api/targets", "adm_test",
		map[string]any{"url": "https://Example.com/", "check_interval_s": 30, "alert_threshold": 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	added := decode[domain.Target](t, resp)
	if added.URL != "https://example.com" {
		t.Fatalf("expected normalized URL, got %q", added.URL)
	}
	if added.CheckInterval != 30*time.Second || added.AlertThreshold != 2 {
		t.Fatalf("settings not applied: %+v", added)
	}
	if len(sched.started) != 1 || sched.started[0] != added.ID {
		t.Fatalf("expected monitoring started for new active target: %+v", sched.started)
	}

	// duplicate (different case, trailing slash) -> 409
	resp = do(t, http.MethodPost, ts.URL+"/api/targets", "adm_test",
		map[string]any{"url": "https://EXAMPLE.com"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 on duplicate, got %d", resp.StatusCode)
	}

	// invalid scheme -> 400
	resp = do(t, http.MethodPost, ts.URL+"/api/targets", "adm_test",
		map[string]any{"url": "ftp://bad"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 on invalid URL, got %d", resp.StatusCode)
	}
}

func TestAuth_ReadsAndMutations(t *testing.T) {
	ts, _, _ := setup(t)

	// no key -> 401 on reads
	resp := do(t, http.MethodGet, ts.URL+"/api/targets", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", resp.StatusCode)
	}

	// public key reads but cannot mutate
	resp = do(t, http.MethodGet, ts.URL+"/api/targets", "pub_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 with public key, got %d", resp.StatusCode)
	}
	resp = do(t, http.MethodPost, ts.URL+"/api/targets", "pub_test",
		map[string]any{"url": "https://example.com"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403 for public key mutation, got %d", resp.StatusCode)
	}
}

func TestGetUpdateDeleteTarget(t *testing.T) {
	ts, store, sched := setup(t)

	tgt := &domain.Target{URL: "https://example.com", Active: true, CheckInterval: time.Minute}
	if err := store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}
	base := fmt.Sprintf("%s/api/targets/%s", ts.URL, tgt.ID)

	resp := do(t, http.MethodGet, base, "pub_test", nil)
	got := decode[domain.Target](t, resp)
	if got.ID != tgt.ID {
		t.Fatalf("get returned wrong target: %+v", got)
	}

	// deactivating a monitored target stops its loop
	sched.monitoring[tgt.ID] = true
	active := false
	resp = do(t, http.MethodPut, base, "adm_test", map[string]any{"active": &active})
	updated := decode[domain.Target](t, resp)
	if updated.Active {
		t.Fatalf("expected inactive after update: %+v", updated)
	}
	if len(sched.stopped) != 1 || sched.stopped[0] != tgt.ID {
		t.Fatalf("expected StopMonitoring on deactivate: %+v", sched.stopped)
	}

	resp = do(t, http.MethodDelete, base, "adm_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, base, "pub_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCheckNowEndpoint(t *testing.T) {
	ts, store, sched := setup(t)

	status := 200
	sched.outcome = domain.CheckOutcome{Available: true, HTTPStatus: &status, LatencyMS: 12.5}

	tgt := &domain.Target{URL: "https://example.com", Active: true}
	if err := store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodPost, fmt.Sprintf("%s/api/targets/%s/check", ts.URL, tgt.ID), "adm_test", nil)
	out := decode[domain.CheckOutcome](t, resp)
	if !out.Available || out.TargetID != tgt.ID {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	sched.checkErr = scheduler.ErrTargetNotFound
	resp = do(t, http.MethodPost, ts.URL+"/api/targets/nope/check", "adm_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 for unknown target, got %d", resp.StatusCode)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	ts, store, _ := setup(t)

	tgt := &domain.Target{URL: "https://example.com", Active: true}
	if err := store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodPost, ts.URL+"/api/scheduler/start", "adm_test", nil)
	st := decode[scheduler.Status](t, resp)
	if !st.Running {
		t.Fatalf("expected running after start: %+v", st)
	}

	resp = do(t, http.MethodPost, fmt.Sprintf("%s/api/scheduler/targets/%s/start", ts.URL, tgt.ID), "adm_test", nil)
	tst := decode[scheduler.TargetStatus](t, resp)
	if !tst.Monitored {
		t.Fatalf("expected monitored: %+v", tst)
	}

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/scheduler/targets/%s/status", ts.URL, tgt.ID), "pub_test", nil)
	tst = decode[scheduler.TargetStatus](t, resp)
	if !tst.Monitored {
		t.Fatalf("status should report monitored: %+v", tst)
	}

	resp = do(t, http.MethodPost, fmt.Sprintf("%s/api/scheduler/targets/%s/stop", ts.URL, tgt.ID), "adm_test", nil)
	tst = decode[scheduler.TargetStatus](t, resp)
	if tst.Monitored {
		t.Fatalf("expected unmonitored after stop: %+v", tst)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/scheduler/stop", "adm_test", nil)
	st = decode[scheduler.Status](t, resp)
	if st.Running {
		t.Fatalf("expected stopped: %+v", st)
	}
}

func TestResultsAndAlertsListing(t *testing.T) {
	ts, store, _ := setup(t)

	tgt := &domain.Target{URL: "https://example.com", Active: true}
	if err := store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		out := domain.CheckOutcome{TargetID: tgt.ID, Available: i != 0, CheckedAt: time.Now().UTC()}
		if err := store.Append(context.Background(), &out); err != nil {
			t.Fatal(err)
		}
	}
	alert := domain.Alert{TargetID: tgt.ID, Type: domain.AlertTypeAvailability, Message: "down"}
	if err := store.Insert(context.Background(), &alert); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodGet, fmt.Sprintf("%s/api/targets/%s/results?limit=2", ts.URL, tgt.ID), "pub_test", nil)
	rows := decode[[]domain.CheckOutcome](t, resp)
	if len(rows) != 2 {
		t.Fatalf("limit not honored: got %d rows", len(rows))
	}

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/api/targets/%s/alerts", ts.URL, tgt.ID), "pub_test", nil)
	alerts := decode[[]domain.Alert](t, resp)
	if len(alerts) != 1 || alerts[0].Message != "down" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
}

func TestSSLStatusEndpoint(t *testing.T) {
	store := memory.New()
	sched := newFakeSched()
	srv := NewServer(zap.NewNop(), store, store, store, sched)
	srv.SSL = &probe.SSLChecker{Timeout: 2 * time.Second, SkipVerify: true}

	keys := middleware.Keys{Public: []string{"pub_test"}, Admin: []string{"adm_test"}}
	api := httptest.NewServer(srv.Router(keys, nil, 10_000))
	defer api.Close()

	tlsUpstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer tlsUpstream.Close()

	tgt := &domain.Target{URL: tlsUpstream.URL, Active: true}
	if err := store.Add(context.Background(), tgt); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodGet, fmt.Sprintf("%s/api/targets/%s/ssl", api.URL, tgt.ID), "pub_test", nil)
	info := decode[probe.SSLInfo](t, resp)
	if !info.Valid || info.NotAfter == nil || info.DaysRemaining <= 0 {
		t.Fatalf("certificate not inspected: %+v", info)
	}

	resp = do(t, http.MethodGet, api.URL+"/api/targets/nope/ssl", "pub_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 for unknown target, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts, _, _ := setup(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}
