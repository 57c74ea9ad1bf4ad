package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func testEvent() Event {
	return Event{
		Alert: domain.Alert{
			ID:        "A1",
			TargetID:  "T1",
			Type:      domain.AlertTypeAvailability,
			Message:   "target unavailable: connection refused",
			CreatedAt: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
		},
		TargetURL: "https://example.com",
	}
}

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if !strings.Contains(got, "Target DOWN") || !strings.Contains(got, "https://example.com") {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if err := s.Send(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestWebhook_PayloadShape(t *testing.T) {
	var got webhookPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(204)
	}))
	defer ts.Close()

	wh := NewWebhook(ts.URL)
	if err := wh.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got.Type != domain.AlertTypeAvailability || got.TargetID != "T1" ||
		got.TargetURL != "https://example.com" || got.Timestamp == "" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestMulti_AggregatesErrorsAndKeepsSending(t *testing.T) {
	bad := NewWebhook("") // nil, skipped
	var sent int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent++
		w.WriteHeader(200)
	}))
	defer ts.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer failing.Close()

	m := Multi{bad, NewWebhook(failing.URL), NewWebhook(ts.URL)}
	err := m.Send(context.Background(), testEvent())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if sent != 1 {
		t.Fatalf("healthy channel should still receive the event, sent=%d", sent)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("aggregate error should carry the failing channel: %v", err)
	}
}
