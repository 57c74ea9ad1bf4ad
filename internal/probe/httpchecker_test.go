package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func checkAgainst(t *testing.T, handler http.HandlerFunc, timeout time.Duration) CheckResult {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	return NewHTTPChecker(timeout).Check(context.Background(), s.URL)
}

func TestHTTPChecker_HealthySite(t *testing.T) {
	out := checkAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}, 2*time.Second)

	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPChecker_ServerError(t *testing.T) {
	out := checkAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}, 2*time.Second)

	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", out.StatusCode)
	}
}

func TestHTTPChecker_HeadRejectedFallsBackToGet(t *testing.T) {
	var gets int32
	out := checkAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			atomic.AddInt32(&gets, 1)
			w.WriteHeader(200)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}, 2*time.Second)

	if atomic.LoadInt32(&gets) != 1 {
		t.Fatalf("want exactly one GET retry, got %d", gets)
	}
	if !out.Success {
		t.Fatalf("want success after GET fallback, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200 from GET, got %d", out.StatusCode)
	}
}

func TestHTTPChecker_HeadOnlySiteStillFails(t *testing.T) {
	// 405 on both methods means the site really is refusing us
	out := checkAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}, 2*time.Second)

	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("want status 405, got %d", out.StatusCode)
	}
}

func TestHTTPChecker_TimeoutSetsStatusZero(t *testing.T) {
	out := checkAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}, 50*time.Millisecond)

	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Message == "" {
		t.Fatal("want non-empty error message")
	}
}
