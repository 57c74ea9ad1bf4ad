package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSLChecker_ReadsCertificate(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := &SSLChecker{Timeout: 2 * time.Second, SkipVerify: true}
	info := chk.Check(context.Background(), s.URL)

	if info.Error != "" {
		t.Fatalf("unexpected error: %q", info.Error)
	}
	if !info.Valid || info.Expired {
		t.Fatalf("test server cert should be valid: %+v", info)
	}
	if info.NotAfter == nil || info.DaysRemaining <= 0 {
		t.Fatalf("expiry not read: %+v", info)
	}
	if info.Host == "" {
		t.Fatalf("host not set: %+v", info)
	}
}

func TestSSLChecker_VerificationFailureIsData(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	// default config verifies the chain; the test server is self-signed
	chk := NewSSLChecker(2 * time.Second)
	info := chk.Check(context.Background(), s.URL)

	if info.Valid {
		t.Fatalf("self-signed cert must not verify: %+v", info)
	}
	if info.Error == "" {
		t.Fatalf("want a handshake error message, got none")
	}
}

func TestSSLChecker_RejectsNonHTTPS(t *testing.T) {
	chk := NewSSLChecker(time.Second)

	info := chk.Check(context.Background(), "http://example.com")
	if info.Error != "target is not https" {
		t.Fatalf("want non-https rejection, got %+v", info)
	}
	if info.Host != "example.com" {
		t.Fatalf("host should still be parsed: %+v", info)
	}

	info = chk.Check(context.Background(), "not a url")
	if info.Error != "invalid url" {
		t.Fatalf("want invalid url, got %+v", info)
	}
}

func TestSSLChecker_DialFailure(t *testing.T) {
	// closed port: grab one then free it
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := s.URL
	s.Close()

	chk := &SSLChecker{Timeout: time.Second, SkipVerify: true}
	info := chk.Check(context.Background(), addr)
	if info.Error == "" || info.Valid {
		t.Fatalf("want dial error as data, got %+v", info)
	}
}
