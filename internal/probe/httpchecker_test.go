package probe

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
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

func TestHTTPChecker_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", out.StatusCode)
	}
	if !strings.HasPrefix(out.Message, "500") {
		t.Fatalf("want message to start with 500, got %q", out.Message)
	}
}

func TestHTTPChecker_TimeoutSetsStatusZero(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(50 * time.Millisecond)
	out := chk.Check(context.Background(), s.URL)
	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPCheckerWithOptions_TLS(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	// self-signed cert fails verification
	strict := NewHTTPCheckerWithOptions(HTTPOptions{ConnectTimeout: time.Second, ReadTimeout: time.Second})
	out := strict.Check(context.Background(), s.URL)
	if out.Success || out.Connected() {
		t.Fatalf("want TLS failure, got %+v", out)
	}

	lax := NewHTTPCheckerWithOptions(HTTPOptions{ConnectTimeout: time.Second, ReadTimeout: time.Second, SkipVerify: true})
	out = lax.Check(context.Background(), s.URL)
	if !out.Success || out.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204 with verification skipped, got %+v", out)
	}
}

func TestTLSVersion(t *testing.T) {
	if tlsVersion("TLSv1.3") != tls.VersionTLS13 {
		t.Fatalf("want TLS 1.3")
	}
	if tlsVersion("") != tls.VersionTLS12 {
		t.Fatalf("want TLS 1.2 default")
	}
}
