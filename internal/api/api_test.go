package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSendsHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Expected bearer header, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/api/Position/current" || r.URL.Query().Get("accountId") != "7" {
			t.Errorf("Unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"quantity":3}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeaders(BearerHeaders("secret")))
	resp, err := c.GET(context.Background(), "/api/Position/current", map[string]string{"accountId": "7"})
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	var out struct{ Quantity int }
	if err := resp.ParseJSON(&out); err != nil {
		t.Fatal(err)
	}
	if out.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", out.Quantity)
	}
}

func TestPostSetsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.POST(context.Background(), "/x", map[string]int{"a": 1}); err != nil {
		t.Fatalf("POST failed: %v", err)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).GET(context.Background(), "/", nil)
	if StatusCode(err) != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d (%v)", StatusCode(err), err)
	}
}

func TestDoWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	resp, err := c.DoWithRetry(context.Background(), NewRequest(http.MethodGet, "/"), cfg)
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if resp.String() != "ok" || calls.Load() != 3 {
		t.Errorf("Expected ok after 3 calls, got %q after %d", resp.String(), calls.Load())
	}
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.DoWithRetry(context.Background(), NewRequest(http.MethodGet, "/"), nil); err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt for a 4xx, got %d", calls.Load())
	}
}
