package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	now := start
	rl.now = func() time.Time { return now }

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := hit("10.0.0.1:5000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d", i+1, http.StatusOK, rr.Code)
		}
	}

	now = start.Add(20 * time.Second)
	rr := hit("10.0.0.1:5001")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("expected Retry-After 40, got %q", got)
	}

	if rr := hit("10.0.0.2:5000"); rr.Code != http.StatusOK {
		t.Fatalf("expected other clients to be unaffected, got %d", rr.Code)
	}

	now = start.Add(time.Minute)
	if rr := hit("10.0.0.1:5000"); rr.Code != http.StatusOK {
		t.Fatalf("expected a new window to reset the count, got %d", rr.Code)
	}
}

func TestRequestID_ReusesIncomingHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "abc-123" || rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("expected request id to be reused, got %q", seen)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" {
		t.Fatalf("expected a generated request id, got %q", seen)
	}
}
