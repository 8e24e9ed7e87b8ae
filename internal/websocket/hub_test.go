package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubTokens struct {
	role string
	err  error
}

func (s stubTokens) ParseToken(token string) (uuid.UUID, string, error) {
	if s.err != nil {
		return uuid.Nil, "", s.err
	}
	return uuid.New(), s.role, nil
}

func TestHandleWebSocket_RejectsBeforeUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		target string
		tokens stubTokens
		status int
	}{
		{"missing token", "/api/v1/admin/ws", stubTokens{role: "admin"}, http.StatusUnauthorized},
		{"invalid token", "/api/v1/admin/ws?token=bad", stubTokens{err: errors.New("token is malformed")}, http.StatusUnauthorized},
		{"quiz taker", "/api/v1/admin/ws?token=ok", stubTokens{role: "user"}, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHub(nil, "admin_events", tc.tokens, "http://localhost:5173")
			rr := httptest.NewRecorder()

			h.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if h.ConnectionCount() != 0 {
				t.Fatal("expected no registered connections")
			}
		})
	}
}

func TestHub_CheckOrigin(t *testing.T) {
	h := NewHub(nil, "admin_events", stubTokens{}, "http://localhost:5173")

	for origin, want := range map[string]bool{
		"":                      true,
		"http://localhost:5173": true,
		"https://evil.example":  false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := h.upgrader.CheckOrigin(req); got != want {
			t.Errorf("origin %q: expected %v, got %v", origin, want, got)
		}
	}
}
