package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

// withURLParams attaches chi route parameters to a request built outside a router.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Fields: map[string]string{"answer": "is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{&services.ConflictError{Message: "Attempt is already completed"}, http.StatusConflict, "CONFLICT"},
		{&services.NotFoundError{Message: "Quiz not found"}, http.StatusNotFound, "NOT_FOUND"},
		{&services.UnauthorizedError{Message: "Invalid username or password"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{&services.ForbiddenError{Message: "Access denied"}, http.StatusForbidden, "FORBIDDEN"},
		{&services.GoneError{Message: "Quiz session has expired"}, http.StatusGone, "SESSION_EXPIRED"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-123")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, apiErr.Code)
			}
			if apiErr.RequestID != "req-123" {
				t.Fatalf("expected request id to be echoed, got %q", apiErr.RequestID)
			}
		})
	}
}

func TestHandleServiceError_WrappedValidationKeepsFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, errors.Join(errors.New("context"), &services.ValidationError{Fields: map[string]string{"num_questions": "too many"}}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if decodeError(t, rr).Fields["num_questions"] != "too many" {
		t.Fatal("expected field errors in the response")
	}
}

func TestURLID_Malformed(t *testing.T) {
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "not-a-uuid")
	rr := httptest.NewRecorder()

	if _, ok := urlID(rr, req, "id", "quiz"); ok {
		t.Fatal("expected malformed id to be rejected")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
