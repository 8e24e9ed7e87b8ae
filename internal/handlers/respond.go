package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestID(r *http.Request) string {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: requestID(r),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: requestID(r),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr   *services.ValidationError
		conflictErr     *services.ConflictError
		notFoundErr     *services.NotFoundError
		unauthorizedErr *services.UnauthorizedError
		forbiddenErr    *services.ForbiddenError
		rateLimitErr    *services.RateLimitError
		goneErr         *services.GoneError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.As(err, &unauthorizedErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorizedErr.Message, r))
	case errors.As(err, &forbiddenErr):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", forbiddenErr.Message, r))
	case errors.As(err, &rateLimitErr):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimitErr.Message, r))
	case errors.As(err, &goneErr):
		writeJSON(w, http.StatusGone, errorResp("SESSION_EXPIRED", goneErr.Message, r))
	default:
		log.Error().Err(err).Str("request_id", requestID(r)).Str("path", r.URL.Path).Msg("unhandled service error")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// decodeJSON reads the request body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

// urlID parses a uuid path parameter and writes a 400 when it is malformed.
func urlID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid "+label+" ID", r))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
