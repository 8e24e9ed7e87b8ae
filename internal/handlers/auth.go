package handlers

import (
	"context"
	"net/http"

	"quizforge-backend/internal/models"
)

type authService interface {
	AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.AuthToken, error)
	UserLogin(ctx context.Context, req models.UserLoginRequest) (*models.AuthToken, error)
}

type AuthHandler struct {
	authService authService
}

func NewAuthHandler(authService authService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.authService.AdminLogin(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *AuthHandler) UserLogin(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.authService.UserLogin(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}
