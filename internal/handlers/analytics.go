package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/models"
)

type analyticsService interface {
	Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.HistoryEntry, error)
	Trend(ctx context.Context, userID uuid.UUID, limit int) ([]models.TrendPoint, error)
}

type AnalyticsHandler struct {
	analytics analyticsService
}

func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AnalyticsHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.analytics.History(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 10))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": entries})
}

func (h *AnalyticsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	points, err := h.analytics.Trend(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 10))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trend": points})
}
