package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/models"
)

type attemptService interface {
	Start(ctx context.Context, userID, quizID uuid.UUID, req models.StartAttemptRequest) (*models.AttemptState, error)
	State(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptState, error)
	SubmitAnswer(ctx context.Context, userID, attemptID uuid.UUID, req models.SubmitAnswerRequest) (*models.AnswerFeedback, error)
	Skip(ctx context.Context, userID, attemptID uuid.UUID, req models.SkipQuestionRequest) error
	Complete(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptResults, error)
	Abandon(ctx context.Context, userID, attemptID uuid.UUID) (*models.QuizAttempt, error)
	Results(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptResults, error)
}

// AttemptHandler serves quiz taking for signed-in users.
type AttemptHandler struct {
	attempts attemptService
}

func NewAttemptHandler(attempts attemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

func (h *AttemptHandler) Start(w http.ResponseWriter, r *http.Request) {
	quizID, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}
	var req models.StartAttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	state, err := h.attempts.Start(r.Context(), userID, quizID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

func (h *AttemptHandler) State(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}

	state, err := h.attempts.State(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *AttemptHandler) Answer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}
	var req models.SubmitAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	feedback, err := h.attempts.SubmitAnswer(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedback)
}

func (h *AttemptHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}
	var req models.SkipQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.attempts.Skip(r.Context(), middleware.GetUserID(r.Context()), id, req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"question_id": req.QuestionID,
		"skipped":     true,
	})
}

func (h *AttemptHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}

	results, err := h.attempts.Complete(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *AttemptHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}

	attempt, err := h.attempts.Abandon(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "attempt")
	if !ok {
		return
	}

	results, err := h.attempts.Results(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
