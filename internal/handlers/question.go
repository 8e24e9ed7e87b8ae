package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"quizforge-backend/internal/models"
)

type questionService interface {
	Preview(ctx context.Context, req models.SaveQuestionRequest) (*models.ValidationResult, error)
	Create(ctx context.Context, req models.SaveQuestionRequest) (*models.SaveQuestionResult, error)
	Update(ctx context.Context, id uuid.UUID, req models.SaveQuestionRequest) (*models.SaveQuestionResult, error)
	Revalidate(ctx context.Context, id uuid.UUID, quizID *uuid.UUID) (*models.SaveQuestionResult, error)
	Resolve(ctx context.Context, id uuid.UUID, req models.ResolveConflictRequest) (*models.Question, error)
	Unflag(ctx context.Context, id uuid.UUID, req models.UnflagRequest) (*models.Question, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Question, error)
	List(ctx context.Context, f models.QuestionFilter) ([]*models.Question, int, error)
	ReviewQueue(ctx context.Context, f models.ReviewQueueFilter) (*models.QuestionPage, error)
	Quizzes(ctx context.Context, id uuid.UUID) ([]*models.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PendingValidation(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type revalidationQueue interface {
	Enqueue(ctx context.Context, ids []uuid.UUID) (int, error)
}

// QuestionHandler serves the admin question bank.
type QuestionHandler struct {
	questions questionService
	queue     revalidationQueue
}

func NewQuestionHandler(questions questionService, queue revalidationQueue) *QuestionHandler {
	return &QuestionHandler{questions: questions, queue: queue}
}

func (h *QuestionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req models.SaveQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.questions.Preview(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SaveQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.questions.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}
	var req models.SaveQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.questions.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Revalidate re-runs both validators. An optional quiz_id query parameter
// supplies the quiz context for the prompt.
func (h *QuestionHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}

	var quizID *uuid.UUID
	if raw := r.URL.Query().Get("quiz_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid quiz ID", r))
			return
		}
		quizID = &parsed
	}

	res, err := h.questions.Revalidate(r.Context(), id, quizID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// RevalidatePending queues every unvalidated question for a background
// validator run, typically after a provider outage.
func (h *QuestionHandler) RevalidatePending(w http.ResponseWriter, r *http.Request) {
	ids, err := h.questions.PendingValidation(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	queued, err := h.queue.Enqueue(r.Context(), ids)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}

func (h *QuestionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}
	var req models.ResolveConflictRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.questions.Resolve(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) Unflag(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}
	var req models.UnflagRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.questions.Unflag(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}

	q, err := h.questions.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.QuestionFilter{
		Search:     q.Get("search"),
		Difficulty: q.Get("difficulty"),
		Status:     q.Get("status"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}

	items, total, err := h.questions.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": items,
		"total":     total,
	})
}

func (h *QuestionHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ReviewQueueFilter{
		Difficulty:     q.Get("difficulty"),
		ResponseType:   q.Get("response_type"),
		ValidationType: q.Get("validation_type"),
		Search:         q.Get("search"),
		Sort:           q.Get("sort"),
		Page:           queryInt(r, "page", 1),
		PageSize:       queryInt(r, "page_size", 20),
	}

	page, err := h.questions.ReviewQueue(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *QuestionHandler) Quizzes(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}

	quizzes, err := h.questions.Quizzes(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "question")
	if !ok {
		return
	}

	if err := h.questions.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Question deleted"})
}
