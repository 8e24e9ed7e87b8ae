package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"quizforge-backend/internal/models"
)

type quizService interface {
	Create(ctx context.Context, req models.SaveQuizRequest) (*models.Quiz, error)
	Update(ctx context.Context, id uuid.UUID, req models.SaveQuizRequest) (*models.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Quiz, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	Stats(ctx context.Context, id uuid.UUID) (*models.QuizStats, error)
	AddQuestions(ctx context.Context, quizID uuid.UUID, req models.AddQuestionsRequest) (*models.AddQuestionsResult, error)
	RemoveQuestion(ctx context.Context, quizID, questionID uuid.UUID) error
	Questions(ctx context.Context, quizID uuid.UUID) ([]*models.QuizQuestion, error)
	Assemble(ctx context.Context, quizID uuid.UUID, req models.AssembleRequest) (*models.AddQuestionsResult, error)
}

type QuizHandler struct {
	quizzes quizService
}

func NewQuizHandler(quizzes quizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SaveQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	quiz, err := h.quizzes.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, quiz)
}

func (h *QuizHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}
	var req models.SaveQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	quiz, err := h.quizzes.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}

	if err := h.quizzes.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted"})
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}

	quiz, err := h.quizzes.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}

	stats, err := h.quizzes.Stats(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *QuizHandler) AddQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}
	var req models.AddQuestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.quizzes.AddQuestions(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *QuizHandler) RemoveQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}
	questionID, ok := urlID(w, r, "questionID", "question")
	if !ok {
		return
	}

	if err := h.quizzes.RemoveQuestion(r.Context(), quizID, questionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Question removed from quiz"})
}

func (h *QuizHandler) Questions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}

	questions, err := h.quizzes.Questions(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// Assemble fills the quiz from the eligible question pool.
func (h *QuizHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "quiz")
	if !ok {
		return
	}
	var req models.AssembleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.quizzes.Assemble(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
