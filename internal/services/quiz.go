package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/repository"
)

type quizStore interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	List(ctx context.Context) ([]*models.Quiz, error)
	Update(ctx context.Context, q *models.Quiz) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) (int, error)
	RemoveQuestion(ctx context.Context, quizID, questionID uuid.UUID) error
	ListQuestions(ctx context.Context, quizID uuid.UUID) ([]*models.QuizQuestion, error)
	EligibleQuestions(ctx context.Context, quizID uuid.UUID) ([]*models.Question, error)
	Stats(ctx context.Context, quizID uuid.UUID) (*models.QuizStats, error)
	AssembleCandidates(ctx context.Context, quizID uuid.UUID, difficulty, topic string, limit int) ([]uuid.UUID, error)
}

type QuizService struct {
	quizzes quizStore
}

func NewQuizService(quizzes quizStore) *QuizService {
	return &QuizService{quizzes: quizzes}
}

func (s *QuizService) Create(ctx context.Context, req models.SaveQuizRequest) (*models.Quiz, error) {
	if err := validateQuizRequest(&req); err != nil {
		return nil, err
	}

	q := &models.Quiz{
		Name:          req.Name,
		Topic:         req.Topic,
		TargetLevel:   req.TargetLevel,
		CertReference: req.CertReference,
	}
	if err := s.quizzes.Create(ctx, q); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, &ConflictError{Message: fmt.Sprintf("A quiz named %q already exists", req.Name)}
		}
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	log.Info().Str("quiz_id", q.ID.String()).Str("name", q.Name).Msg("quiz created")
	return q, nil
}

func (s *QuizService) Update(ctx context.Context, id uuid.UUID, req models.SaveQuizRequest) (*models.Quiz, error) {
	if err := validateQuizRequest(&req); err != nil {
		return nil, err
	}

	q, err := s.quizzes.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}
	q.Name = req.Name
	q.Topic = req.Topic
	q.TargetLevel = req.TargetLevel
	q.CertReference = req.CertReference

	if err := s.quizzes.Update(ctx, q); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, &ConflictError{Message: fmt.Sprintf("A quiz named %q already exists", req.Name)}
		}
		return nil, notFoundOr(err, "Quiz not found")
	}
	return q, nil
}

func validateQuizRequest(req *models.SaveQuizRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.CertReference != nil {
		ref := strings.TrimSpace(*req.CertReference)
		if ref == "" {
			req.CertReference = nil
		} else {
			req.CertReference = &ref
		}
	}
	return ValidateRequest(req)
}

func (s *QuizService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.quizzes.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Quiz not found")
	}
	return nil
}

func (s *QuizService) List(ctx context.Context) ([]*models.Quiz, error) {
	return s.quizzes.List(ctx)
}

// Get returns the quiz with its eligible-question stats.
func (s *QuizService) Get(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, err := s.quizzes.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}
	stats, err := s.quizzes.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Stats = stats
	return q, nil
}

func (s *QuizService) Stats(ctx context.Context, id uuid.UUID) (*models.QuizStats, error) {
	if _, err := s.quizzes.GetByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}
	return s.quizzes.Stats(ctx, id)
}

// AddQuestions links questions to the quiz. Existing links and unknown ids
// are ignored and counted as skipped.
func (s *QuizService) AddQuestions(ctx context.Context, quizID uuid.UUID, req models.AddQuestionsRequest) (*models.AddQuestionsResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}

	ids := dedupeIDs(req.QuestionIDs)
	added, err := s.quizzes.AddQuestions(ctx, quizID, ids)
	if err != nil {
		return nil, fmt.Errorf("add questions: %w", err)
	}
	return &models.AddQuestionsResult{Added: added, Skipped: len(ids) - added}, nil
}

func (s *QuizService) RemoveQuestion(ctx context.Context, quizID, questionID uuid.UUID) error {
	if err := s.quizzes.RemoveQuestion(ctx, quizID, questionID); err != nil {
		return notFoundOr(err, "Question is not part of this quiz")
	}
	return nil
}

func (s *QuizService) Questions(ctx context.Context, quizID uuid.UUID) ([]*models.QuizQuestion, error) {
	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}
	return s.quizzes.ListQuestions(ctx, quizID)
}

// Assemble links eligible pool questions matching the filters. Flagged and
// unvalidated questions are never picked.
func (s *QuizService) Assemble(ctx context.Context, quizID uuid.UUID, req models.AssembleRequest) (*models.AddQuestionsResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}

	ids, err := s.quizzes.AssembleCandidates(ctx, quizID, req.Difficulty, strings.TrimSpace(req.Topic), req.Count)
	if err != nil {
		return nil, fmt.Errorf("find assemble candidates: %w", err)
	}
	if len(ids) == 0 {
		return &models.AddQuestionsResult{}, nil
	}

	added, err := s.quizzes.AddQuestions(ctx, quizID, ids)
	if err != nil {
		return nil, fmt.Errorf("add assembled questions: %w", err)
	}
	return &models.AddQuestionsResult{Added: added, Skipped: len(ids) - added}, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
