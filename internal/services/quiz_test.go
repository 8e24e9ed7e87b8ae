package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"quizforge-backend/internal/models"
)

type stubQuizStore struct {
	quizStore

	quizzes    map[uuid.UUID]*models.Quiz
	linked     map[uuid.UUID]bool
	candidates []uuid.UUID
	createErr  error
	gotTopic   string
}

func newStubQuizStore() *stubQuizStore {
	return &stubQuizStore{quizzes: map[uuid.UUID]*models.Quiz{}, linked: map[uuid.UUID]bool{}}
}

func (s *stubQuizStore) Create(ctx context.Context, q *models.Quiz) error {
	if s.createErr != nil {
		return s.createErr
	}
	q.ID = uuid.New()
	s.quizzes[q.ID] = q
	return nil
}

func (s *stubQuizStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

func (s *stubQuizStore) AddQuestions(ctx context.Context, quizID uuid.UUID, ids []uuid.UUID) (int, error) {
	added := 0
	for _, id := range ids {
		if !s.linked[id] {
			s.linked[id] = true
			added++
		}
	}
	return added, nil
}

func (s *stubQuizStore) RemoveQuestion(ctx context.Context, quizID, questionID uuid.UUID) error {
	if !s.linked[questionID] {
		return pgx.ErrNoRows
	}
	delete(s.linked, questionID)
	return nil
}

func (s *stubQuizStore) AssembleCandidates(ctx context.Context, quizID uuid.UUID, difficulty, topic string, limit int) ([]uuid.UUID, error) {
	s.gotTopic = topic
	return s.candidates[:min(limit, len(s.candidates))], nil
}

func TestQuizService_CreateTrimsAndValidates(t *testing.T) {
	store := newStubQuizStore()
	svc := NewQuizService(store)
	blank := "   "

	q, err := svc.Create(context.Background(), models.SaveQuizRequest{
		Name:          "  AWS Cloud Practitioner  ",
		Topic:         "AWS",
		TargetLevel:   models.LevelBeginner,
		CertReference: &blank,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Name != "AWS Cloud Practitioner" {
		t.Fatalf("expected trimmed name, got %q", q.Name)
	}
	if q.CertReference != nil {
		t.Fatalf("expected blank cert reference to be dropped, got %q", *q.CertReference)
	}

	_, err = svc.Create(context.Background(), models.SaveQuizRequest{Name: "AWS", Topic: "AWS", TargetLevel: "Expert"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["target_level"]; !ok {
		t.Fatalf("expected target_level error, got %v", verr.Fields)
	}
}

func TestQuizService_CreateDuplicateName(t *testing.T) {
	store := newStubQuizStore()
	store.createErr = &pgconn.PgError{Code: "23505"}
	svc := NewQuizService(store)

	_, err := svc.Create(context.Background(), models.SaveQuizRequest{Name: "Networking", Topic: "Net", TargetLevel: models.LevelAdvanced})

	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestQuizService_AddQuestionsCountsSkipped(t *testing.T) {
	store := newStubQuizStore()
	svc := NewQuizService(store)
	quizID := uuid.New()
	store.quizzes[quizID] = &models.Quiz{ID: quizID}
	a, b := uuid.New(), uuid.New()
	store.linked[a] = true

	res, err := svc.AddQuestions(context.Background(), quizID, models.AddQuestionsRequest{QuestionIDs: []uuid.UUID{a, b, b}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 1 || res.Skipped != 1 {
		t.Fatalf("expected 1 added and 1 skipped, got %+v", res)
	}
}

func TestQuizService_AddQuestionsUnknownQuiz(t *testing.T) {
	svc := NewQuizService(newStubQuizStore())

	_, err := svc.AddQuestions(context.Background(), uuid.New(), models.AddQuestionsRequest{QuestionIDs: []uuid.UUID{uuid.New()}})

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestQuizService_RemoveUnlinkedQuestion(t *testing.T) {
	svc := NewQuizService(newStubQuizStore())

	err := svc.RemoveQuestion(context.Background(), uuid.New(), uuid.New())

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestQuizService_Assemble(t *testing.T) {
	store := newStubQuizStore()
	svc := NewQuizService(store)
	quizID := uuid.New()
	store.quizzes[quizID] = &models.Quiz{ID: quizID}
	store.candidates = []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	res, err := svc.Assemble(context.Background(), quizID, models.AssembleRequest{Count: 2, Topic: "  S3  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 2 {
		t.Fatalf("expected 2 added, got %+v", res)
	}
	if store.gotTopic != "S3" {
		t.Fatalf("expected trimmed topic, got %q", store.gotTopic)
	}

	store.candidates = nil
	res, err = svc.Assemble(context.Background(), quizID, models.AssembleRequest{Count: 5})
	if err != nil || res.Added != 0 {
		t.Fatalf("expected empty result without candidates, got %+v, %v", res, err)
	}
}
