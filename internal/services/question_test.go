package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quizforge-backend/internal/models"
)

type stubQuestionStore struct {
	questions map[uuid.UUID]*models.Question
	updates   int
}

func newStubQuestionStore(qs ...*models.Question) *stubQuestionStore {
	s := &stubQuestionStore{questions: map[uuid.UUID]*models.Question{}}
	for _, q := range qs {
		s.questions[q.ID] = q
	}
	return s
}

func (s *stubQuestionStore) Create(ctx context.Context, q *models.Question) error {
	q.ID = uuid.New()
	s.questions[q.ID] = q
	return nil
}

func (s *stubQuestionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

func (s *stubQuestionStore) Update(ctx context.Context, q *models.Question) error {
	if _, ok := s.questions[q.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.updates++
	s.questions[q.ID] = q
	return nil
}

func (s *stubQuestionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.questions[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.questions, id)
	return nil
}

func (s *stubQuestionStore) List(ctx context.Context, f models.QuestionFilter) ([]*models.Question, int, error) {
	var out []*models.Question
	for _, q := range s.questions {
		out = append(out, q)
	}
	return out, len(out), nil
}

func (s *stubQuestionStore) ListFlagged(ctx context.Context, f models.ReviewQueueFilter) ([]*models.Question, int, error) {
	return nil, 0, nil
}

func (s *stubQuestionStore) ListQuizzes(ctx context.Context, questionID uuid.UUID) ([]*models.Quiz, error) {
	return nil, nil
}

func (s *stubQuestionStore) UnvalidatedIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, q := range s.questions {
		if !q.LLMValidated && !q.LLMConflict && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type stubQuizLinker struct {
	quizzes map[uuid.UUID]*models.Quiz
	linked  map[uuid.UUID][]uuid.UUID
}

func (s *stubQuizLinker) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

func (s *stubQuizLinker) AddQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) (int, error) {
	if s.linked == nil {
		s.linked = map[uuid.UUID][]uuid.UUID{}
	}
	s.linked[quizID] = append(s.linked[quizID], questionIDs...)
	return len(questionIDs), nil
}

type recordingPublisher struct {
	events []models.WSMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, msg models.WSMessage) {
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) last() string {
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1].Type
}

func newTestQuestionService(store *stubQuestionStore, primary, secondary LLMBackend) (*QuestionService, *stubQuizLinker, *recordingPublisher) {
	quizzes := &stubQuizLinker{quizzes: map[uuid.UUID]*models.Quiz{}}
	events := &recordingPublisher{}
	svc := NewQuestionService(store, quizzes, NewValidator(primary, secondary, time.Second), events)
	return svc, quizzes, events
}

func conflictedQuestion() *models.Question {
	return &models.Question{
		ID:            uuid.New(),
		QuestionText:  "Which port does HTTPS use by default?",
		OptionsText:   "A. 80\nB. 443\nC. 8080",
		ResponseType:  models.ResponseSingle,
		CorrectAnswer: "B",
		Difficulty:    models.DifficultyEasy,
		LLMConflict:   true,
		ValidationData: models.ValidationData{
			Primary:   okResult("B"),
			Secondary: &models.LLMResult{Name: "gemini", Success: true, Verdict: &models.Verdict{Answer: "C"}},
			Outcome:   models.OutcomeConflict,
		},
	}
}

func TestQuestionService_CreateValidated(t *testing.T) {
	store := newStubQuestionStore()
	svc, quizzes, events := newTestQuestionService(store, answering("claude", "B"), answering("gemini", "B"))
	quizID := uuid.New()
	quizzes.quizzes[quizID] = &models.Quiz{ID: quizID, Topic: "Networking"}

	res, err := svc.Create(context.Background(), models.SaveQuestionRequest{QuestionInput: sampleInput(""), QuizID: &quizID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := res.Question
	if !q.Eligible() {
		t.Fatalf("expected question to be eligible, got validated=%v conflict=%v", q.LLMValidated, q.LLMConflict)
	}
	if q.CorrectAnswer != "B" {
		t.Fatalf("expected consensus answer B to be stored, got %q", q.CorrectAnswer)
	}
	if len(quizzes.linked[quizID]) != 1 {
		t.Fatal("expected question to be linked to the quiz")
	}
	if events.last() != models.EventQuestionValidated {
		t.Fatalf("expected %s event, got %s", models.EventQuestionValidated, events.last())
	}
}

func TestQuestionService_CreateConflict(t *testing.T) {
	store := newStubQuestionStore()
	svc, _, events := newTestQuestionService(store, answering("claude", "B"), answering("gemini", "C"))

	res, err := svc.Create(context.Background(), models.SaveQuestionRequest{QuestionInput: sampleInput("B")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Question.LLMValidated || !res.Question.LLMConflict {
		t.Fatal("expected question to be flagged as conflicted")
	}
	if !res.Question.ValidationData.ConflictDetected {
		t.Fatal("expected conflict to be recorded in validation data")
	}
	if events.last() != models.EventQuestionFlagged {
		t.Fatalf("expected %s event, got %s", models.EventQuestionFlagged, events.last())
	}
}

func TestQuestionService_CreateBackendDown(t *testing.T) {
	store := newStubQuestionStore()
	svc, _, _ := newTestQuestionService(store, answering("claude", "B"), &stubBackend{name: "gemini", err: errors.New("unavailable")})

	res, err := svc.Create(context.Background(), models.SaveQuestionRequest{QuestionInput: sampleInput("B")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Question.LLMValidated || res.Question.LLMConflict {
		t.Fatal("expected question to be saved unvalidated and unflagged")
	}
	ids, _ := svc.PendingValidation(context.Background(), 0)
	if len(ids) != 1 || ids[0] != res.Question.ID {
		t.Fatalf("expected question to be pending validation, got %v", ids)
	}
}

func TestQuestionService_CreateSkipAI(t *testing.T) {
	primary := answering("claude", "B")
	svc, _, _ := newTestQuestionService(newStubQuestionStore(), primary, answering("gemini", "B"))

	req := models.SaveQuestionRequest{QuestionInput: sampleInput(""), SkipAI: true}
	if _, err := svc.Create(context.Background(), req); err == nil {
		t.Fatal("expected manual entry without an answer to fail")
	}

	req.CorrectAnswer = "b"
	res, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 0 {
		t.Fatal("expected validators not to be called")
	}
	vd := res.Question.ValidationData
	if !vd.ManualEntry || vd.Outcome != models.OutcomeManual || vd.Primary.Error != models.SkippedAIError {
		t.Fatalf("expected manual-entry metadata, got %+v", vd)
	}
	if !res.Question.LLMConflict {
		t.Fatal("expected manual entry to land in the review queue")
	}
}

func TestQuestionService_CreateUnknownQuiz(t *testing.T) {
	svc, _, _ := newTestQuestionService(newStubQuestionStore(), answering("claude", "B"), answering("gemini", "B"))
	missing := uuid.New()

	_, err := svc.Create(context.Background(), models.SaveQuestionRequest{QuestionInput: sampleInput("B"), QuizID: &missing})

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestQuestionService_ResolveAccept(t *testing.T) {
	q := conflictedQuestion()
	store := newStubQuestionStore(q)
	svc, _, events := newTestQuestionService(store, answering("claude", "B"), answering("gemini", "C"))

	got, err := svc.Resolve(context.Background(), q.ID, models.ResolveConflictRequest{Action: "accept", Answer: "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.Eligible() || got.CorrectAnswer != "C" {
		t.Fatalf("expected accepted answer C and eligibility, got %q validated=%v", got.CorrectAnswer, got.LLMValidated)
	}
	if got.ValidationData.Resolution == nil || got.ValidationData.Resolution.Source != "gemini" {
		t.Fatalf("expected resolution sourced from gemini, got %+v", got.ValidationData.Resolution)
	}
	if !got.ValidationData.ConflictDetected {
		t.Fatal("expected conflict to remain on record")
	}
	if events.last() != models.EventQuestionResolved {
		t.Fatalf("expected %s event, got %s", models.EventQuestionResolved, events.last())
	}
}

func TestQuestionService_ResolveRejectsForeignAnswer(t *testing.T) {
	q := conflictedQuestion()
	svc, _, _ := newTestQuestionService(newStubQuestionStore(q), answering("claude", "B"), answering("gemini", "C"))

	_, err := svc.Resolve(context.Background(), q.ID, models.ResolveConflictRequest{Action: "accept", Answer: "A"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestQuestionService_ResolveFlagThenUnflag(t *testing.T) {
	q := conflictedQuestion()
	svc, _, events := newTestQuestionService(newStubQuestionStore(q), answering("claude", "B"), answering("gemini", "C"))
	ctx := context.Background()

	flagged, err := svc.Resolve(ctx, q.ID, models.ResolveConflictRequest{Action: "flag"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flagged.ValidationData.FlaggedForReview || flagged.Eligible() {
		t.Fatal("expected question to be flagged for review")
	}

	unflagged, err := svc.Unflag(ctx, q.ID, models.UnflagRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unflagged.Eligible() || unflagged.CorrectAnswer != "B" {
		t.Fatalf("expected unflag to keep answer B and make the question eligible, got %q", unflagged.CorrectAnswer)
	}
	if events.last() != models.EventQuestionUnflagged {
		t.Fatalf("expected %s event, got %s", models.EventQuestionUnflagged, events.last())
	}

	_, err = svc.Unflag(ctx, q.ID, models.UnflagRequest{})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError for an unflagged question, got %v", err)
	}
}

func TestQuestionService_Revalidate(t *testing.T) {
	q := conflictedQuestion()
	store := newStubQuestionStore(q)
	svc, _, _ := newTestQuestionService(store, answering("claude", "B"), answering("gemini", "B"))

	res, err := svc.Revalidate(context.Background(), q.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Question.Eligible() {
		t.Fatal("expected revalidated question to become eligible")
	}
	if store.updates != 1 {
		t.Fatalf("expected one update, got %d", store.updates)
	}
}

func TestQuestionService_RevalidateKeepsResolution(t *testing.T) {
	q := conflictedQuestion()
	q.ValidationData.ConflictDetected = true
	store := newStubQuestionStore(q)
	svc, _, _ := newTestQuestionService(store, answering("claude", "B"), answering("gemini", "C"))
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, q.ID, models.ResolveConflictRequest{Action: "accept", Answer: "B"}); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}

	svc.validator.secondary = answering("gemini", "B")
	res, err := svc.Revalidate(ctx, q.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vd := res.Question.ValidationData
	if vd.Outcome != models.OutcomeValidated {
		t.Fatalf("expected validated outcome, got %s", vd.Outcome)
	}
	if !vd.ConflictDetected {
		t.Fatal("expected earlier conflict to stay on record")
	}
	if vd.Resolution == nil || vd.Resolution.Action != "accept" || vd.Resolution.Answer != "B" {
		t.Fatalf("expected earlier resolution to be kept, got %+v", vd.Resolution)
	}
}

func TestQuestionService_DeleteMissing(t *testing.T) {
	svc, _, events := newTestQuestionService(newStubQuestionStore(), answering("claude", "B"), answering("gemini", "B"))

	err := svc.Delete(context.Background(), uuid.New())

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(events.events) != 0 {
		t.Fatal("expected no event for a failed delete")
	}
}
