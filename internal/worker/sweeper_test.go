package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

type stubStaleStore struct {
	stale     []*models.QuizAttempt
	before    time.Time
	abandoned []uuid.UUID
	noRows    map[uuid.UUID]bool
}

func (s *stubStaleStore) StaleInProgress(ctx context.Context, before time.Time, limit int) ([]*models.QuizAttempt, error) {
	s.before = before
	return s.stale, nil
}

func (s *stubStaleStore) Abandon(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	if s.noRows[id] {
		return nil, pgx.ErrNoRows
	}
	s.abandoned = append(s.abandoned, id)
	return &models.QuizAttempt{ID: id, Status: models.AttemptAbandoned}, nil
}

type stubSessions struct {
	live    map[uuid.UUID]bool
	loadErr error
}

func (s *stubSessions) Save(ctx context.Context, id uuid.UUID, sess *models.QuizSession) error {
	return nil
}

func (s *stubSessions) Load(ctx context.Context, id uuid.UUID) (*models.QuizSession, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if !s.live[id] {
		return nil, services.ErrSessionNotFound
	}
	return &models.QuizSession{}, nil
}

func (s *stubSessions) Touch(ctx context.Context, id uuid.UUID) error  { return nil }
func (s *stubSessions) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func staleAttempt() *models.QuizAttempt {
	return &models.QuizAttempt{ID: uuid.New(), SessionID: uuid.New(), Status: models.AttemptInProgress}
}

func TestAttemptSweeper_AbandonsOnlyExpiredSessions(t *testing.T) {
	expired, live, raced := staleAttempt(), staleAttempt(), staleAttempt()
	store := &stubStaleStore{
		stale:  []*models.QuizAttempt{expired, live, raced},
		noRows: map[uuid.UUID]bool{raced.ID: true},
	}
	sessions := &stubSessions{live: map[uuid.UUID]bool{live.SessionID: true}}

	fixed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s := NewAttemptSweeper(store, sessions, 30*time.Minute, time.Minute)
	s.now = func() time.Time { return fixed }

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 abandoned attempt, got %d", n)
	}
	if len(store.abandoned) != 1 || store.abandoned[0] != expired.ID {
		t.Fatalf("expected only the expired attempt to be abandoned, got %v", store.abandoned)
	}
	if !store.before.Equal(fixed.Add(-30 * time.Minute)) {
		t.Fatalf("expected cutoff one session TTL ago, got %v", store.before)
	}
}

func TestAttemptSweeper_SkipsWhenSessionStoreFails(t *testing.T) {
	store := &stubStaleStore{stale: []*models.QuizAttempt{staleAttempt()}}
	s := NewAttemptSweeper(store, &stubSessions{loadErr: errors.New("redis down")}, time.Minute, time.Minute)

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || len(store.abandoned) != 0 {
		t.Fatal("expected nothing to be abandoned while sessions cannot be checked")
	}
}
