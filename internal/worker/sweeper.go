package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/services"
)

const sweepBatch = 200

type staleAttemptStore interface {
	StaleInProgress(ctx context.Context, before time.Time, limit int) ([]*models.QuizAttempt, error)
	Abandon(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
}

// AttemptSweeper abandons in-progress attempts whose quiz session has expired,
// so they stop counting as open.
type AttemptSweeper struct {
	attempts   staleAttemptStore
	sessions   services.SessionStore
	sessionTTL time.Duration
	interval   time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewAttemptSweeper(attempts staleAttemptStore, sessions services.SessionStore, sessionTTL, interval time.Duration) *AttemptSweeper {
	return &AttemptSweeper{
		attempts:   attempts,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		interval:   interval,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

func (s *AttemptSweeper) Start() {
	go s.loop()
	log.Info().Dur("interval", s.interval).Msg("attempt sweeper started")
}

func (s *AttemptSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *AttemptSweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n, err := s.Sweep(context.Background()); err != nil {
				log.Error().Err(err).Msg("attempt sweep failed")
			} else if n > 0 {
				log.Info().Int("abandoned", n).Msg("expired attempts abandoned")
			}
		}
	}
}

// Sweep abandons idle attempts whose session is gone and returns how many it ended.
// An idle attempt with a live session was kept alive by reads and is left alone.
func (s *AttemptSweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.attempts.StaleInProgress(ctx, s.now().Add(-s.sessionTTL), sweepBatch)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, a := range stale {
		_, err := s.sessions.Load(ctx, a.SessionID)
		if err == nil {
			continue
		}
		if !errors.Is(err, services.ErrSessionNotFound) {
			log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("failed to check quiz session")
			continue
		}

		if _, err := s.attempts.Abandon(ctx, a.ID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("failed to abandon expired attempt")
			}
			continue
		}
		abandoned++
	}
	return abandoned, nil
}
