package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizforge-backend/internal/models"
)

// ErrSessionNotFound is returned when a quiz session is missing or has expired.
var ErrSessionNotFound = errors.New("quiz session not found")

type SessionStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, s *models.QuizSession) error
	Load(ctx context.Context, sessionID uuid.UUID) (*models.QuizSession, error)
	Touch(ctx context.Context, sessionID uuid.UUID) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// RedisSessionStore keeps quiz sessions under quiz_session:<id> with a sliding TTL.
type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "quiz_session:" + id.String()
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID uuid.UUID, sess *models.QuizSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save quiz session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID uuid.UUID) (*models.QuizSession, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz session: %w", err)
	}

	var sess models.QuizSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode quiz session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, sessionID uuid.UUID) error {
	return s.redis.Expire(ctx, sessionKey(sessionID), s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}
