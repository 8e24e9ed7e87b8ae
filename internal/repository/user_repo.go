package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizforge-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetOrCreate returns the user with the given username, creating it on first
// sight, and bumps last_seen either way.
func (r *UserRepo) GetOrCreate(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	query := `INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET last_seen = NOW()
		RETURNING id, username, created_at, last_seen`

	err := r.pool.QueryRow(ctx, query, uuid.New(), username).Scan(&u.ID, &u.Username, &u.CreatedAt, &u.LastSeen)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, username, created_at, last_seen FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt, &u.LastSeen)
	if err != nil {
		return nil, err
	}
	return u, nil
}
