package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
}

type AuthToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
	Role        string    `json:"role"`
	User        *User     `json:"user,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

type UserStats struct {
	TotalAttempts int     `json:"total_attempts"`
	AverageScore  float64 `json:"average_score"`
	BestScore     float64 `json:"best_score"`
	Trend         string  `json:"trend"`
}

type HistoryEntry struct {
	AttemptID          uuid.UUID  `json:"attempt_id"`
	QuizID             *uuid.UUID `json:"quiz_id"`
	QuizName           *string    `json:"quiz_name"`
	TotalQuestions     int        `json:"total_questions"`
	CorrectCount       int        `json:"correct_count"`
	ScorePercent       float64    `json:"score_percent"`
	DifficultySelected string     `json:"difficulty_selected"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

type TrendPoint struct {
	AttemptNumber int       `json:"attempt_number"`
	ScorePercent  float64   `json:"score_percent"`
	CompletedAt   time.Time `json:"completed_at"`
}
