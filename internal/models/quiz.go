package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Topic         string     `json:"topic"`
	TargetLevel   string     `json:"target_level"`
	CertReference *string    `json:"cert_reference"`
	QuestionCount int        `json:"question_count"`
	Stats         *QuizStats `json:"stats,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuizStats counts eligible questions per difficulty.
type QuizStats struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
	Total  int `json:"total"`
}

// QuizContext is the quiz framing passed to the validators.
type QuizContext struct {
	Topic         string
	TargetLevel   string
	CertReference string
}

type SaveQuizRequest struct {
	Name          string  `json:"name" validate:"required,min=3,max=200"`
	Topic         string  `json:"topic" validate:"required"`
	TargetLevel   string  `json:"target_level" validate:"required,oneof=Beginner Intermediate Advanced"`
	CertReference *string `json:"cert_reference"`
}

type AddQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" validate:"required,min=1,dive,required"`
}

type AddQuestionsResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

type AssembleRequest struct {
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	Topic      string `json:"topic"`
	Count      int    `json:"count" validate:"required,min=1,max=100"`
}

// QuizQuestion is a question as listed inside a quiz.
type QuizQuestion struct {
	Question
	AddedAt time.Time `json:"added_at"`
}
