package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
	AttemptAbandoned  = "abandoned"
)

type QuizAttempt struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	QuizID             *uuid.UUID `json:"quiz_id"`
	TotalQuestions     int        `json:"total_questions"`
	CorrectCount       int        `json:"correct_count"`
	DifficultySelected string     `json:"difficulty_selected"`
	Status             string     `json:"status"`
	SessionID          uuid.UUID  `json:"session_id"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

// Terminal reports whether the attempt has been completed or abandoned.
func (a *QuizAttempt) Terminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptAbandoned
}

type QuestionAttempt struct {
	ID             uuid.UUID `json:"id"`
	QuizAttemptID  uuid.UUID `json:"quiz_attempt_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	UserAnswer     *string   `json:"user_answer"`
	IsCorrect      *bool     `json:"is_correct"`
	LLMExplanation *string   `json:"llm_explanation"`
	LLMReferences  *string   `json:"llm_references"`
	Skipped        bool      `json:"skipped"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// QuizSession is the transient quiz-taking state kept in Redis.
type QuizSession struct {
	AttemptID   uuid.UUID   `json:"attempt_id"`
	UserID      uuid.UUID   `json:"user_id"`
	QuestionIDs []uuid.UUID `json:"question_ids"`
	StartedAt   time.Time   `json:"started_at"`
}

// Contains reports whether the question was selected for this session.
func (s *QuizSession) Contains(questionID uuid.UUID) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

type StartAttemptRequest struct {
	NumQuestions int    `json:"num_questions" validate:"required,oneof=5 10 15 20 25"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
}

type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	Answer     string    `json:"answer" validate:"required,max=50"`
}

type SkipQuestionRequest struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
}

// PublicQuestion hides the answer and validation metadata from quiz takers.
type PublicQuestion struct {
	ID            uuid.UUID `json:"id"`
	QuestionText  string    `json:"question_text"`
	Options       []Option  `json:"options"`
	ResponseType  string    `json:"response_type"`
	ExpectedCount *int      `json:"expected_count"`
	Difficulty    string    `json:"difficulty"`
}

type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type AttemptState struct {
	Attempt   *QuizAttempt     `json:"attempt"`
	Questions []PublicQuestion `json:"questions"`
	Answered  []uuid.UUID      `json:"answered"`
	Skipped   []uuid.UUID      `json:"skipped"`
	NextIndex int              `json:"next_index"`
}

// ModelExplanation is a validator's stored reasoning, shown after answering.
type ModelExplanation struct {
	Name        string            `json:"name"`
	Explanation string            `json:"explanation"`
	KeyConcept  string            `json:"key_concept,omitempty"`
	References  []string          `json:"references,omitempty"`
	WhyWrong    map[string]string `json:"why_wrong,omitempty"`
}

type AnswerFeedback struct {
	QuestionID    uuid.UUID          `json:"question_id"`
	UserAnswer    string             `json:"user_answer"`
	CorrectAnswer string             `json:"correct_answer"`
	IsCorrect     bool               `json:"is_correct"`
	Explanation   string             `json:"explanation"`
	References    []string           `json:"references"`
	Explanations  []ModelExplanation `json:"explanations"`
	CorrectCount  int                `json:"correct_count"`
}

type QuestionResult struct {
	QuestionID    uuid.UUID `json:"question_id"`
	QuestionText  string    `json:"question_text"`
	OptionsText   string    `json:"options_text"`
	CorrectAnswer string    `json:"correct_answer"`
	UserAnswer    *string   `json:"user_answer"`
	IsCorrect     *bool     `json:"is_correct"`
	Skipped       bool      `json:"skipped"`
	Explanation   *string   `json:"explanation"`
	References    *string   `json:"references"`
	AnsweredAt    time.Time `json:"answered_at"`
}

type AttemptResults struct {
	Attempt      *QuizAttempt     `json:"attempt"`
	QuizName     *string          `json:"quiz_name"`
	ScorePercent float64          `json:"score_percent"`
	Answered     int              `json:"answered"`
	Skipped      int              `json:"skipped"`
	Questions    []QuestionResult `json:"questions"`
}
