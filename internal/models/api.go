package models

import (
	"time"

	"github.com/google/uuid"
)

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Admin event types published on the admin events channel.
const (
	EventQuestionValidated = "question_validated"
	EventQuestionFlagged   = "question_flagged"
	EventQuestionResolved  = "question_resolved"
	EventQuestionUnflagged = "question_unflagged"
	EventQuestionDeleted   = "question_deleted"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type QuestionEvent struct {
	QuestionID uuid.UUID `json:"question_id"`
	Outcome    string    `json:"outcome,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}
