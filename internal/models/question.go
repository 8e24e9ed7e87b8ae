package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	ResponseSingle   = "single"
	ResponseMultiple = "multiple"

	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Validation outcomes recorded in ValidationData.Outcome.
const (
	OutcomeValidated   = "validated"
	OutcomeConflict    = "conflict"
	OutcomeUnvalidated = "unvalidated"
	OutcomeManual      = "manual"
)

// SkippedAIError marks backends that were never called because the admin skipped validation.
const SkippedAIError = "AI validation skipped by user"

type Question struct {
	ID               uuid.UUID      `json:"id"`
	QuestionText     string         `json:"question_text"`
	OptionsText      string         `json:"options_text"`
	ResponseType     string         `json:"response_type"`
	CorrectAnswer    string         `json:"correct_answer"`
	ExpectedCount    *int           `json:"expected_count"`
	Difficulty       string         `json:"difficulty"`
	LLMValidated     bool           `json:"llm_validated"`
	LLMConflict      bool           `json:"llm_conflict"`
	ValidationData   ValidationData `json:"validation_data"`
	ManualEntry      bool           `json:"manual_entry"`
	ConflictDetected bool           `json:"conflict_detected"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Eligible reports whether the question may be served in a quiz attempt.
func (q *Question) Eligible() bool {
	return q.LLMValidated && !q.LLMConflict
}

// ValidationData is persisted verbatim in questions.validation_data.
type ValidationData struct {
	Primary          *LLMResult  `json:"primary,omitempty"`
	Secondary        *LLMResult  `json:"secondary,omitempty"`
	AllAgree         bool        `json:"all_agree"`
	AgreementCount   int         `json:"agreement_count"`
	ConsensusAnswer  string      `json:"consensus_answer,omitempty"`
	Outcome          string      `json:"outcome,omitempty"`
	ManualEntry      bool        `json:"manual_entry,omitempty"`
	SkippedAI        bool        `json:"skipped_ai,omitempty"`
	ConflictDetected bool        `json:"conflict_detected,omitempty"`
	FlaggedForReview bool        `json:"flagged_for_review,omitempty"`
	Resolution       *Resolution `json:"resolution,omitempty"`
	ValidatedAt      *time.Time  `json:"validated_at,omitempty"`
}

// LLMResult is one validator's contribution.
type LLMResult struct {
	Name               string   `json:"name"`
	Model              string   `json:"model"`
	Success            bool     `json:"success"`
	Verdict            *Verdict `json:"verdict,omitempty"`
	Error              string   `json:"error,omitempty"`
	AgreesWithDeclared *bool    `json:"agrees_with_declared,omitempty"`
}

// Answer returns the verdict's answer or "" when the call failed.
func (r *LLMResult) Answer() string {
	if r == nil || !r.Success || r.Verdict == nil {
		return ""
	}
	return r.Verdict.Answer
}

// Verdict mirrors the JSON object the validators are asked to return.
type Verdict struct {
	Answer           string            `json:"your_answer"`
	Confidence       FlexString        `json:"confidence"`
	AgreesWithStored *bool             `json:"agrees_with_stored"`
	Explanation      string            `json:"explanation"`
	WhyWrong         map[string]string `json:"why_wrong,omitempty"`
	KeyConcept       string            `json:"key_concept,omitempty"`
	References       []string          `json:"references,omitempty"`
	Concerns         FlexString        `json:"concerns,omitempty"`
}

// FlexString accepts a JSON string, number, boolean or null.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*f = FlexString(data)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(b))
	return nil
}

type Resolution struct {
	Action     string    `json:"action"`
	Answer     string    `json:"answer,omitempty"`
	Source     string    `json:"source,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// ValidationResult is returned to the admin after a validation run.
type ValidationResult struct {
	Outcome         string     `json:"outcome"`
	Primary         *LLMResult `json:"primary"`
	Secondary       *LLMResult `json:"secondary"`
	AllAgree        bool       `json:"all_agree"`
	AgreementCount  int        `json:"agreement_count"`
	ConsensusAnswer string     `json:"consensus_answer,omitempty"`
	DeclaredAnswer  string     `json:"declared_answer,omitempty"`
}

// QuestionInput carries the fields shared by create, update and preview.
type QuestionInput struct {
	QuestionText  string `json:"question_text" validate:"required,min=10"`
	OptionsText   string `json:"options_text" validate:"required"`
	ResponseType  string `json:"response_type" validate:"required,oneof=single multiple"`
	CorrectAnswer string `json:"correct_answer" validate:"omitempty,max=50"`
	ExpectedCount *int   `json:"expected_count" validate:"omitempty,min=2,max=5"`
	Difficulty    string `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
}

type SaveQuestionRequest struct {
	QuestionInput
	QuizID *uuid.UUID `json:"quiz_id"`
	SkipAI bool       `json:"skip_ai"`
}

type ResolveConflictRequest struct {
	Action string `json:"action" validate:"required,oneof=accept flag"`
	Answer string `json:"answer" validate:"required_if=Action accept"`
}

type UnflagRequest struct {
	Answer string `json:"answer"`
}

// SaveQuestionResult is returned by create, update and re-validate.
type SaveQuestionResult struct {
	Question   *Question         `json:"question"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Message    string            `json:"message"`
}

type QuestionFilter struct {
	Search     string
	Difficulty string
	Status     string
	Limit      int
	Offset     int
}

type ReviewQueueFilter struct {
	Difficulty     string
	ResponseType   string
	ValidationType string
	Search         string
	Sort           string
	Page           int
	PageSize       int
}

type QuestionPage struct {
	Items    []*Question `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
