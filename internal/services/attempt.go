package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
	"quizforge-backend/internal/repository"
)

const noExplanation = "No explanation available."

type attemptStore interface {
	Create(ctx context.Context, a *models.QuizAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
	RecentQuestionIDs(ctx context.Context, userID, quizID uuid.UUID, limit int) ([]uuid.UUID, error)
	SaveAnswer(ctx context.Context, qa *models.QuestionAttempt) (int, error)
	MarkSkipped(ctx context.Context, attemptID, questionID uuid.UUID) (bool, error)
	ListQuestionAttempts(ctx context.Context, attemptID uuid.UUID) ([]*models.QuestionAttempt, error)
	ListResults(ctx context.Context, attemptID uuid.UUID) ([]models.QuestionResult, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
	Abandon(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
}

type attemptQuizSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	EligibleQuestions(ctx context.Context, quizID uuid.UUID) ([]*models.Question, error)
}

type questionLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*models.Question, error)
}

type AttemptService struct {
	attempts       attemptStore
	quizzes        attemptQuizSource
	questions      questionLoader
	sessions       SessionStore
	recentAttempts int
	newRand        func() *rand.Rand
}

func NewAttemptService(attempts attemptStore, quizzes attemptQuizSource, questions questionLoader, sessions SessionStore, recentAttempts int) *AttemptService {
	return &AttemptService{
		attempts:       attempts,
		quizzes:        quizzes,
		questions:      questions,
		sessions:       sessions,
		recentAttempts: recentAttempts,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
}

// Start selects the attempt's questions, records the attempt and opens its session.
func (s *AttemptService) Start(ctx context.Context, userID, quizID uuid.UUID, req models.StartAttemptRequest) (*models.AttemptState, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}

	pool, err := s.quizzes.EligibleQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load eligible questions: %w", err)
	}
	if req.NumQuestions > len(pool) {
		return nil, fieldError("num_questions", fmt.Sprintf("only %d questions are available for this quiz", len(pool)))
	}

	recent, err := s.attempts.RecentQuestionIDs(ctx, userID, quizID, s.recentAttempts*req.NumQuestions)
	if err != nil {
		return nil, fmt.Errorf("load recent questions: %w", err)
	}

	ids := SelectQuestions(s.newRand(), pool, req.NumQuestions, req.Difficulty, recent)

	attempt := &models.QuizAttempt{
		UserID:             userID,
		QuizID:             &quizID,
		TotalQuestions:     len(ids),
		DifficultySelected: req.Difficulty,
		SessionID:          uuid.New(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	sess := &models.QuizSession{AttemptID: attempt.ID, UserID: userID, QuestionIDs: ids, StartedAt: attempt.StartedAt}
	if err := s.sessions.Save(ctx, attempt.SessionID, sess); err != nil {
		if _, abandonErr := s.attempts.Abandon(ctx, attempt.ID); abandonErr != nil {
			log.Error().Err(abandonErr).Str("attempt_id", attempt.ID.String()).Msg("failed to abandon attempt without session")
		}
		return nil, err
	}

	log.Info().Str("attempt_id", attempt.ID.String()).Str("quiz_id", quizID.String()).
		Int("questions", len(ids)).Str("difficulty", req.Difficulty).Msg("quiz attempt started")

	return s.buildState(ctx, attempt, ids, nil)
}

// State returns the attempt's questions and which of them were answered or skipped.
func (s *AttemptService) State(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptState, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	rows, err := s.attempts.ListQuestionAttempts(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Terminal() {
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.QuestionID)
		}
		return s.buildState(ctx, attempt, ids, rows)
	}

	sess, err := s.activeSession(ctx, attempt)
	if err != nil {
		return nil, err
	}
	return s.buildState(ctx, attempt, sess.QuestionIDs, rows)
}

// SubmitAnswer records (or replaces) the answer for one question and returns
// feedback with the stored explanations.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID, attemptID uuid.UUID, req models.SubmitAnswerRequest) (*models.AnswerFeedback, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	attempt, err := s.activeAttempt(ctx, userID, attemptID, req.QuestionID)
	if err != nil {
		return nil, err
	}

	q, err := s.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}

	answer := NormalizeAnswer(req.Answer)
	if err := validateSubmission(answer, q); err != nil {
		return nil, err
	}

	isCorrect := AnswersMatch(answer, q.CorrectAnswer)
	explanation, refs := storedExplanation(q.ValidationData)
	joinedRefs := strings.Join(refs, "\n")

	qa := &models.QuestionAttempt{
		QuizAttemptID:  attempt.ID,
		QuestionID:     q.ID,
		UserAnswer:     &answer,
		IsCorrect:      &isCorrect,
		LLMExplanation: &explanation,
		LLMReferences:  &joinedRefs,
	}
	correct, err := s.attempts.SaveAnswer(ctx, qa)
	if errors.Is(err, repository.ErrAttemptClosed) {
		return nil, &ConflictError{Message: "Attempt is no longer in progress"}
	}
	if err != nil {
		return nil, err
	}

	return &models.AnswerFeedback{
		QuestionID:    q.ID,
		UserAnswer:    answer,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     isCorrect,
		Explanation:   explanation,
		References:    refs,
		Explanations:  modelExplanations(q.ValidationData),
		CorrectCount:  correct,
	}, nil
}

// Skip marks a question as skipped so it can be revisited. Answered
// questions cannot be skipped.
func (s *AttemptService) Skip(ctx context.Context, userID, attemptID uuid.UUID, req models.SkipQuestionRequest) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}

	attempt, err := s.activeAttempt(ctx, userID, attemptID, req.QuestionID)
	if err != nil {
		return err
	}

	applied, err := s.attempts.MarkSkipped(ctx, attempt.ID, req.QuestionID)
	if errors.Is(err, repository.ErrAttemptClosed) {
		return &ConflictError{Message: "Attempt is no longer in progress"}
	}
	if err != nil {
		return err
	}
	if !applied {
		return &ConflictError{Message: "Question has already been answered"}
	}
	return nil
}

func (s *AttemptService) Complete(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptResults, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Terminal() {
		return nil, &ConflictError{Message: "Attempt is already " + attempt.Status}
	}

	attempt, err = s.attempts.Complete(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ConflictError{Message: "Attempt is no longer in progress"}
	}
	if err != nil {
		return nil, err
	}
	s.dropSession(ctx, attempt)

	log.Info().Str("attempt_id", attempt.ID.String()).Int("correct", attempt.CorrectCount).
		Int("total", attempt.TotalQuestions).Msg("quiz attempt completed")

	return s.results(ctx, attempt)
}

func (s *AttemptService) Abandon(ctx context.Context, userID, attemptID uuid.UUID) (*models.QuizAttempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Terminal() {
		return nil, &ConflictError{Message: "Attempt is already " + attempt.Status}
	}

	attempt, err = s.attempts.Abandon(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ConflictError{Message: "Attempt is no longer in progress"}
	}
	if err != nil {
		return nil, err
	}
	s.dropSession(ctx, attempt)
	return attempt, nil
}

func (s *AttemptService) Results(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptResults, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.results(ctx, attempt)
}

func (s *AttemptService) results(ctx context.Context, attempt *models.QuizAttempt) (*models.AttemptResults, error) {
	rows, err := s.attempts.ListResults(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	res := &models.AttemptResults{
		Attempt:      attempt,
		ScorePercent: Percentage(attempt.CorrectCount, attempt.TotalQuestions),
		Questions:    rows,
	}
	for _, r := range rows {
		if r.Skipped {
			res.Skipped++
		} else if r.UserAnswer != nil {
			res.Answered++
		}
	}

	if attempt.QuizID != nil {
		if quiz, err := s.quizzes.GetByID(ctx, *attempt.QuizID); err == nil {
			res.QuizName = &quiz.Name
		}
	}
	return res, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*models.QuizAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, notFoundOr(err, "Attempt not found")
	}
	if attempt.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return attempt, nil
}

// activeAttempt loads an in-progress attempt the user owns and checks that
// the question belongs to its session.
func (s *AttemptService) activeAttempt(ctx context.Context, userID, attemptID, questionID uuid.UUID) (*models.QuizAttempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Terminal() {
		return nil, &ConflictError{Message: "Attempt is already " + attempt.Status}
	}

	sess, err := s.activeSession(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if !sess.Contains(questionID) {
		return nil, fieldError("question_id", "question is not part of this attempt")
	}
	return attempt, nil
}

// activeSession loads the attempt's session. A lost session ends the attempt
// as abandoned.
func (s *AttemptService) activeSession(ctx context.Context, attempt *models.QuizAttempt) (*models.QuizSession, error) {
	sess, err := s.sessions.Load(ctx, attempt.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		if _, abandonErr := s.attempts.Abandon(ctx, attempt.ID); abandonErr != nil && !errors.Is(abandonErr, pgx.ErrNoRows) {
			log.Error().Err(abandonErr).Str("attempt_id", attempt.ID.String()).Msg("failed to abandon expired attempt")
		}
		log.Info().Str("attempt_id", attempt.ID.String()).Msg("quiz session expired, attempt abandoned")
		return nil, &GoneError{Message: "Quiz session has expired; the attempt was abandoned"}
	}
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(ctx, attempt.SessionID); err != nil {
		log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("failed to extend quiz session")
	}
	return sess, nil
}

func (s *AttemptService) dropSession(ctx context.Context, attempt *models.QuizAttempt) {
	if err := s.sessions.Delete(ctx, attempt.SessionID); err != nil {
		log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("failed to delete quiz session")
	}
}

func (s *AttemptService) buildState(ctx context.Context, attempt *models.QuizAttempt, ids []uuid.UUID, rows []*models.QuestionAttempt) (*models.AttemptState, error) {
	questions, err := s.questions.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load attempt questions: %w", err)
	}

	state := &models.AttemptState{
		Attempt:   attempt,
		Questions: make([]models.PublicQuestion, 0, len(questions)),
		Answered:  []uuid.UUID{},
		Skipped:   []uuid.UUID{},
	}
	for _, q := range questions {
		opts, _ := ParseOptions(q.OptionsText)
		state.Questions = append(state.Questions, models.PublicQuestion{
			ID:            q.ID,
			QuestionText:  q.QuestionText,
			Options:       opts,
			ResponseType:  q.ResponseType,
			ExpectedCount: q.ExpectedCount,
			Difficulty:    q.Difficulty,
		})
	}

	done := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		switch {
		case r.Skipped:
			state.Skipped = append(state.Skipped, r.QuestionID)
		case r.UserAnswer != nil:
			state.Answered = append(state.Answered, r.QuestionID)
			done[r.QuestionID] = true
		}
	}

	state.NextIndex = -1
	for i, q := range state.Questions {
		if !done[q.ID] {
			state.NextIndex = i
			break
		}
	}
	return state, nil
}

// validateSubmission checks a taker's answer only for shape; picking the
// wrong number of options is an incorrect answer, not an invalid one.
func validateSubmission(answer string, q *models.Question) error {
	letters := AnswerLetters(answer)
	if len(letters) == 0 {
		return fieldError("answer", "is required")
	}
	if q.ResponseType == models.ResponseSingle && len(letters) != 1 {
		return fieldError("answer", "select exactly one option")
	}

	opts, err := ParseOptions(q.OptionsText)
	if err != nil {
		return nil
	}
	valid := make(map[string]bool, len(opts))
	for _, o := range opts {
		valid[o.Letter] = true
	}
	for _, l := range letters {
		if !valid[l] {
			return fieldError("answer", fmt.Sprintf("option %s does not exist", l))
		}
	}
	return nil
}

// storedExplanation picks the primary validator's explanation, falling back
// to the secondary's, and merges both reference lists without duplicates.
func storedExplanation(vd models.ValidationData) (string, []string) {
	explanation := noExplanation
	for _, r := range []*models.LLMResult{vd.Primary, vd.Secondary} {
		if r != nil && r.Success && r.Verdict != nil && strings.TrimSpace(r.Verdict.Explanation) != "" {
			explanation = r.Verdict.Explanation
			break
		}
	}

	seen := map[string]bool{}
	refs := []string{}
	for _, r := range []*models.LLMResult{vd.Primary, vd.Secondary} {
		if r == nil || r.Verdict == nil {
			continue
		}
		for _, ref := range r.Verdict.References {
			ref = strings.TrimSpace(ref)
			if ref != "" && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return explanation, refs
}

func modelExplanations(vd models.ValidationData) []models.ModelExplanation {
	out := []models.ModelExplanation{}
	for _, r := range []*models.LLMResult{vd.Primary, vd.Secondary} {
		if r == nil || !r.Success || r.Verdict == nil {
			continue
		}
		out = append(out, models.ModelExplanation{
			Name:        r.Name,
			Explanation: r.Verdict.Explanation,
			KeyConcept:  r.Verdict.KeyConcept,
			References:  r.Verdict.References,
			WhyWrong:    r.Verdict.WhyWrong,
		})
	}
	return out
}
