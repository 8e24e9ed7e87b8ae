package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/models"
)

type questionStore interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	Update(ctx context.Context, q *models.Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f models.QuestionFilter) ([]*models.Question, int, error)
	ListFlagged(ctx context.Context, f models.ReviewQueueFilter) ([]*models.Question, int, error)
	ListQuizzes(ctx context.Context, questionID uuid.UUID) ([]*models.Quiz, error)
	UnvalidatedIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type quizLinker interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	AddQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) (int, error)
}

type QuestionService struct {
	questions questionStore
	quizzes   quizLinker
	validator *Validator
	events    EventPublisher
	now       func() time.Time
}

func NewQuestionService(questions questionStore, quizzes quizLinker, validator *Validator, events EventPublisher) *QuestionService {
	return &QuestionService{
		questions: questions,
		quizzes:   quizzes,
		validator: validator,
		events:    events,
		now:       time.Now,
	}
}

// Preview runs both validators without saving anything.
func (s *QuestionService) Preview(ctx context.Context, req models.SaveQuestionRequest) (*models.ValidationResult, error) {
	opts, err := ValidateQuestionInput(req.QuestionInput, false)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizContext(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	res := s.validator.Validate(ctx, req.QuestionInput, quiz)
	checkConsensus(res, req.QuestionInput, opts)
	return res, nil
}

func (s *QuestionService) Create(ctx context.Context, req models.SaveQuestionRequest) (*models.SaveQuestionResult, error) {
	opts, err := ValidateQuestionInput(req.QuestionInput, req.SkipAI)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizContext(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{}
	applyInput(q, req.QuestionInput)
	res := s.runValidation(ctx, q, req, quiz, opts)

	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	if req.QuizID != nil {
		if _, err := s.quizzes.AddQuestions(ctx, *req.QuizID, []uuid.UUID{q.ID}); err != nil {
			return nil, fmt.Errorf("link question to quiz: %w", err)
		}
	}

	s.publishOutcome(ctx, q)
	return &models.SaveQuestionResult{Question: q, Validation: res, Message: outcomeMessage(q)}, nil
}

func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req models.SaveQuestionRequest) (*models.SaveQuestionResult, error) {
	opts, err := ValidateQuestionInput(req.QuestionInput, req.SkipAI)
	if err != nil {
		return nil, err
	}

	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	quiz, err := s.quizContext(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	applyInput(q, req.QuestionInput)
	res := s.runValidation(ctx, q, req, quiz, opts)

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, notFoundOr(err, "Question not found")
	}

	s.publishOutcome(ctx, q)
	return &models.SaveQuestionResult{Question: q, Validation: res, Message: outcomeMessage(q)}, nil
}

// Revalidate re-runs both validators on a stored question.
func (s *QuestionService) Revalidate(ctx context.Context, id uuid.UUID, quizID *uuid.UUID) (*models.SaveQuestionResult, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	quiz, err := s.quizContext(ctx, quizID)
	if err != nil {
		return nil, err
	}

	in := models.QuestionInput{
		QuestionText:  q.QuestionText,
		OptionsText:   q.OptionsText,
		ResponseType:  q.ResponseType,
		CorrectAnswer: q.CorrectAnswer,
		ExpectedCount: q.ExpectedCount,
		Difficulty:    q.Difficulty,
	}
	opts, err := ParseOptions(q.OptionsText)
	if err != nil {
		return nil, fieldError("options_text", err.Error())
	}

	res := s.runValidation(ctx, q, models.SaveQuestionRequest{QuestionInput: in}, quiz, opts)
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, notFoundOr(err, "Question not found")
	}

	s.publishOutcome(ctx, q)
	return &models.SaveQuestionResult{Question: q, Validation: res, Message: outcomeMessage(q)}, nil
}

// Resolve settles a validator disagreement. Accepting takes one of the
// competing answers and makes the question eligible; flagging sends it to
// manual review. The conflict stays on record in the validation metadata.
func (s *QuestionService) Resolve(ctx context.Context, id uuid.UUID, req models.ResolveConflictRequest) (*models.Question, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	if !q.LLMConflict {
		return nil, &ConflictError{Message: "Question has no unresolved validator conflict"}
	}

	vd := &q.ValidationData
	vd.ConflictDetected = true
	resolution := &models.Resolution{Action: req.Action, ResolvedAt: s.now().UTC()}

	switch req.Action {
	case "accept":
		answer := NormalizeAnswer(req.Answer)
		source, ok := answerSource(q, answer)
		if !ok {
			return nil, fieldError("answer", "must be one of the validators' answers or the declared answer")
		}
		if err := s.checkAnswer(q, answer); err != nil {
			return nil, err
		}

		q.CorrectAnswer = answer
		q.LLMValidated = true
		q.LLMConflict = false
		vd.FlaggedForReview = false
		resolution.Answer = answer
		resolution.Source = source

	case "flag":
		if answer := NormalizeAnswer(req.Answer); answer != "" {
			if err := s.checkAnswer(q, answer); err != nil {
				return nil, err
			}
			q.CorrectAnswer = answer
		} else if q.CorrectAnswer == "" {
			q.CorrectAnswer = vd.ConsensusAnswer
		}

		q.LLMValidated = false
		q.LLMConflict = true
		vd.ManualEntry = true
		vd.FlaggedForReview = true
		resolution.Answer = q.CorrectAnswer
	}
	vd.Resolution = resolution

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, notFoundOr(err, "Question not found")
	}

	log.Info().Str("question_id", q.ID.String()).Str("action", req.Action).Str("answer", resolution.Answer).Msg("validator conflict resolved")

	eventType := models.EventQuestionResolved
	if req.Action == "flag" {
		eventType = models.EventQuestionFlagged
	}
	s.publish(ctx, eventType, q, "")
	return q, nil
}

// Unflag releases a question from the manual review queue with an admin-chosen answer.
func (s *QuestionService) Unflag(ctx context.Context, id uuid.UUID, req models.UnflagRequest) (*models.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	if !q.LLMConflict {
		return nil, &ConflictError{Message: "Question is not flagged"}
	}

	answer := NormalizeAnswer(req.Answer)
	if answer == "" {
		answer = q.CorrectAnswer
	}
	if answer == "" {
		return nil, fieldError("answer", "a correct answer is required before unflagging")
	}
	if err := s.checkAnswer(q, answer); err != nil {
		return nil, err
	}

	q.CorrectAnswer = answer
	q.LLMValidated = true
	q.LLMConflict = false
	q.ValidationData.FlaggedForReview = false
	q.ValidationData.Resolution = &models.Resolution{Action: "unflag", Answer: answer, Source: "admin", ResolvedAt: s.now().UTC()}

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, notFoundOr(err, "Question not found")
	}

	s.publish(ctx, models.EventQuestionUnflagged, q, "")
	return q, nil
}

func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	return q, nil
}

func (s *QuestionService) List(ctx context.Context, f models.QuestionFilter) ([]*models.Question, int, error) {
	if f.Difficulty != "" && !validDifficulty(f.Difficulty) {
		return nil, 0, fieldError("difficulty", "must be one of: Easy Medium Hard")
	}
	return s.questions.List(ctx, f)
}

func (s *QuestionService) ReviewQueue(ctx context.Context, f models.ReviewQueueFilter) (*models.QuestionPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.Difficulty != "" && !validDifficulty(f.Difficulty) {
		return nil, fieldError("difficulty", "must be one of: Easy Medium Hard")
	}

	items, total, err := s.questions.ListFlagged(ctx, f)
	if err != nil {
		return nil, err
	}
	return &models.QuestionPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *QuestionService) Quizzes(ctx context.Context, id uuid.UUID) ([]*models.Quiz, error) {
	if _, err := s.questions.GetByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "Question not found")
	}
	return s.questions.ListQuizzes(ctx, id)
}

// PendingValidation lists questions still waiting on a validator verdict.
func (s *QuestionService) PendingValidation(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return s.questions.UnvalidatedIDs(ctx, limit)
}

func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.questions.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Question not found")
	}
	s.events.Publish(ctx, models.WSMessage{
		Type:    models.EventQuestionDeleted,
		Payload: models.QuestionEvent{QuestionID: id, At: s.now().UTC()},
	})
	return nil
}

// runValidation fills the question's flags and metadata, either from a
// manual entry or from a validator run.
func (s *QuestionService) runValidation(ctx context.Context, q *models.Question, req models.SaveQuestionRequest, quiz *models.QuizContext, opts []models.Option) *models.ValidationResult {
	prior := q.ValidationData
	defer keepAuditTrail(prior, &q.ValidationData)

	if req.SkipAI {
		q.LLMValidated = false
		q.LLMConflict = true
		q.ValidationData = models.ValidationData{
			Primary:     &models.LLMResult{Name: s.validator.primary.Name(), Model: s.validator.primary.Model(), Error: models.SkippedAIError},
			Secondary:   &models.LLMResult{Name: s.validator.secondary.Name(), Model: s.validator.secondary.Model(), Error: models.SkippedAIError},
			Outcome:     models.OutcomeManual,
			ManualEntry: true,
			SkippedAI:   true,
		}
		return nil
	}

	res := s.validator.Validate(ctx, req.QuestionInput, quiz)
	checkConsensus(res, req.QuestionInput, opts)
	q.ValidationData = s.validator.ToValidationData(res)

	switch res.Outcome {
	case models.OutcomeValidated:
		q.LLMValidated = true
		q.LLMConflict = false
		q.CorrectAnswer = res.ConsensusAnswer
	case models.OutcomeConflict:
		q.LLMValidated = false
		q.LLMConflict = true
		log.Info().Str("primary", res.Primary.Answer()).Str("secondary", res.Secondary.Answer()).
			Str("declared", res.DeclaredAnswer).Msg("validators disagree")
	default:
		q.LLMValidated = false
		q.LLMConflict = false
	}
	return res
}

// keepAuditTrail carries an earlier conflict and its resolution into freshly
// written validation metadata.
func keepAuditTrail(prior models.ValidationData, vd *models.ValidationData) {
	if prior.ConflictDetected {
		vd.ConflictDetected = true
	}
	if vd.Resolution == nil && prior.Resolution != nil {
		vd.Resolution = prior.Resolution
	}
}

// checkConsensus downgrades an agreed answer that does not fit the options.
func checkConsensus(res *models.ValidationResult, in models.QuestionInput, opts []models.Option) {
	if res.Outcome != models.OutcomeValidated {
		return
	}
	if err := ValidateAnswer(res.ConsensusAnswer, in.ResponseType, in.ExpectedCount, opts); err != nil {
		res.Outcome = models.OutcomeConflict
		res.AllAgree = false
		res.ConsensusAnswer = ""
	}
}

func (s *QuestionService) checkAnswer(q *models.Question, answer string) error {
	opts, err := ParseOptions(q.OptionsText)
	if err != nil {
		return fieldError("options_text", err.Error())
	}
	if err := ValidateAnswer(answer, q.ResponseType, q.ExpectedCount, opts); err != nil {
		return fieldError("answer", err.Error())
	}
	return nil
}

func (s *QuestionService) quizContext(ctx context.Context, quizID *uuid.UUID) (*models.QuizContext, error) {
	if quizID == nil {
		return nil, nil
	}
	quiz, err := s.quizzes.GetByID(ctx, *quizID)
	if err != nil {
		return nil, notFoundOr(err, "Quiz not found")
	}
	qc := &models.QuizContext{Topic: quiz.Topic, TargetLevel: quiz.TargetLevel}
	if quiz.CertReference != nil {
		qc.CertReference = *quiz.CertReference
	}
	return qc, nil
}

func (s *QuestionService) publishOutcome(ctx context.Context, q *models.Question) {
	eventType := models.EventQuestionValidated
	if q.LLMConflict {
		eventType = models.EventQuestionFlagged
	}
	s.publish(ctx, eventType, q, outcomeMessage(q))
}

func (s *QuestionService) publish(ctx context.Context, eventType string, q *models.Question, msg string) {
	s.events.Publish(ctx, models.WSMessage{
		Type: eventType,
		Payload: models.QuestionEvent{
			QuestionID: q.ID,
			Outcome:    q.ValidationData.Outcome,
			Message:    msg,
			At:         s.now().UTC(),
		},
	})
}

// answerSource names where an accepted answer came from, if it is one of the candidates.
func answerSource(q *models.Question, answer string) (string, bool) {
	vd := q.ValidationData
	if vd.Primary != nil && AnswersMatch(vd.Primary.Answer(), answer) {
		return vd.Primary.Name, true
	}
	if vd.Secondary != nil && AnswersMatch(vd.Secondary.Answer(), answer) {
		return vd.Secondary.Name, true
	}
	if AnswersMatch(q.CorrectAnswer, answer) {
		return "declared", true
	}
	return "", false
}

func applyInput(q *models.Question, in models.QuestionInput) {
	q.QuestionText = in.QuestionText
	q.OptionsText = in.OptionsText
	q.ResponseType = in.ResponseType
	q.CorrectAnswer = NormalizeAnswer(in.CorrectAnswer)
	q.ExpectedCount = in.ExpectedCount
	q.Difficulty = in.Difficulty
}

func outcomeMessage(q *models.Question) string {
	switch q.ValidationData.Outcome {
	case models.OutcomeValidated:
		return "Both validators agree; question is ready for quizzes."
	case models.OutcomeConflict:
		return "Validators disagree; accept one answer or flag the question for manual review."
	case models.OutcomeManual:
		return "AI validation skipped; question is flagged for manual review."
	default:
		return "A validator could not be reached; question saved unvalidated. Re-run validation when the service is available."
	}
}

func validDifficulty(d string) bool {
	return d == models.DifficultyEasy || d == models.DifficultyMedium || d == models.DifficultyHard
}
