package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"quizforge-backend/internal/models"
)

// Validator asks two independent backends for the answer to a question and
// compares their verdicts with each other and with the declared answer.
type Validator struct {
	primary   LLMBackend
	secondary LLMBackend
	timeout   time.Duration
	now       func() time.Time
}

func NewValidator(primary, secondary LLMBackend, timeout time.Duration) *Validator {
	return &Validator{primary: primary, secondary: secondary, timeout: timeout, now: time.Now}
}

// Validate never fails: backend errors are recorded in the result and yield
// the unvalidated outcome.
func (v *Validator) Validate(ctx context.Context, in models.QuestionInput, quiz *models.QuizContext) *models.ValidationResult {
	prompt := buildValidationPrompt(in, quiz)

	var primary, secondary *models.LLMResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary = v.ask(gctx, v.primary, prompt)
		return nil
	})
	g.Go(func() error {
		secondary = v.ask(gctx, v.secondary, prompt)
		return nil
	})
	g.Wait()

	return compareVerdicts(primary, secondary, in.CorrectAnswer)
}

func (v *Validator) ask(ctx context.Context, backend LLMBackend, prompt string) *models.LLMResult {
	res := &models.LLMResult{Name: backend.Name(), Model: backend.Model()}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	started := v.now()
	text, err := backend.Complete(callCtx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("backend", backend.Name()).Str("model", backend.Model()).Msg("validator call failed")
		res.Error = err.Error()
		return res
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		log.Warn().Err(err).Str("backend", backend.Name()).Str("raw", truncate(text, 300)).Msg("validator returned unusable response")
		res.Error = err.Error()
		return res
	}

	log.Debug().Str("backend", backend.Name()).Str("answer", verdict.Answer).
		Dur("latency", v.now().Sub(started)).Msg("validator verdict")

	res.Success = true
	res.Verdict = verdict
	return res
}

// compareVerdicts applies the agreement rules:
//   - either backend failed: unvalidated
//   - declared answer present: validated iff both verdicts equal it
//   - no declared answer: validated iff the verdicts equal each other
//
// Everything else is a conflict.
func compareVerdicts(primary, secondary *models.LLMResult, declared string) *models.ValidationResult {
	declared = NormalizeAnswer(declared)
	res := &models.ValidationResult{
		Primary:        primary,
		Secondary:      secondary,
		DeclaredAnswer: declared,
	}

	if declared != "" {
		for _, r := range []*models.LLMResult{primary, secondary} {
			if r.Success {
				agrees := AnswersMatch(r.Answer(), declared)
				r.AgreesWithDeclared = &agrees
				if agrees {
					res.AgreementCount++
				}
			}
		}
	}

	if !primary.Success || !secondary.Success {
		res.Outcome = models.OutcomeUnvalidated
		return res
	}

	modelsAgree := AnswersMatch(primary.Answer(), secondary.Answer())
	if declared == "" {
		if modelsAgree {
			res.AgreementCount = 2
			res.AllAgree = true
			res.ConsensusAnswer = primary.Answer()
		}
	} else if res.AgreementCount == 2 {
		res.AllAgree = true
		res.ConsensusAnswer = declared
	}

	if res.AllAgree {
		res.Outcome = models.OutcomeValidated
	} else {
		res.Outcome = models.OutcomeConflict
	}
	return res
}

// ToValidationData converts a run into the persisted metadata.
func (v *Validator) ToValidationData(res *models.ValidationResult) models.ValidationData {
	at := v.now().UTC()
	return models.ValidationData{
		Primary:          res.Primary,
		Secondary:        res.Secondary,
		AllAgree:         res.AllAgree,
		AgreementCount:   res.AgreementCount,
		ConsensusAnswer:  res.ConsensusAnswer,
		Outcome:          res.Outcome,
		ConflictDetected: res.Outcome == models.OutcomeConflict,
		ValidatedAt:      &at,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
