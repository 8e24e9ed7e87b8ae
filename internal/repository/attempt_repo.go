package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizforge-backend/internal/models"
)

// ErrAttemptClosed is returned by writes that reach an attempt after it was
// completed or abandoned.
var ErrAttemptClosed = errors.New("attempt is no longer in progress")

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

const attemptColumns = `id, user_id, quiz_id, total_questions, correct_count, difficulty_selected,
	status, session_id, started_at, completed_at`

func scanAttempt(row pgx.Row) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.TotalQuestions, &a.CorrectCount, &a.DifficultySelected,
		&a.Status, &a.SessionID, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AttemptRepo) Create(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.Status = models.AttemptInProgress
	query := `INSERT INTO quiz_attempts (id, user_id, quiz_id, total_questions, difficulty_selected, status, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING correct_count, started_at`

	return r.pool.QueryRow(ctx, query,
		a.ID, a.UserID, a.QuizID, a.TotalQuestions, a.DifficultySelected, a.Status, a.SessionID,
	).Scan(&a.CorrectCount, &a.StartedAt)
}

func (r *AttemptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx, "SELECT "+attemptColumns+" FROM quiz_attempts WHERE id = $1", id))
}

// RecentQuestionIDs returns the questions the user most recently saw in this quiz.
func (r *AttemptRepo) RecentQuestionIDs(ctx context.Context, userID, quizID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `SELECT qa.question_id
		FROM question_attempts qa JOIN quiz_attempts za ON za.id = qa.quiz_attempt_id
		WHERE za.user_id = $1 AND za.quiz_id = $2
		GROUP BY qa.question_id
		ORDER BY MAX(qa.answered_at) DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, quizID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveAnswer upserts the (attempt, question) row and recomputes the attempt's
// correct_count inside one transaction. It returns the new correct_count.
func (r *AttemptRepo) SaveAnswer(ctx context.Context, qa *models.QuestionAttempt) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin answer transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockInProgress(ctx, tx, qa.QuizAttemptID); err != nil {
		return 0, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO question_attempts (id, quiz_attempt_id, question_id, user_answer, is_correct,
				llm_explanation, llm_references, skipped, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
		 ON CONFLICT (quiz_attempt_id, question_id) DO UPDATE SET
				user_answer = EXCLUDED.user_answer,
				is_correct = EXCLUDED.is_correct,
				llm_explanation = EXCLUDED.llm_explanation,
				llm_references = EXCLUDED.llm_references,
				skipped = FALSE,
				answered_at = NOW()
		 RETURNING id, answered_at`,
		uuid.New(), qa.QuizAttemptID, qa.QuestionID, qa.UserAnswer, qa.IsCorrect, qa.LLMExplanation, qa.LLMReferences,
	).Scan(&qa.ID, &qa.AnsweredAt)
	if err != nil {
		return 0, fmt.Errorf("upsert question attempt: %w", err)
	}
	qa.Skipped = false

	correct, err := recomputeCorrectCount(ctx, tx, qa.QuizAttemptID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit answer: %w", err)
	}
	return correct, nil
}

// MarkSkipped records a skip unless the question already has an answer, in
// which case it reports applied=false and leaves the row as is.
func (r *AttemptRepo) MarkSkipped(ctx context.Context, attemptID, questionID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin skip transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockInProgress(ctx, tx, attemptID); err != nil {
		return false, err
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO question_attempts (id, quiz_attempt_id, question_id, skipped, answered_at)
		 VALUES ($1, $2, $3, TRUE, NOW())
		 ON CONFLICT (quiz_attempt_id, question_id) DO UPDATE SET skipped = TRUE, answered_at = NOW()
		 WHERE question_attempts.user_answer IS NULL
		 RETURNING id`,
		uuid.New(), attemptID, questionID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit skip: %w", err)
	}
	return true, nil
}

func (r *AttemptRepo) ListQuestionAttempts(ctx context.Context, attemptID uuid.UUID) ([]*models.QuestionAttempt, error) {
	query := `SELECT id, quiz_attempt_id, question_id, user_answer, is_correct, llm_explanation,
			llm_references, skipped, answered_at
		FROM question_attempts WHERE quiz_attempt_id = $1 ORDER BY answered_at`

	rows, err := r.pool.Query(ctx, query, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.QuestionAttempt{}
	for rows.Next() {
		qa := &models.QuestionAttempt{}
		err := rows.Scan(&qa.ID, &qa.QuizAttemptID, &qa.QuestionID, &qa.UserAnswer, &qa.IsCorrect,
			&qa.LLMExplanation, &qa.LLMReferences, &qa.Skipped, &qa.AnsweredAt)
		if err != nil {
			return nil, err
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

// ListResults joins each question attempt with the question it answers.
func (r *AttemptRepo) ListResults(ctx context.Context, attemptID uuid.UUID) ([]models.QuestionResult, error) {
	query := `SELECT q.id, q.question_text, q.options_text, q.correct_answer,
			qa.user_answer, qa.is_correct, qa.skipped, qa.llm_explanation, qa.llm_references, qa.answered_at
		FROM question_attempts qa JOIN questions q ON q.id = qa.question_id
		WHERE qa.quiz_attempt_id = $1 ORDER BY qa.answered_at`

	rows, err := r.pool.Query(ctx, query, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.QuestionResult{}
	for rows.Next() {
		var res models.QuestionResult
		err := rows.Scan(&res.QuestionID, &res.QuestionText, &res.OptionsText, &res.CorrectAnswer,
			&res.UserAnswer, &res.IsCorrect, &res.Skipped, &res.Explanation, &res.References, &res.AnsweredAt)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Complete recomputes the score and closes the attempt. Only in-progress
// attempts transition; pgx.ErrNoRows means the attempt was already terminal.
func (r *AttemptRepo) Complete(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin complete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := recomputeCorrectCount(ctx, tx, id); err != nil {
		return nil, err
	}

	a, err := scanAttempt(tx.QueryRow(ctx,
		`UPDATE quiz_attempts SET status = 'completed', completed_at = NOW()
		 WHERE id = $1 AND status = 'in_progress'
		 RETURNING `+attemptColumns, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit complete: %w", err)
	}
	return a, nil
}

func (r *AttemptRepo) Abandon(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`UPDATE quiz_attempts SET status = 'abandoned', completed_at = NOW()
		 WHERE id = $1 AND status = 'in_progress'
		 RETURNING `+attemptColumns, id))
}

// lockInProgress holds the attempt row for the rest of tx so a concurrent
// Complete or Abandon waits until the write commits.
func lockInProgress(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM quiz_attempts WHERE id = $1 FOR UPDATE`, attemptID).Scan(&status)
	if err != nil {
		return err
	}
	if status != models.AttemptInProgress {
		return ErrAttemptClosed
	}
	return nil
}

func recomputeCorrectCount(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID) (int, error) {
	var correct int
	err := tx.QueryRow(ctx,
		`UPDATE quiz_attempts SET correct_count = (
			SELECT COUNT(*) FROM question_attempts WHERE quiz_attempt_id = $1 AND is_correct
		 ) WHERE id = $1 RETURNING correct_count`,
		attemptID,
	).Scan(&correct)
	if err != nil {
		return 0, fmt.Errorf("recompute correct_count: %w", err)
	}
	return correct, nil
}

// History lists the user's attempts, newest first.
func (r *AttemptRepo) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.HistoryEntry, error) {
	query := `SELECT a.id, a.quiz_id, z.name, a.total_questions, a.correct_count, a.difficulty_selected,
			a.status, a.started_at, a.completed_at
		FROM quiz_attempts a LEFT JOIN quizzes z ON z.id = a.quiz_id
		WHERE a.user_id = $1
		ORDER BY a.started_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.HistoryEntry{}
	for rows.Next() {
		h := &models.HistoryEntry{}
		err := rows.Scan(&h.AttemptID, &h.QuizID, &h.QuizName, &h.TotalQuestions, &h.CorrectCount,
			&h.DifficultySelected, &h.Status, &h.StartedAt, &h.CompletedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CompletedScores returns score percentages of completed attempts, newest first.
func (r *AttemptRepo) CompletedScores(ctx context.Context, userID uuid.UUID, limit int) ([]models.TrendPoint, error) {
	query := `SELECT correct_count, total_questions, completed_at
		FROM quiz_attempts
		WHERE user_id = $1 AND status = 'completed' AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TrendPoint{}
	for rows.Next() {
		var (
			correct, total int
			p              models.TrendPoint
		)
		if err := rows.Scan(&correct, &total, &p.CompletedAt); err != nil {
			return nil, err
		}
		if total > 0 {
			p.ScorePercent = float64(correct) * 100 / float64(total)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ScoreSummary aggregates completed attempts: count, average and best percentage.
func (r *AttemptRepo) ScoreSummary(ctx context.Context, userID uuid.UUID) (int, float64, float64, error) {
	var (
		count     int
		avg, best float64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(AVG(correct_count * 100.0 / NULLIF(total_questions, 0)), 0),
			COALESCE(MAX(correct_count * 100.0 / NULLIF(total_questions, 0)), 0)
		 FROM quiz_attempts
		 WHERE user_id = $1 AND status = 'completed'`,
		userID,
	).Scan(&count, &avg, &best)
	if err != nil {
		return 0, 0, 0, err
	}
	return count, avg, best, nil
}

// StaleInProgress lists in-progress attempts with no activity since before.
func (r *AttemptRepo) StaleInProgress(ctx context.Context, before time.Time, limit int) ([]*models.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM quiz_attempts a
		WHERE a.status = 'in_progress'
		  AND COALESCE((SELECT MAX(qa.answered_at) FROM question_attempts qa WHERE qa.quiz_attempt_id = a.id), a.started_at) < $1
		ORDER BY a.started_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.QuizAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
