package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizforge-backend/internal/models"
)

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	query := `INSERT INTO quizzes (id, name, topic, target_level, cert_reference)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.Name, q.Topic, q.TargetLevel, q.CertReference,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q := &models.Quiz{}
	query := `SELECT z.id, z.name, z.topic, z.target_level, z.cert_reference, z.created_at, z.updated_at,
			(SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = z.id)
		FROM quizzes z WHERE z.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.Name, &q.Topic, &q.TargetLevel, &q.CertReference, &q.CreatedAt, &q.UpdatedAt, &q.QuestionCount,
	)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuizRepo) List(ctx context.Context) ([]*models.Quiz, error) {
	query := `SELECT z.id, z.name, z.topic, z.target_level, z.cert_reference, z.created_at, z.updated_at,
			COUNT(qq.question_id)
		FROM quizzes z LEFT JOIN quiz_questions qq ON qq.quiz_id = z.id
		GROUP BY z.id ORDER BY z.name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []*models.Quiz{}
	for rows.Next() {
		q := &models.Quiz{}
		err := rows.Scan(&q.ID, &q.Name, &q.Topic, &q.TargetLevel, &q.CertReference, &q.CreatedAt, &q.UpdatedAt, &q.QuestionCount)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) Update(ctx context.Context, q *models.Quiz) error {
	query := `UPDATE quizzes SET name = $2, topic = $3, target_level = $4, cert_reference = $5, updated_at = NOW()
		WHERE id = $1 RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.Name, q.Topic, q.TargetLevel, q.CertReference,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// Delete removes the quiz; join rows cascade and attempts keep a NULL quiz_id.
func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AddQuestions links questions to a quiz. Existing links are left untouched;
// the returned count covers only newly inserted rows.
func (r *QuizRepo) AddQuestions(ctx context.Context, quizID uuid.UUID, questionIDs []uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_questions (quiz_id, question_id)
		 SELECT $1, q.id FROM questions q WHERE q.id = ANY($2)
		 ON CONFLICT (quiz_id, question_id) DO NOTHING`,
		quizID, questionIDs,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *QuizRepo) RemoveQuestion(ctx context.Context, quizID, questionID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM quiz_questions WHERE quiz_id = $1 AND question_id = $2",
		quizID, questionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *QuizRepo) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]*models.QuizQuestion, error) {
	query := `SELECT ` + questionColumns + `, qq.added_at
		FROM questions q JOIN quiz_questions qq ON qq.question_id = q.id
		WHERE qq.quiz_id = $1 ORDER BY qq.added_at DESC`

	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.QuizQuestion{}
	for rows.Next() {
		qq := &models.QuizQuestion{}
		q, err := scanQuestion(rows, &qq.AddedAt)
		if err != nil {
			return nil, err
		}
		qq.Question = *q
		out = append(out, qq)
	}
	return out, rows.Err()
}

// EligibleQuestions returns the quiz's servable questions: validated and not in conflict.
func (r *QuizRepo) EligibleQuestions(ctx context.Context, quizID uuid.UUID) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions q JOIN quiz_questions qq ON qq.question_id = q.id
		WHERE qq.quiz_id = $1 AND q.llm_validated AND NOT q.llm_conflict`

	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuizRepo) Stats(ctx context.Context, quizID uuid.UUID) (*models.QuizStats, error) {
	s := &models.QuizStats{}
	query := `SELECT
			COUNT(*) FILTER (WHERE q.difficulty = 'Easy'),
			COUNT(*) FILTER (WHERE q.difficulty = 'Medium'),
			COUNT(*) FILTER (WHERE q.difficulty = 'Hard'),
			COUNT(*)
		FROM questions q JOIN quiz_questions qq ON qq.question_id = q.id
		WHERE qq.quiz_id = $1 AND q.llm_validated AND NOT q.llm_conflict`

	if err := r.pool.QueryRow(ctx, query, quizID).Scan(&s.Easy, &s.Medium, &s.Hard, &s.Total); err != nil {
		return nil, err
	}
	return s, nil
}

// AssembleCandidates picks eligible pool questions not yet linked to the quiz.
func (r *QuizRepo) AssembleCandidates(ctx context.Context, quizID uuid.UUID, difficulty, topic string, limit int) ([]uuid.UUID, error) {
	query := `SELECT q.id FROM questions q
		WHERE q.llm_validated AND NOT q.llm_conflict
		  AND NOT EXISTS (SELECT 1 FROM quiz_questions qq WHERE qq.quiz_id = $1 AND qq.question_id = q.id)
		  AND ($2::text = '' OR q.difficulty = $2::text)
		  AND ($3::text = '' OR q.question_text ILIKE '%' || $3::text || '%' OR q.options_text ILIKE '%' || $3::text || '%')
		ORDER BY random()
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, quizID, difficulty, topic, limit)
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
