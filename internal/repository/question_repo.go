package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizforge-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

const questionColumns = `q.id, q.question_text, q.options_text, q.response_type, q.correct_answer,
	q.expected_count, q.difficulty, q.llm_validated, q.llm_conflict, q.validation_data,
	q.manual_entry, q.conflict_detected, q.created_at, q.updated_at`

func scanQuestion(row pgx.Row, extra ...any) (*models.Question, error) {
	q := &models.Question{}
	var data []byte
	dest := []any{
		&q.ID, &q.QuestionText, &q.OptionsText, &q.ResponseType, &q.CorrectAnswer,
		&q.ExpectedCount, &q.Difficulty, &q.LLMValidated, &q.LLMConflict, &data,
		&q.ManualEntry, &q.ConflictDetected, &q.CreatedAt, &q.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &q.ValidationData); err != nil {
			return nil, fmt.Errorf("decode validation_data for question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

func (r *QuestionRepo) Create(ctx context.Context, q *models.Question) error {
	q.ID = uuid.New()
	data, err := json.Marshal(q.ValidationData)
	if err != nil {
		return err
	}

	query := `INSERT INTO questions (id, question_text, options_text, response_type, correct_answer,
			expected_count, difficulty, llm_validated, llm_conflict, validation_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING manual_entry, conflict_detected, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.QuestionText, q.OptionsText, q.ResponseType, q.CorrectAnswer,
		q.ExpectedCount, q.Difficulty, q.LLMValidated, q.LLMConflict, data,
	).Scan(&q.ManualEntry, &q.ConflictDetected, &q.CreatedAt, &q.UpdatedAt)
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE q.id = $1`
	return scanQuestion(r.pool.QueryRow(ctx, query, id))
}

// Update rewrites content and validation state in one statement.
func (r *QuestionRepo) Update(ctx context.Context, q *models.Question) error {
	data, err := json.Marshal(q.ValidationData)
	if err != nil {
		return err
	}

	query := `UPDATE questions SET question_text = $2, options_text = $3, response_type = $4,
			correct_answer = $5, expected_count = $6, difficulty = $7, llm_validated = $8,
			llm_conflict = $9, validation_data = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING manual_entry, conflict_detected, updated_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.QuestionText, q.OptionsText, q.ResponseType, q.CorrectAnswer,
		q.ExpectedCount, q.Difficulty, q.LLMValidated, q.LLMConflict, data,
	).Scan(&q.ManualEntry, &q.ConflictDetected, &q.UpdatedAt)
}

func (r *QuestionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM questions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *QuestionRepo) List(ctx context.Context, f models.QuestionFilter) ([]*models.Question, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		add("(q.question_text ILIKE $%[1]d OR q.options_text ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.Difficulty != "" {
		add("q.difficulty = $%d", f.Difficulty)
	}
	switch f.Status {
	case models.OutcomeValidated:
		where = append(where, "q.llm_validated AND NOT q.llm_conflict")
	case models.OutcomeConflict:
		where = append(where, "q.llm_conflict")
	case models.OutcomeUnvalidated:
		where = append(where, "NOT q.llm_validated AND NOT q.llm_conflict")
	}

	return r.page(ctx, where, args, "q.created_at DESC", f.Limit, f.Offset)
}

// ListFlagged returns the manual review queue.
func (r *QuestionRepo) ListFlagged(ctx context.Context, f models.ReviewQueueFilter) ([]*models.Question, int, error) {
	where := []string{"q.llm_conflict"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Difficulty != "" {
		add("q.difficulty = $%d", f.Difficulty)
	}
	if f.ResponseType != "" {
		add("q.response_type = $%d", f.ResponseType)
	}
	switch f.ValidationType {
	case "manual":
		where = append(where, "q.manual_entry")
	case "ai":
		where = append(where, "NOT q.manual_entry")
	}
	if f.Search != "" {
		add("(q.question_text ILIKE $%[1]d OR q.options_text ILIKE $%[1]d)", "%"+f.Search+"%")
	}

	order := "q.created_at DESC"
	if f.Sort == "oldest" {
		order = "q.created_at ASC"
	}

	return r.page(ctx, where, args, order, f.PageSize, (f.Page-1)*f.PageSize)
}

func (r *QuestionRepo) page(ctx context.Context, where []string, args []any, order string, limit, offset int) ([]*models.Question, int, error) {
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM questions q"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM questions q%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		questionColumns, clause, order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// GetMany loads questions by id, keeping the order of ids.
func (r *QuestionRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE q.id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Question, len(ids))
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// ListQuizzes returns the quizzes a question is linked to.
func (r *QuestionRepo) ListQuizzes(ctx context.Context, questionID uuid.UUID) ([]*models.Quiz, error) {
	query := `SELECT z.id, z.name, z.topic, z.target_level, z.cert_reference, z.created_at, z.updated_at
		FROM quizzes z JOIN quiz_questions qq ON qq.quiz_id = z.id
		WHERE qq.question_id = $1 ORDER BY z.name`

	rows, err := r.pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []*models.Quiz{}
	for rows.Next() {
		z := &models.Quiz{}
		if err := rows.Scan(&z.ID, &z.Name, &z.Topic, &z.TargetLevel, &z.CertReference, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, z)
	}
	return quizzes, rows.Err()
}

// UnvalidatedIDs returns questions that neither validator has confirmed and
// that are not waiting in the review queue, oldest first.
func (r *QuestionRepo) UnvalidatedIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions
		 WHERE NOT llm_validated AND NOT llm_conflict
		 ORDER BY created_at
		 LIMIT $1`, limit)
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
