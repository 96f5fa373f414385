package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salescoach-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

// CreateBatch persists a session's whole bank in one transaction so a session
// never starts with a partial bank.
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []*models.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO session_questions
			(id, session_id, position, question_text, expected_answer, key_points_json,
			 forbidden_mistakes_json, source, difficulty, question_type, is_objection)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, q := range questions {
		keyPoints, err := json.Marshal(q.KeyPoints)
		if err != nil {
			return err
		}
		mistakes, err := json.Marshal(q.ForbiddenMistakes)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query,
			q.ID, q.SessionID, q.Position, q.Text, q.ExpectedAnswer,
			keyPoints, mistakes, q.Source, q.Difficulty, q.Type, q.IsObjection,
		); err != nil {
			return fmt.Errorf("failed to insert question %d: %w", q.Position, err)
		}
	}

	return tx.Commit(ctx)
}

const questionColumns = `
	id, session_id, position, question_text, expected_answer, key_points_json,
	forbidden_mistakes_json, source, difficulty, question_type, is_objection,
	answered, created_at
`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	var keyPoints, mistakes []byte
	err := row.Scan(
		&q.ID, &q.SessionID, &q.Position, &q.Text, &q.ExpectedAnswer,
		&keyPoints, &mistakes, &q.Source, &q.Difficulty, &q.Type,
		&q.IsObjection, &q.Answered, &q.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(keyPoints, &q.KeyPoints); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mistakes, &q.ForbiddenMistakes); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM session_questions WHERE id = $1`
	return scanQuestion(r.pool.QueryRow(ctx, query, id))
}

func (r *QuestionRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM session_questions WHERE session_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepo) MarkAnswered(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE session_questions SET answered = TRUE WHERE id = $1`, id)
	return err
}
