package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salescoach-backend/internal/models"
)

type EvaluationRepo struct {
	pool *pgxpool.Pool
}

func NewEvaluationRepo(pool *pgxpool.Pool) *EvaluationRepo {
	return &EvaluationRepo{pool: pool}
}

func (r *EvaluationRepo) Create(ctx context.Context, e *models.Evaluation) error {
	evidence, err := json.Marshal(e.Evidence)
	if err != nil {
		return err
	}
	mistakes, err := json.Marshal(e.ForbiddenMistakesMade)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO answer_evaluations
			(id, session_id, question_id, user_answer,
			 accuracy, completeness, clarity, tone, technique, key_points_covered, closing,
			 overall_score, is_objection, feedback, spoken_feedback,
			 what_correct, what_missed, what_wrong,
			 evidence_json, forbidden_mistakes_json, prescribed_language_used, fallback)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at
	`
	return r.pool.QueryRow(ctx, query,
		e.ID, e.SessionID, e.QuestionID, e.UserAnswer,
		e.Accuracy, e.Completeness, e.Clarity, e.Tone, e.Technique, e.KeyPointsCovered, e.Closing,
		e.OverallScore, e.IsObjection, e.Feedback, e.SpokenFeedback,
		e.WhatCorrect, e.WhatMissed, e.WhatWrong,
		evidence, mistakes, e.PrescribedLanguageUsed, e.Fallback,
	).Scan(&e.CreatedAt)
}

const evaluationColumns = `
	id, session_id, question_id, user_answer,
	accuracy, completeness, clarity, tone, technique, key_points_covered, closing,
	overall_score, is_objection, feedback, spoken_feedback,
	what_correct, what_missed, what_wrong,
	evidence_json, forbidden_mistakes_json, prescribed_language_used, fallback, created_at
`

func scanEvaluation(row pgx.Row) (*models.Evaluation, error) {
	var e models.Evaluation
	var evidence, mistakes []byte
	err := row.Scan(
		&e.ID, &e.SessionID, &e.QuestionID, &e.UserAnswer,
		&e.Accuracy, &e.Completeness, &e.Clarity, &e.Tone, &e.Technique, &e.KeyPointsCovered, &e.Closing,
		&e.OverallScore, &e.IsObjection, &e.Feedback, &e.SpokenFeedback,
		&e.WhatCorrect, &e.WhatMissed, &e.WhatWrong,
		&evidence, &mistakes, &e.PrescribedLanguageUsed, &e.Fallback, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(evidence, &e.Evidence); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mistakes, &e.ForbiddenMistakesMade); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByQuestion returns the earliest evaluation of a question, if any. Used as
// the duplicate-submission guard: the first accepted answer wins and repeats
// get the stored result back.
func (r *EvaluationRepo) GetByQuestion(ctx context.Context, questionID uuid.UUID) (*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM answer_evaluations WHERE question_id = $1 ORDER BY created_at LIMIT 1`
	return scanEvaluation(r.pool.QueryRow(ctx, query, questionID))
}

func (r *EvaluationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM answer_evaluations WHERE session_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
