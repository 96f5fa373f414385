package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salescoach-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `
	id, user_id, category, difficulty, duration_minutes, mode, status,
	started_at, last_resumed_at, elapsed_seconds, questions_asked,
	running_score, overall_score, completion_reason, ended_at, created_at
`

func scanSession(row pgx.Row) (*models.TrainingSession, error) {
	var s models.TrainingSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.Category, &s.Difficulty, &s.DurationMinutes,
		&s.Mode, &s.Status, &s.StartedAt, &s.LastResumedAt, &s.ElapsedSeconds,
		&s.QuestionsAsked, &s.RunningScore, &s.OverallScore,
		&s.CompletionReason, &s.EndedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *models.TrainingSession) error {
	query := `
		INSERT INTO training_sessions (id, user_id, category, difficulty, duration_minutes, mode, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING started_at, created_at
	`
	return r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.Category, s.Difficulty, s.DurationMinutes, s.Mode, s.Status,
	).Scan(&s.StartedAt, &s.CreatedAt)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM training_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// Activate moves a pending session to active and starts its clock. The guard
// makes a repeated call a no-op.
func (r *SessionRepo) Activate(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	query := `
		UPDATE training_sessions
		SET status = 'active', last_resumed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		return r.GetByID(ctx, id)
	}
	return s, err
}

// Pause freezes the clock: elapsed time accrued since the last resume is
// banked into elapsed_seconds. Only an active session pauses; anything else
// returns the row unchanged so the caller can report the state conflict.
func (r *SessionRepo) Pause(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error) {
	query := `
		UPDATE training_sessions
		SET status = 'paused',
			elapsed_seconds = elapsed_seconds + GREATEST(0, EXTRACT(EPOCH FROM (NOW() - last_resumed_at))::INT),
			last_resumed_at = NULL
		WHERE id = $1 AND status = 'active'
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		s, err = r.GetByID(ctx, id)
		return s, false, err
	}
	return s, err == nil, err
}

// Resume restarts the clock on a paused session.
func (r *SessionRepo) Resume(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error) {
	query := `
		UPDATE training_sessions
		SET status = 'active', last_resumed_at = NOW()
		WHERE id = $1 AND status = 'paused'
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		s, err = r.GetByID(ctx, id)
		return s, false, err
	}
	return s, err == nil, err
}

// RecordTurn bumps the asked counter and the running mean after an answer is
// evaluated.
func (r *SessionRepo) RecordTurn(ctx context.Context, id uuid.UUID, questionsAsked int, runningScore float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE training_sessions
		SET questions_asked = $2, running_score = $3
		WHERE id = $1
	`, id, questionsAsked, runningScore)
	return err
}

// CompleteIfOpen closes the session if it is not already completed and reports
// whether this call won the transition. Concurrent enders race on the status
// guard; exactly one caller sees won=true and owns report generation.
func (r *SessionRepo) CompleteIfOpen(ctx context.Context, id uuid.UUID, reason string, overallScore *float64) (*models.TrainingSession, bool, error) {
	query := `
		UPDATE training_sessions
		SET status = 'completed',
			completion_reason = $2,
			overall_score = $3,
			elapsed_seconds = elapsed_seconds + CASE
				WHEN status = 'active' AND last_resumed_at IS NOT NULL
				THEN GREATEST(0, EXTRACT(EPOCH FROM (NOW() - last_resumed_at))::INT)
				ELSE 0
			END,
			last_resumed_at = NULL,
			ended_at = NOW()
		WHERE id = $1 AND status != 'completed'
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		s, err = r.GetByID(ctx, id)
		return s, false, err
	}
	return s, err == nil, err
}

// ListExpirable returns timed sessions whose allotted duration has run out
// while active. The sweeper closes them with reason time_expired.
func (r *SessionRepo) ListExpirable(ctx context.Context) ([]*models.TrainingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM training_sessions
		WHERE status = 'active'
		  AND mode != 'practice'
		  AND elapsed_seconds + GREATEST(0, EXTRACT(EPOCH FROM (NOW() - last_resumed_at))::INT) >= duration_minutes * 60
		LIMIT 100
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TrainingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentCompletedScores returns the overall scores of the user's latest
// completed sessions in the category, newest first. Feeds adaptive difficulty.
func (r *SessionRepo) RecentCompletedScores(ctx context.Context, userID uuid.UUID, category string, limit int) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT overall_score
		FROM training_sessions
		WHERE user_id = $1 AND category = $2 AND status = 'completed' AND overall_score IS NOT NULL
		ORDER BY ended_at DESC
		LIMIT $3
	`, userID, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// RecentQuestionTexts returns question texts from the user's latest sessions
// in the category so new banks avoid repeats.
func (r *SessionRepo) RecentQuestionTexts(ctx context.Context, userID uuid.UUID, category string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.question_text
		FROM session_questions q
		JOIN training_sessions s ON s.id = q.session_id
		WHERE s.user_id = $1 AND s.category = $2
		ORDER BY q.created_at DESC
		LIMIT $3
	`, userID, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
