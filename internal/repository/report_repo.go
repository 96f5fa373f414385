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

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// Save persists a report only if none exists yet. Losing a race leaves the
// first writer's report in place, so every reader sees the same payload.
func (r *ReportRepo) Save(ctx context.Context, report *models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO session_reports (session_id, report_json, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING
	`, report.SessionID, payload, report.GeneratedAt)
	return err
}

func (r *ReportRepo) Get(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT report_json FROM session_reports WHERE session_id = $1`, sessionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
