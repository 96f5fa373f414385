package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"salescoach-backend/internal/models"
)

type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

// ListByCategory returns a category's chunks in stable (source, index) order.
func (r *ContentRepo) ListByCategory(ctx context.Context, category string) ([]models.ContentChunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, category, source, chunk_index, chunk_text, embedding_json, created_at
		FROM content_chunks
		WHERE LOWER(category) = LOWER($1)
		ORDER BY source, chunk_index
	`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContentChunk
	for rows.Next() {
		var c models.ContentChunk
		var embedding []byte
		if err := rows.Scan(&c.ID, &c.Category, &c.Source, &c.ChunkIndex, &c.Text, &embedding, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(embedding, &c.Embedding); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryStats lists every category with its chunk and source counts for the
// catalog endpoint.
func (r *ContentRepo) CategoryStats(ctx context.Context) ([]*models.CategoryStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*), COUNT(DISTINCT source)
		FROM content_chunks
		GROUP BY category
		ORDER BY category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CategoryStats
	for rows.Next() {
		var s models.CategoryStats
		if err := rows.Scan(&s.Name, &s.ChunkCount, &s.SourceCount); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
