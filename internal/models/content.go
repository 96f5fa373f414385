package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentChunk is one embedded passage of ingested training material. The
// ingestion pipeline that writes these lives outside this service; the
// retrieval gateway only reads them.
type ContentChunk struct {
	ID         uuid.UUID `json:"id"`
	Category   string    `json:"category"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type CategoryStats struct {
	Name        string `json:"name"`
	SourceCount int    `json:"source_count"`
	ChunkCount  int    `json:"chunk_count"`
}
