package services

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"salescoach-backend/internal/models"
)

// Embedder turns text into a vector for similarity ranking.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkReader is the persistence slice the retrieval gateway needs.
type ChunkReader interface {
	ListByCategory(ctx context.Context, category string) ([]models.ContentChunk, error)
}

const fetchAllMaxChars = 20000

// RetrievalService implements RetrievalGateway over the embedded chunk store:
// embed the query, rank the category's chunks by cosine similarity in-process,
// return the best matches. A failed embedding degrades to recency order so
// retrieval never hard-fails a turn on its own.
type RetrievalService struct {
	chunks   ChunkReader
	embedder Embedder
	timeout  time.Duration
}

func NewRetrievalService(chunks ChunkReader, embedder Embedder, timeout time.Duration) *RetrievalService {
	return &RetrievalService{
		chunks:   chunks,
		embedder: embedder,
		timeout:  timeout,
	}
}

func (s *RetrievalService) Query(ctx context.Context, text, category string, topK int) ([]models.Evidence, error) {
	if topK <= 0 {
		topK = 5
	}

	all, err := s.chunks.ListByCategory(ctx, category)
	if err != nil {
		return nil, &TransientGatewayError{Gateway: "retrieval", Cause: err}
	}
	if len(all) == 0 {
		return nil, nil
	}

	embedding, err := s.embedQuery(ctx, text)
	if err != nil {
		// Degraded ordering: newest chunks first, no similarity ranking.
		log.Printf("retrieval embedding failed, returning unranked chunks: %v", err)
		return chunksToEvidence(all, topK), nil
	}

	type scored struct {
		chunk models.ContentChunk
		score float64
	}
	ranked := make([]scored, 0, len(all))
	for _, c := range all {
		ranked = append(ranked, scored{chunk: c, score: cosineSimilarity(embedding, c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]models.Evidence, 0, topK)
	for _, r := range ranked {
		if len(out) >= topK {
			break
		}
		out = append(out, models.Evidence{Text: r.chunk.Text, Source: r.chunk.Source})
	}
	return out, nil
}

func (s *RetrievalService) FetchAll(ctx context.Context, category string) (string, error) {
	all, err := s.chunks.ListByCategory(ctx, category)
	if err != nil {
		return "", &TransientGatewayError{Gateway: "retrieval", Cause: err}
	}

	var b strings.Builder
	for _, c := range all {
		if b.Len() >= fetchAllMaxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("SOURCE: " + c.Source + "\nCONTENT: " + c.Text)
	}

	combined := b.String()
	if len(combined) > fetchAllMaxChars {
		combined = combined[:fetchAllMaxChars]
	}
	return combined, nil
}

// embedQuery applies the single bounded retry allowed at the gateway boundary.
func (s *RetrievalService) embedQuery(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	embedding, err := s.embedder.EmbedText(callCtx, text)
	if err == nil {
		return embedding, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	retryCtx, cancelRetry := context.WithTimeout(ctx, s.timeout)
	defer cancelRetry()
	return s.embedder.EmbedText(retryCtx, text)
}

func chunksToEvidence(chunks []models.ContentChunk, topK int) []models.Evidence {
	out := make([]models.Evidence, 0, topK)
	for _, c := range chunks {
		if len(out) >= topK {
			break
		}
		out = append(out, models.Evidence{Text: c.Text, Source: c.Source})
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
