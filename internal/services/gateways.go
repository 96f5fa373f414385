package services

import (
	"context"

	"salescoach-backend/internal/models"
)

// RetrievalGateway abstracts "fetch relevant training passages for a query,
// scoped to a category". Implementations degrade rather than block: a failed
// lookup yields an error the caller turns into empty evidence.
type RetrievalGateway interface {
	// Query returns up to topK passages relevant to the text.
	Query(ctx context.Context, text, category string, topK int) ([]models.Evidence, error)
	// FetchAll returns the full concatenated content of a category.
	FetchAll(ctx context.Context, category string) (string, error)
}

// QuestionGenRequest asks the completion gateway for a content-derived bank.
type QuestionGenRequest struct {
	Category        string
	Difficulty      string
	Count           int
	Mode            string
	Content         string
	RecentQuestions []string
}

// JudgmentRequest asks the completion gateway to score one answer.
type JudgmentRequest struct {
	Question *models.Question
	Answer   string
	Context  string
	ExamMode bool
}

// CompletionGateway abstracts structured-prompt completion. Implementations
// must fail fast with a TransientGatewayError on malformed or missing-field
// responses so callers can trigger their fallback paths.
type CompletionGateway interface {
	GenerateQuestions(ctx context.Context, req QuestionGenRequest) ([]models.GeneratedQuestion, error)
	JudgeStandard(ctx context.Context, req JudgmentRequest) (*models.StandardJudgment, error)
	JudgeObjection(ctx context.Context, req JudgmentRequest) (*models.ObjectionJudgment, error)
}
