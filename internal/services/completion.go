package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"salescoach-backend/internal/models"
)

// GeminiService implements CompletionGateway on Gemini, plus the embedding
// support the retrieval gateway needs. Every outbound call runs under a
// timeout and is retried at most once before the typed error is returned.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	embedder *genai.EmbeddingModel

	generationTimeout time.Duration
	evaluationTimeout time.Duration
	rateChan          chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName, embeddingModel string, concurrentReqs int, generationTimeout, evaluationTimeout time.Duration) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:            client,
		model:             model,
		embedder:          client.EmbeddingModel(embeddingModel),
		generationTimeout: generationTimeout,
		evaluationTimeout: evaluationTimeout,
		rateChan:          rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// completeJSON sends the prompt once under the timeout and returns the raw
// response text.
func (s *GeminiService) completeJSON(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini returned empty response")
	}
	return text, nil
}

// completeWithRetry applies the single bounded retry the gateway contract
// allows, then wraps the failure as transient.
func (s *GeminiService) completeWithRetry(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	text, err := s.completeJSON(ctx, prompt, timeout)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", &TransientGatewayError{Gateway: "completion", Cause: err}
	}

	log.Printf("completion call failed, retrying once: %v", err)
	text, err = s.completeJSON(ctx, prompt, timeout)
	if err != nil {
		return "", &TransientGatewayError{Gateway: "completion", Cause: err}
	}
	return text, nil
}

// EmbedText embeds a single text for retrieval ranking.
func (s *GeminiService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	resp, err := s.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding error: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("Gemini returned empty embedding")
	}
	return resp.Embedding.Values, nil
}

func (s *GeminiService) GenerateQuestions(ctx context.Context, req QuestionGenRequest) ([]models.GeneratedQuestion, error) {
	prompt := buildQuestionPrompt(req)

	raw, err := s.completeWithRetry(ctx, prompt, s.generationTimeout)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []models.GeneratedQuestion `json:"questions"`
	}
	if err := unmarshalJSONResponse(raw, &parsed); err != nil {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: err}
	}

	valid := make([]models.GeneratedQuestion, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		if q.Question == "" || q.ExpectedAnswer == "" {
			continue
		}
		if len(q.KeyPoints) == 0 {
			continue
		}
		if q.Source == "" {
			q.Source = "General Knowledge"
		}
		if q.Difficulty == "" {
			q.Difficulty = req.Difficulty
		}
		switch q.Type {
		case models.QuestionFactual, models.QuestionProcedural, models.QuestionScenario:
		default:
			q.Type = models.QuestionFactual
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: fmt.Errorf("no usable questions in response")}
	}
	return valid, nil
}

func (s *GeminiService) JudgeStandard(ctx context.Context, req JudgmentRequest) (*models.StandardJudgment, error) {
	prompt := buildStandardJudgmentPrompt(req)

	raw, err := s.completeWithRetry(ctx, prompt, s.evaluationTimeout)
	if err != nil {
		return nil, err
	}

	var j models.StandardJudgment
	if err := unmarshalJSONResponse(raw, &j); err != nil {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: err}
	}
	if err := validateScores(map[string]*float64{
		"accuracy":      j.Accuracy,
		"completeness":  j.Completeness,
		"clarity":       j.Clarity,
		"overall_score": j.OverallScore,
	}); err != nil {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: err}
	}
	return &j, nil
}

func (s *GeminiService) JudgeObjection(ctx context.Context, req JudgmentRequest) (*models.ObjectionJudgment, error) {
	prompt := buildObjectionJudgmentPrompt(req)

	raw, err := s.completeWithRetry(ctx, prompt, s.evaluationTimeout)
	if err != nil {
		return nil, err
	}

	var j models.ObjectionJudgment
	if err := unmarshalJSONResponse(raw, &j); err != nil {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: err}
	}
	if err := validateScores(map[string]*float64{
		"tone":               j.Tone,
		"technique":          j.Technique,
		"key_points_covered": j.KeyPointsCovered,
		"closing":            j.Closing,
		"overall_score":      j.OverallScore,
	}); err != nil {
		return nil, &TransientGatewayError{Gateway: "completion", Cause: err}
	}
	if j.ForbiddenMistakesMade == nil {
		j.ForbiddenMistakesMade = []string{}
	}
	return &j, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// unmarshalJSONResponse tolerates markdown fences and surrounding commentary,
// but fails on anything that does not contain a parseable object.
func unmarshalJSONResponse(raw string, out interface{}) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no valid JSON object in response")
}

func validateScores(fields map[string]*float64) error {
	for name, v := range fields {
		if v == nil {
			return fmt.Errorf("judgment missing required field %q", name)
		}
		if *v < 0 || *v > 10 {
			return fmt.Errorf("judgment field %q out of range: %v", name, *v)
		}
	}
	return nil
}
