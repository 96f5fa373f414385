package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"salescoach-backend/internal/models"
)

type stubCompletion struct {
	questions []models.GeneratedQuestion
	standard  *models.StandardJudgment
	objection *models.ObjectionJudgment
	err       error
}

func (s *stubCompletion) GenerateQuestions(ctx context.Context, req QuestionGenRequest) ([]models.GeneratedQuestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

func (s *stubCompletion) JudgeStandard(ctx context.Context, req JudgmentRequest) (*models.StandardJudgment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.standard, nil
}

func (s *stubCompletion) JudgeObjection(ctx context.Context, req JudgmentRequest) (*models.ObjectionJudgment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.objection, nil
}

type stubRetrieval struct {
	evidence  []models.Evidence
	content   string
	err       error
	lastQuery string
}

func (s *stubRetrieval) Query(ctx context.Context, text, category string, topK int) ([]models.Evidence, error) {
	s.lastQuery = text
	if s.err != nil {
		return nil, s.err
	}
	return s.evidence, nil
}

func (s *stubRetrieval) FetchAll(ctx context.Context, category string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

func fptr(v float64) *float64 { return &v }

const testCatalogYAML = `version: 1
penalties:
  apologizing: 3
  arguing: 5
  over-explaining: 2
  losing-control: 4
  default: 2
categories:
  - name: "Sales Objections"
    scenarios:
      basic:
        - question: "This implant is too expensive."
          expected_answer: "Quality lasts. Cheap implants fail and cost double."
          key_points:
            - "quality lasts longer"
            - "cheap implants fail"
          forbidden_mistakes:
            - "apologizing"
            - "arguing"
          source: "Objection Handling Guide"
        - question: "I heard implants hurt for months afterwards."
          expected_answer: "Modern techniques keep recovery to days, not months."
          key_points:
            - "recovery takes days"
          forbidden_mistakes:
            - "over-explaining"
          source: "Objection Handling Guide"
fallback_questions:
  - question: "Describe your product's main advantage."
    expected_answer: "Durability and natural appearance."
    key_points:
      - "durability"
    source: "General Knowledge"
    type: "factual"
`

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return c
}

func objectionQuestion() *models.Question {
	return &models.Question{
		ID:                uuid.New(),
		SessionID:         uuid.New(),
		Text:              "This implant is too expensive.",
		ExpectedAnswer:    "Quality lasts. Cheap implants fail and cost double.",
		KeyPoints:         []string{"quality lasts longer", "cheap implants fail"},
		ForbiddenMistakes: []string{"apologizing", "arguing"},
		Type:              models.QuestionScenario,
		IsObjection:       true,
	}
}

func standardQuestion() *models.Question {
	return &models.Question{
		ID:             uuid.New(),
		SessionID:      uuid.New(),
		Text:           "What materials are zirconia crowns made of?",
		ExpectedAnswer: "Zirconium dioxide ceramic, milled and sintered.",
		KeyPoints:      []string{"zirconium dioxide", "milled from a block", "sintered at high temperature"},
		Type:           models.QuestionFactual,
	}
}

func TestEvaluateObjectionPenaltiesAreDeterministic(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		objection: &models.ObjectionJudgment{
			Tone:                  fptr(8),
			Technique:             fptr(8),
			KeyPointsCovered:      fptr(8),
			Closing:               fptr(8),
			OverallScore:          fptr(9),
			ForbiddenMistakesMade: []string{"apologizing for the price", "arguing with the customer"},
			Feedback:              "Solid but avoid the apology.",
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	eval := e.Evaluate(context.Background(), objectionQuestion(), "Look, the quality is worth it.", "Sales Objections", false)

	// raw 9 minus apologizing (3) minus arguing (5)
	if eval.OverallScore != 1 {
		t.Fatalf("expected overall 1, got %v", eval.OverallScore)
	}
	if len(eval.ForbiddenMistakesMade) != 2 {
		t.Fatalf("expected 2 mistakes, got %v", eval.ForbiddenMistakesMade)
	}
	if eval.ForbiddenMistakesMade[0] != "apologizing" || eval.ForbiddenMistakesMade[1] != "arguing" {
		t.Fatalf("mistakes not normalized: %v", eval.ForbiddenMistakesMade)
	}

	// Same inputs, same score.
	again := e.Evaluate(context.Background(), objectionQuestion(), "Look, the quality is worth it.", "Sales Objections", false)
	if again.OverallScore != eval.OverallScore {
		t.Fatalf("expected deterministic score, got %v then %v", eval.OverallScore, again.OverallScore)
	}
}

func TestEvaluateObjectionRepeatedMistakePhrasingsCountOnce(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		objection: &models.ObjectionJudgment{
			Tone:                  fptr(8),
			Technique:             fptr(8),
			KeyPointsCovered:      fptr(8),
			Closing:               fptr(8),
			OverallScore:          fptr(9),
			ForbiddenMistakesMade: []string{"apologizing for the price", "apologizing at the end"},
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	eval := e.Evaluate(context.Background(), objectionQuestion(), "Look, the value speaks for itself.", "Sales Objections", false)

	// Two phrasings of the same mistake deduct once: 9 - 3.
	if eval.OverallScore != 6 {
		t.Fatalf("expected overall 6, got %v", eval.OverallScore)
	}
	if len(eval.ForbiddenMistakesMade) != 1 || eval.ForbiddenMistakesMade[0] != "apologizing" {
		t.Fatalf("expected single normalized mistake, got %v", eval.ForbiddenMistakesMade)
	}
}

func TestEvaluateRetrievesEvidenceForAnswer(t *testing.T) {
	catalog := testCatalog(t)
	retrieval := &stubRetrieval{}
	completion := &stubCompletion{
		standard: &models.StandardJudgment{
			Accuracy:     fptr(7),
			Completeness: fptr(7),
			Clarity:      fptr(7),
			OverallScore: fptr(7),
		},
	}
	e := NewEvaluator(completion, retrieval, catalog)

	answer := "Zirconia crowns are milled from zirconium dioxide blocks."
	e.Evaluate(context.Background(), standardQuestion(), answer, "Materials", false)

	if retrieval.lastQuery != answer {
		t.Fatalf("expected evidence lookup for the answer text, queried %q", retrieval.lastQuery)
	}
}

func TestEvaluateObjectionCleanAnswerKeepsRawScore(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		objection: &models.ObjectionJudgment{
			Tone:             fptr(8),
			Technique:        fptr(7),
			KeyPointsCovered: fptr(7),
			Closing:          fptr(8),
			OverallScore:     fptr(7.5),
			Feedback:         "Calm, confident handling.",
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	eval := e.Evaluate(context.Background(), objectionQuestion(), "That is a fair concern, let me walk you through the value.", "Sales Objections", false)
	if eval.OverallScore != 7.5 {
		t.Fatalf("expected raw score to pass through unchanged, got %v", eval.OverallScore)
	}
	if len(eval.ForbiddenMistakesMade) != 0 {
		t.Fatalf("expected no mistakes, got %v", eval.ForbiddenMistakesMade)
	}
}

func TestEvaluateObjectionScoreClampedToZero(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		objection: &models.ObjectionJudgment{
			Tone:                  fptr(2),
			Technique:             fptr(2),
			KeyPointsCovered:      fptr(2),
			Closing:               fptr(2),
			OverallScore:          fptr(2),
			ForbiddenMistakesMade: []string{"apologizing", "arguing", "losing control"},
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	eval := e.Evaluate(context.Background(), objectionQuestion(), "Sorry, maybe you are right.", "Sales Objections", false)
	if eval.OverallScore != 0 {
		t.Fatalf("expected clamp to 0, got %v", eval.OverallScore)
	}
}

func TestEvaluateObjectionBonusesClampedToTen(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		objection: &models.ObjectionJudgment{
			Tone:                   fptr(10),
			Technique:              fptr(10),
			KeyPointsCovered:       fptr(10),
			Closing:                fptr(10),
			OverallScore:           fptr(9.5),
			PrescribedLanguageUsed: true,
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	answer := "Our quality lasts longer while cheap implants fail early, so you pay once."
	eval := e.Evaluate(context.Background(), objectionQuestion(), answer, "Sales Objections", false)

	if !eval.PrescribedLanguageUsed {
		t.Fatal("expected prescribed language flag to carry over")
	}
	if eval.OverallScore != 10 {
		t.Fatalf("expected clamp to 10, got %v", eval.OverallScore)
	}
}

func TestEvaluateStandardKeyPointRescue(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{
		standard: &models.StandardJudgment{
			Accuracy:     fptr(3),
			Completeness: fptr(3),
			Clarity:      fptr(3),
			OverallScore: fptr(3),
			Feedback:     "Too vague.",
		},
	}
	e := NewEvaluator(completion, &stubRetrieval{}, catalog)

	// Covers 2 of 3 key points, which is over the rescue ratio.
	answer := "They are zirconium dioxide ceramic, milled from a solid block on a CNC machine."
	eval := e.Evaluate(context.Background(), standardQuestion(), answer, "Crowns", false)

	if eval.OverallScore != keyPointRescueScore {
		t.Fatalf("expected rescue floor %v, got %v", keyPointRescueScore, eval.OverallScore)
	}
}

func TestEvaluateFallbackOnGatewayFailure(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{err: &TransientGatewayError{Gateway: "completion", Cause: errors.New("timeout")}}
	e := NewEvaluator(completion, &stubRetrieval{err: errors.New("redis down")}, catalog)

	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"short answer", "It is durable.", fallbackShortScore},
		{"long answer", "The crown is milled from zirconium dioxide, sintered at high temperature, and polished so it keeps a natural translucent appearance over many years of daily use.", fallbackLongScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := e.Evaluate(context.Background(), standardQuestion(), tt.answer, "Crowns", false)
			if !eval.Fallback {
				t.Fatal("expected fallback flag")
			}
			if eval.OverallScore != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, eval.OverallScore)
			}
		})
	}
}

func TestEvaluateEmptyAnswerSkipsGateways(t *testing.T) {
	catalog := testCatalog(t)
	completion := &stubCompletion{err: errors.New("should not be called")}
	e := NewEvaluator(completion, &stubRetrieval{err: errors.New("should not be called")}, catalog)

	eval := e.Evaluate(context.Background(), standardQuestion(), "   ", "Crowns", false)
	if eval.OverallScore != 0 {
		t.Fatalf("expected 0 for empty answer, got %v", eval.OverallScore)
	}
	if eval.Fallback {
		t.Fatal("empty answer is not a gateway fallback")
	}
}

func TestKeywordCoverage(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		keyPoints []string
		want      float64
	}{
		{"full coverage", "quality lasts longer and cheap implants fail", []string{"quality lasts longer", "cheap implants fail"}, 1},
		{"half coverage", "the quality lasts longer for sure", []string{"quality lasts longer", "cheap implants fail"}, 0.5},
		{"no key points", "anything", nil, 0},
		{"no overlap", "completely unrelated text here", []string{"quality lasts longer"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keywordCoverage(tt.answer, tt.keyPoints); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
