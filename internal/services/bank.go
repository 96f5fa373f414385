package services

import (
	"context"
	"log"
	"strings"
)

// Difficulty levels, easiest first.
const (
	DifficultyNewJoining = "new-joining"
	DifficultyBasic      = "basic"
	DifficultyAdvanced   = "advanced"
	DifficultyExpert     = "expert"
	DifficultyAdaptive   = "adaptive"
)

// ValidDifficulty reports whether a client-supplied difficulty is accepted.
func ValidDifficulty(d string) bool {
	switch strings.ToLower(d) {
	case DifficultyNewJoining, DifficultyBasic, DifficultyAdvanced, DifficultyExpert, DifficultyAdaptive:
		return true
	}
	return false
}

// BankResult is the ordered question bank for one session. Degraded marks
// banks assembled from the generic fallback set after a gateway failure.
type BankResult struct {
	Questions []GeneratedQuestionWithMistakes
	Degraded  bool
}

// GeneratedQuestionWithMistakes pairs a generated question with the forbidden
// mistake list that only catalog scenarios carry.
type GeneratedQuestionWithMistakes struct {
	Question          string
	ExpectedAnswer    string
	KeyPoints         []string
	ForbiddenMistakes []string
	Source            string
	Difficulty        string
	Type              string
	IsObjection       bool
}

// BankBuilder produces the ordered question bank for a session: catalog
// objection scenarios first for objection categories, content-derived
// questions for the rest, generic fallbacks when generation fails so a
// session can always start.
type BankBuilder struct {
	catalog    *Catalog
	retrieval  RetrievalGateway
	completion CompletionGateway

	questionsPerMinute float64
	minQuestions       int
	maxQuestions       int
}

func NewBankBuilder(catalog *Catalog, retrieval RetrievalGateway, completion CompletionGateway, questionsPerMinute float64, minQuestions, maxQuestions int) *BankBuilder {
	return &BankBuilder{
		catalog:            catalog,
		retrieval:          retrieval,
		completion:         completion,
		questionsPerMinute: questionsPerMinute,
		minQuestions:       minQuestions,
		maxQuestions:       maxQuestions,
	}
}

// DesiredCount derives the bank size from session duration, clamped between
// the difficulty floor and the absolute maximum.
func (b *BankBuilder) DesiredCount(durationMinutes int, difficulty string) int {
	floor := b.minQuestions
	switch strings.ToLower(difficulty) {
	case DifficultyBasic, DifficultyAdvanced:
		floor = b.minQuestions + 1
	case DifficultyExpert:
		floor = b.minQuestions + 2
	}

	count := int(float64(durationMinutes) * b.questionsPerMinute)
	if count < floor {
		count = floor
	}
	if count > b.maxQuestions {
		count = b.maxQuestions
	}
	return count
}

// Build assembles the ordered bank. Objection scenarios come first for
// objection-tagged categories; remaining slots are content-derived. Any
// completion failure degrades to the fallback set instead of failing the
// session start.
func (b *BankBuilder) Build(ctx context.Context, category, difficulty string, durationMinutes int, mode string, recent []string) BankResult {
	count := b.DesiredCount(durationMinutes, difficulty)

	var out []GeneratedQuestionWithMistakes

	if b.catalog.IsObjectionCategory(category) {
		for _, s := range b.catalog.Scenarios(category, difficulty) {
			if len(out) >= count {
				break
			}
			out = append(out, GeneratedQuestionWithMistakes{
				Question:          s.Question,
				ExpectedAnswer:    s.ExpectedAnswer,
				KeyPoints:         s.KeyPoints,
				ForbiddenMistakes: b.catalog.ForbiddenMistakes(category, s.Question),
				Source:            s.Source,
				Difficulty:        difficulty,
				Type:              s.Type,
				IsObjection:       true,
			})
		}
	}

	remaining := count - len(out)
	if remaining <= 0 {
		return BankResult{Questions: out}
	}

	generated, err := b.generateFromContent(ctx, category, difficulty, remaining, mode, recent)
	if err != nil {
		log.Printf("question generation failed for category %q, using fallback bank: %v", category, err)
		generated = nil
	}

	degraded := false
	if len(generated) == 0 {
		degraded = true
		for _, f := range b.catalog.Fallback(difficulty, remaining) {
			out = append(out, GeneratedQuestionWithMistakes{
				Question:       f.Question,
				ExpectedAnswer: f.ExpectedAnswer,
				KeyPoints:      f.KeyPoints,
				Source:         f.Source,
				Difficulty:     difficulty,
				Type:           f.Type,
			})
		}
	} else {
		for _, g := range generated {
			if len(out) >= count {
				break
			}
			out = append(out, GeneratedQuestionWithMistakes{
				Question:       g.Question,
				ExpectedAnswer: g.ExpectedAnswer,
				KeyPoints:      g.KeyPoints,
				Source:         g.Source,
				Difficulty:     g.Difficulty,
				Type:           g.Type,
				IsObjection:    g.IsObjection,
			})
		}
	}

	return BankResult{Questions: out, Degraded: degraded}
}

func (b *BankBuilder) generateFromContent(ctx context.Context, category, difficulty string, count int, mode string, recent []string) ([]GeneratedQuestionWithMistakes, error) {
	content, err := b.retrieval.FetchAll(ctx, category)
	if err != nil {
		// Generation still runs on expert knowledge when content is missing;
		// only the completion call itself is fatal here.
		log.Printf("category content fetch failed for %q: %v", category, err)
		content = ""
	}

	questions, err := b.completion.GenerateQuestions(ctx, QuestionGenRequest{
		Category:        category,
		Difficulty:      difficulty,
		Count:           count,
		Mode:            mode,
		Content:         content,
		RecentQuestions: recent,
	})
	if err != nil {
		return nil, err
	}

	// Deduplicate against the user's recent questions.
	seen := make(map[string]bool, len(recent))
	for _, r := range recent {
		seen[strings.ToLower(strings.TrimSpace(r))] = true
	}

	out := make([]GeneratedQuestionWithMistakes, 0, count)
	for _, g := range questions {
		key := strings.ToLower(strings.TrimSpace(g.Question))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, GeneratedQuestionWithMistakes{
			Question:       g.Question,
			ExpectedAnswer: g.ExpectedAnswer,
			KeyPoints:      g.KeyPoints,
			Source:         g.Source,
			Difficulty:     g.Difficulty,
			Type:           g.Type,
			IsObjection:    g.IsObjection,
		})
		if len(out) >= count {
			break
		}
	}
	return out, nil
}
