package services

import (
	"context"
	"errors"
	"testing"

	"salescoach-backend/internal/models"
)

func newTestBankBuilder(t *testing.T, completion CompletionGateway, retrieval RetrievalGateway) *BankBuilder {
	t.Helper()
	return NewBankBuilder(testCatalog(t), retrieval, completion, 0.6, 7, 25)
}

func TestDesiredCount(t *testing.T) {
	b := newTestBankBuilder(t, &stubCompletion{}, &stubRetrieval{})

	tests := []struct {
		name       string
		minutes    int
		difficulty string
		want       int
	}{
		{"short session hits floor", 5, DifficultyNewJoining, 7},
		{"basic floor is higher", 5, DifficultyBasic, 8},
		{"expert floor is highest", 5, DifficultyExpert, 9},
		{"duration drives count", 30, DifficultyBasic, 18},
		{"long session hits cap", 120, DifficultyAdvanced, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.DesiredCount(tt.minutes, tt.difficulty); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestBuildObjectionCategoryPutsScenariosFirst(t *testing.T) {
	completion := &stubCompletion{
		questions: []models.GeneratedQuestion{
			{Question: "What is zirconia?", ExpectedAnswer: "A ceramic.", KeyPoints: []string{"ceramic"}, Type: models.QuestionFactual},
			{Question: "How is a crown fitted?", ExpectedAnswer: "In stages.", KeyPoints: []string{"stages"}, Type: models.QuestionProcedural},
		},
	}
	b := newTestBankBuilder(t, completion, &stubRetrieval{content: "SOURCE: guide\nCONTENT: stuff"})

	result := b.Build(context.Background(), "Sales Objections", DifficultyBasic, 10, models.ModeStandard, nil)

	if result.Degraded {
		t.Fatal("did not expect a degraded bank")
	}
	if len(result.Questions) == 0 {
		t.Fatal("expected questions")
	}

	// Every catalog scenario leads the bank; content-derived questions only
	// follow once the scenarios are spent.
	objections := 0
	seenContent := false
	for _, q := range result.Questions {
		if q.IsObjection {
			if seenContent {
				t.Fatalf("objection scenario placed after a content question: %+v", q)
			}
			objections++
		} else {
			seenContent = true
		}
	}
	if objections < 2 {
		t.Fatalf("expected at least 2 objection scenarios, got %d", objections)
	}

	first := result.Questions[0]
	if len(first.ForbiddenMistakes) == 0 {
		t.Fatal("expected scenario to carry forbidden mistakes")
	}
}

func TestBuildFallsBackWhenGenerationFails(t *testing.T) {
	completion := &stubCompletion{err: &TransientGatewayError{Gateway: "completion", Cause: errors.New("quota")}}
	b := newTestBankBuilder(t, completion, &stubRetrieval{})

	result := b.Build(context.Background(), "Crowns", DifficultyBasic, 15, models.ModeStandard, nil)

	if !result.Degraded {
		t.Fatal("expected degraded flag")
	}
	want := b.DesiredCount(15, DifficultyBasic)
	if len(result.Questions) != want {
		t.Fatalf("expected %d fallback questions, got %d", want, len(result.Questions))
	}
	for _, q := range result.Questions {
		if q.Question == "" || q.ExpectedAnswer == "" {
			t.Fatalf("fallback question incomplete: %+v", q)
		}
	}
}

func TestBuildSkipsRecentDuplicates(t *testing.T) {
	completion := &stubCompletion{
		questions: []models.GeneratedQuestion{
			{Question: "What is zirconia?", ExpectedAnswer: "A ceramic.", KeyPoints: []string{"ceramic"}, Type: models.QuestionFactual},
			{Question: "How long does an implant last?", ExpectedAnswer: "Decades.", KeyPoints: []string{"decades"}, Type: models.QuestionFactual},
		},
	}
	b := newTestBankBuilder(t, completion, &stubRetrieval{})

	result := b.Build(context.Background(), "Crowns", DifficultyBasic, 10, models.ModeStandard, []string{"what is zirconia?"})

	for _, q := range result.Questions {
		if q.Question == "What is zirconia?" {
			t.Fatal("recent question was not filtered out")
		}
	}
}

func TestBuildSurvivesRetrievalFailure(t *testing.T) {
	completion := &stubCompletion{
		questions: []models.GeneratedQuestion{
			{Question: "What is zirconia?", ExpectedAnswer: "A ceramic.", KeyPoints: []string{"ceramic"}, Type: models.QuestionFactual},
		},
	}
	retrieval := &stubRetrieval{err: errors.New("store down")}
	b := newTestBankBuilder(t, completion, retrieval)

	result := b.Build(context.Background(), "Crowns", DifficultyBasic, 10, models.ModeStandard, nil)
	if result.Degraded {
		t.Fatal("content fetch failure alone must not degrade the bank")
	}
	if len(result.Questions) == 0 {
		t.Fatal("expected questions")
	}
}
