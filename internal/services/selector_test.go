package services

import (
	"testing"

	"github.com/google/uuid"

	"salescoach-backend/internal/models"
)

func bankOf(types ...string) []*models.Question {
	bank := make([]*models.Question, 0, len(types))
	for i, t := range types {
		bank = append(bank, &models.Question{
			ID:       uuid.New(),
			Position: i,
			Text:     t,
			Type:     t,
		})
	}
	return bank
}

func TestSelectorFollowsBankOrderWithoutSignal(t *testing.T) {
	s := NewSelector(7.5, 5.0)
	bank := bankOf(models.QuestionFactual, models.QuestionScenario, models.QuestionProcedural)

	q := s.Next(bank, nil)
	if q == nil || q.Position != 0 {
		t.Fatalf("expected position 0, got %+v", q)
	}
}

func TestSelectorSteering(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		wantType string
	}{
		{"high score prefers scenario", 8.0, models.QuestionScenario},
		{"threshold exactly raises", 7.5, models.QuestionScenario},
		{"low score prefers factual", 4.0, models.QuestionFactual},
		{"middle keeps bank order", 6.0, models.QuestionProcedural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(7.5, 5.0)
			bank := bankOf(models.QuestionProcedural, models.QuestionScenario, models.QuestionFactual)

			q := s.Next(bank, &tt.score)
			if q == nil || q.Type != tt.wantType {
				t.Fatalf("expected %s, got %+v", tt.wantType, q)
			}
		})
	}
}

func TestSelectorFallsBackWhenPreferredTypeExhausted(t *testing.T) {
	s := NewSelector(7.5, 5.0)
	bank := bankOf(models.QuestionScenario, models.QuestionFactual, models.QuestionProcedural)
	bank[0].Answered = true

	score := 9.0
	q := s.Next(bank, &score)
	// Harder order is scenario then procedural; scenario is gone.
	if q == nil || q.Type != models.QuestionProcedural {
		t.Fatalf("expected procedural, got %+v", q)
	}
}

func TestSelectorExhaustedBankReturnsNil(t *testing.T) {
	s := NewSelector(7.5, 5.0)
	bank := bankOf(models.QuestionFactual, models.QuestionScenario)
	for _, q := range bank {
		q.Answered = true
	}

	score := 6.0
	if q := s.Next(bank, &score); q != nil {
		t.Fatalf("expected nil, got %+v", q)
	}
	if got := s.Remaining(bank); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestSelectorIsDeterministic(t *testing.T) {
	s := NewSelector(7.5, 5.0)
	score := 8.0

	for i := 0; i < 5; i++ {
		bank := bankOf(models.QuestionFactual, models.QuestionScenario, models.QuestionScenario)
		q := s.Next(bank, &score)
		if q == nil || q.Position != 1 {
			t.Fatalf("run %d: expected first scenario at position 1, got %+v", i, q)
		}
	}
}
