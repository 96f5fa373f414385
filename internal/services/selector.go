package services

import (
	"salescoach-backend/internal/models"
)

// Selector picks the next question from a session's bank based on how the
// trainee is doing. A running mean at or above the raise threshold steers
// toward harder question types, below the lower threshold toward easier ones,
// and in between the bank's own order is kept.
type Selector struct {
	raiseThreshold float64
	lowerThreshold float64
}

func NewSelector(raiseThreshold, lowerThreshold float64) *Selector {
	return &Selector{raiseThreshold: raiseThreshold, lowerThreshold: lowerThreshold}
}

// typePreference orders question types for a steering direction, hardest or
// easiest first.
var (
	harderFirst = []string{models.QuestionScenario, models.QuestionProcedural, models.QuestionFactual}
	easierFirst = []string{models.QuestionFactual, models.QuestionProcedural, models.QuestionScenario}
)

// Next returns the next unanswered question, or nil when the bank is
// exhausted. runningScore is nil before the first evaluation; the bank order
// applies until there is a signal to steer on. Selection is deterministic:
// ties within a preferred type resolve by position.
func (s *Selector) Next(bank []*models.Question, runningScore *float64) *models.Question {
	var preference []string
	if runningScore != nil {
		switch {
		case *runningScore >= s.raiseThreshold:
			preference = harderFirst
		case *runningScore < s.lowerThreshold:
			preference = easierFirst
		}
	}

	for _, t := range preference {
		for _, q := range bank {
			if !q.Answered && q.Type == t {
				return q
			}
		}
	}

	// No steering, or nothing left of any preferred type: strict bank order.
	for _, q := range bank {
		if !q.Answered {
			return q
		}
	}
	return nil
}

// Remaining counts unanswered questions.
func (s *Selector) Remaining(bank []*models.Question) int {
	n := 0
	for _, q := range bank {
		if !q.Answered {
			n++
		}
	}
	return n
}
