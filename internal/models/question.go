package models

import (
	"time"

	"github.com/google/uuid"
)

// Question types, ordered easiest to hardest for adaptive selection.
const (
	QuestionFactual    = "factual"
	QuestionProcedural = "procedural"
	QuestionScenario   = "scenario"
)

// Question is one slot of a session's pre-generated bank. Immutable once the
// bank is persisted; only the answered flag changes afterwards.
type Question struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	Position          int       `json:"position"`
	Text              string    `json:"text"`
	ExpectedAnswer    string    `json:"expected_answer"`
	KeyPoints         []string  `json:"key_points"`
	ForbiddenMistakes []string  `json:"forbidden_mistakes,omitempty"`
	Source            string    `json:"source"`
	Difficulty        string    `json:"difficulty"`
	Type              string    `json:"type"`
	IsObjection       bool      `json:"is_objection"`
	Answered          bool      `json:"answered"`
	CreatedAt         time.Time `json:"created_at"`
}

// GeneratedQuestion is the shape the completion gateway returns before the
// bank is persisted with ids and positions.
type GeneratedQuestion struct {
	Question       string   `json:"question"`
	ExpectedAnswer string   `json:"expected_answer"`
	KeyPoints      []string `json:"key_points"`
	Source         string   `json:"source"`
	Difficulty     string   `json:"difficulty"`
	Type           string   `json:"type"`
	IsObjection    bool     `json:"is_objection"`
}
