package models

import (
	"time"

	"github.com/google/uuid"
)

// Report aggregates all evaluations of a completed session. Exactly one copy
// is persisted per session; regeneration yields the same payload.
type Report struct {
	SessionID    uuid.UUID `json:"session_id"`
	Category     string    `json:"category"`
	Difficulty   string    `json:"difficulty"`
	Mode         string    `json:"mode"`
	OverallScore *float64  `json:"overall_score"`
	Mastered     bool      `json:"mastered"`

	FactualAvg    *float64 `json:"factual_avg"`
	ProceduralAvg *float64 `json:"procedural_avg"`
	ScenarioAvg   *float64 `json:"scenario_avg"`
	ClarityAvg    *float64 `json:"clarity_avg"`

	Objection *ObjectionSummary `json:"objection,omitempty"`

	Strengths    []string    `json:"strengths"`
	Improvements []string    `json:"improvements"`
	Rows         []ReportRow `json:"rows"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

// ObjectionSummary is present when any evaluation in the session was
// objection-typed.
type ObjectionSummary struct {
	Average       *float64             `json:"average"`
	HandledWell   []ObjectionHighlight `json:"handled_well"`
	NeedsPractice []ObjectionHighlight `json:"needs_practice"`
}

type ObjectionHighlight struct {
	Question string     `json:"question"`
	Score    float64    `json:"score"`
	Evidence []Evidence `json:"evidence"`
	Source   string     `json:"source"`
}

type ReportRow struct {
	Question       string   `json:"question"`
	UserAnswer     string   `json:"user_answer"`
	ExpectedAnswer string   `json:"expected_answer"`
	Source         string   `json:"source"`
	Score          *float64 `json:"score"`
	WhatCorrect    string   `json:"what_correct,omitempty"`
	WhatMissed     string   `json:"what_missed,omitempty"`
	WhatWrong      *string  `json:"what_wrong,omitempty"`
}
