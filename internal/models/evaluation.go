package models

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is a retrieved training passage attached to an evaluation.
type Evidence struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Evaluation is the append-only record of one scored answer. Standard answers
// carry accuracy/completeness/clarity; objection answers carry
// tone/technique/key_points_covered/closing plus the mistake bookkeeping.
type Evaluation struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	UserAnswer string    `json:"user_answer"`

	Accuracy     *float64 `json:"accuracy,omitempty"`
	Completeness *float64 `json:"completeness,omitempty"`
	Clarity      *float64 `json:"clarity,omitempty"`

	Tone             *float64 `json:"tone,omitempty"`
	Technique        *float64 `json:"technique,omitempty"`
	KeyPointsCovered *float64 `json:"key_points_covered,omitempty"`
	Closing          *float64 `json:"closing,omitempty"`

	OverallScore float64 `json:"overall_score"`
	IsObjection  bool    `json:"is_objection"`

	Feedback       string  `json:"feedback"`
	SpokenFeedback string  `json:"spoken_feedback"`
	WhatCorrect    string  `json:"what_correct,omitempty"`
	WhatMissed     string  `json:"what_missed,omitempty"`
	WhatWrong      *string `json:"what_wrong,omitempty"`

	Evidence []Evidence `json:"evidence"`

	ForbiddenMistakesMade  []string `json:"forbidden_mistakes_made"`
	PrescribedLanguageUsed bool     `json:"prescribed_language_used"`

	// Fallback marks evaluations produced by the length heuristic after the
	// completion gateway failed, not by a real judgment.
	Fallback  bool      `json:"fallback"`
	CreatedAt time.Time `json:"created_at"`
}

// StandardJudgment is the strict result type for the standard rubric. All four
// score fields are required; a missing field fails validation at the gateway
// boundary and triggers fallback.
type StandardJudgment struct {
	Accuracy       *float64 `json:"accuracy"`
	Completeness   *float64 `json:"completeness"`
	Clarity        *float64 `json:"clarity"`
	OverallScore   *float64 `json:"overall_score"`
	WhatCorrect    string   `json:"what_correct"`
	WhatMissed     string   `json:"what_missed"`
	WhatWrong      *string  `json:"what_wrong"`
	Feedback       string   `json:"feedback"`
	SpokenFeedback string   `json:"spoken_feedback"`
}

// ObjectionJudgment is the strict result type for the objection rubric. The
// model proposes axis scores and a raw aggregate; penalty and bonus arithmetic
// is applied deterministically afterwards, never by the model.
type ObjectionJudgment struct {
	Tone                   *float64 `json:"tone"`
	Technique              *float64 `json:"technique"`
	KeyPointsCovered       *float64 `json:"key_points_covered"`
	Closing                *float64 `json:"closing"`
	OverallScore           *float64 `json:"overall_score"`
	ForbiddenMistakesMade  []string `json:"forbidden_mistakes_made"`
	PrescribedLanguageUsed bool     `json:"prescribed_language_used"`
	WhatCorrect            string   `json:"what_correct"`
	WhatMissed             string   `json:"what_missed"`
	WhatWrong              *string  `json:"what_wrong"`
	Feedback               string   `json:"feedback"`
	SpokenFeedback         string   `json:"spoken_feedback"`
}
