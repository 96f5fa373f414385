package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"salescoach-backend/internal/models"
)

const (
	evidenceTopK = 5

	// Scores assigned when the completion gateway is unavailable and the
	// length heuristic takes over.
	fallbackShortScore = 3.0
	fallbackLongScore  = 6.0
	fallbackShortWords = 15

	// A standard answer covering at least half of the key points never scores
	// below this floor, whatever the model said.
	keyPointRescueRatio = 0.5
	keyPointRescueScore = 6.5

	prescribedLanguageBonus = 2.0
	allKeyPointsBonus       = 1.0
)

// Evaluator scores one answer against its question. Standard questions use the
// accuracy/completeness/clarity rubric; objection scenarios use
// tone/technique/key-point-coverage/closing with deterministic penalty and
// bonus arithmetic applied after the model's raw judgment. Evaluate never
// fails: every gateway error degrades to the length heuristic.
type Evaluator struct {
	completion CompletionGateway
	retrieval  RetrievalGateway
	catalog    *Catalog
}

func NewEvaluator(completion CompletionGateway, retrieval RetrievalGateway, catalog *Catalog) *Evaluator {
	return &Evaluator{completion: completion, retrieval: retrieval, catalog: catalog}
}

func (e *Evaluator) Evaluate(ctx context.Context, q *models.Question, answer, category string, examMode bool) *models.Evaluation {
	eval := &models.Evaluation{
		ID:          uuid.New(),
		SessionID:   q.SessionID,
		QuestionID:  q.ID,
		UserAnswer:  answer,
		IsObjection: q.IsObjection,
		Evidence:    []models.Evidence{},
		CreatedAt:   time.Now(),
	}

	if strings.TrimSpace(answer) == "" {
		eval.OverallScore = 0
		eval.Feedback = "No answer was given. Walk through how you would respond, even a partial attempt is scored."
		eval.SpokenFeedback = "You didn't answer this one. Give it a try next time, partial answers count too."
		eval.WhatMissed = q.ExpectedAnswer
		return eval
	}

	evidence := e.gatherEvidence(ctx, answer, category, q.ID)
	eval.Evidence = evidence

	if q.IsObjection {
		e.scoreObjection(ctx, q, answer, examMode, evidence, eval)
	} else {
		e.scoreStandard(ctx, q, answer, examMode, evidence, eval)
	}
	return eval
}

// gatherEvidence pulls the passages most relevant to what the trainee actually
// said, so the judge checks claims against material supporting the answer, not
// the question. Retrieval failure degrades to empty evidence, never blocks
// scoring.
func (e *Evaluator) gatherEvidence(ctx context.Context, answer, category string, questionID uuid.UUID) []models.Evidence {
	evidence, err := e.retrieval.Query(ctx, answer, category, evidenceTopK)
	if err != nil {
		log.Printf("evidence retrieval failed for question %s: %v", questionID, err)
		return []models.Evidence{}
	}
	if evidence == nil {
		evidence = []models.Evidence{}
	}
	return evidence
}

func (e *Evaluator) scoreStandard(ctx context.Context, q *models.Question, answer string, examMode bool, evidence []models.Evidence, eval *models.Evaluation) {
	judgment, err := e.completion.JudgeStandard(ctx, JudgmentRequest{
		Question: q,
		Answer:   answer,
		Context:  evidenceContext(evidence),
		ExamMode: examMode,
	})
	if err != nil {
		log.Printf("standard judgment failed for question %s, using fallback: %v", q.ID, err)
		e.applyFallback(answer, eval)
		return
	}

	eval.Accuracy = judgment.Accuracy
	eval.Completeness = judgment.Completeness
	eval.Clarity = judgment.Clarity
	eval.Feedback = judgment.Feedback
	eval.SpokenFeedback = judgment.SpokenFeedback
	eval.WhatCorrect = judgment.WhatCorrect
	eval.WhatMissed = judgment.WhatMissed
	eval.WhatWrong = judgment.WhatWrong

	score := *judgment.OverallScore

	// A harsh model score is overridden when the answer demonstrably covers
	// most of the expected key points.
	if score < keyPointRescueScore && keywordCoverage(answer, q.KeyPoints) >= keyPointRescueRatio {
		score = keyPointRescueScore
	}

	eval.OverallScore = clampScore(score)
}

func (e *Evaluator) scoreObjection(ctx context.Context, q *models.Question, answer string, examMode bool, evidence []models.Evidence, eval *models.Evaluation) {
	judgment, err := e.completion.JudgeObjection(ctx, JudgmentRequest{
		Question: q,
		Answer:   answer,
		Context:  evidenceContext(evidence),
		ExamMode: examMode,
	})
	if err != nil {
		log.Printf("objection judgment failed for question %s, using fallback: %v", q.ID, err)
		e.applyFallback(answer, eval)
		return
	}

	eval.Tone = judgment.Tone
	eval.Technique = judgment.Technique
	eval.KeyPointsCovered = judgment.KeyPointsCovered
	eval.Closing = judgment.Closing
	eval.Feedback = judgment.Feedback
	eval.SpokenFeedback = judgment.SpokenFeedback
	eval.WhatCorrect = judgment.WhatCorrect
	eval.WhatMissed = judgment.WhatMissed
	eval.WhatWrong = judgment.WhatWrong
	eval.PrescribedLanguageUsed = judgment.PrescribedLanguageUsed

	mistakes := e.normalizeMistakes(judgment.ForbiddenMistakesMade)
	eval.ForbiddenMistakesMade = mistakes

	// Penalty and bonus arithmetic stays out of the model: the judgment's
	// overall is the raw aggregate and every adjustment happens here, so the
	// same answer always lands on the same score.
	score := *judgment.OverallScore
	for _, m := range mistakes {
		score -= e.catalog.Penalty(m)
	}
	if judgment.PrescribedLanguageUsed {
		score += prescribedLanguageBonus
	}
	if len(q.KeyPoints) > 0 && keywordCoverage(answer, q.KeyPoints) >= 1.0 {
		score += allKeyPointsBonus
	}

	eval.OverallScore = clampScore(score)
}

// applyFallback scores by answer length when no judgment is available. Short
// answers land in the "needs elaboration" band, longer ones get provisional
// credit. The flag keeps these out of mastery decisions downstream.
func (e *Evaluator) applyFallback(answer string, eval *models.Evaluation) {
	eval.Fallback = true
	if len(strings.Fields(answer)) < fallbackShortWords {
		eval.OverallScore = fallbackShortScore
		eval.Feedback = "Your answer is too brief to assess fully. Elaborate on the steps and reasoning next time."
		eval.SpokenFeedback = "That was quite short. Try to elaborate more on your reasoning."
	} else {
		eval.OverallScore = fallbackLongScore
		eval.Feedback = "Your answer was recorded but could not be fully assessed. Compare it against the expected answer."
		eval.SpokenFeedback = "Good effort. Review the expected answer to check yourself."
	}
}

// normalizeMistakes maps the model's free-form mistake descriptions onto the
// catalog's penalty keys, one entry per distinct mistake type. "Apologizing
// for the price" and "apologizing at the end" collapse into a single
// "apologizing" so the penalty is deducted once. Unmatched descriptions keep
// their text and take the default penalty.
func (e *Evaluator) normalizeMistakes(raw []string) []string {
	if len(raw) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, m := range raw {
		norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m)), " ", "-")
		if norm == "" {
			continue
		}
		matched := norm
		for key := range e.catalog.Penalties {
			if key == "default" {
				continue
			}
			if strings.Contains(norm, key) {
				matched = key
				break
			}
		}
		if _, dup := seen[matched]; dup {
			continue
		}
		seen[matched] = struct{}{}
		out = append(out, matched)
	}
	return out
}

// keywordCoverage reports the fraction of key points whose significant words
// mostly appear in the answer. A key point counts as covered when at least
// half of its words longer than three characters show up.
func keywordCoverage(answer string, keyPoints []string) float64 {
	if len(keyPoints) == 0 {
		return 0
	}
	answerLower := strings.ToLower(answer)

	covered := 0
	for _, kp := range keyPoints {
		words := significantWords(kp)
		if len(words) == 0 {
			continue
		}
		hits := 0
		for _, w := range words {
			if strings.Contains(answerLower, w) {
				hits++
			}
		}
		if float64(hits)/float64(len(words)) >= 0.5 {
			covered++
		}
	}
	return float64(covered) / float64(len(keyPoints))
}

func significantWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}

func evidenceContext(evidence []models.Evidence) string {
	if len(evidence) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ev := range evidence {
		b.WriteString("SOURCE: ")
		b.WriteString(ev.Source)
		b.WriteString("\n")
		b.WriteString(ev.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
