package services

import (
	"sort"
	"time"

	"salescoach-backend/internal/models"
)

const (
	handledWellScore   = 8.0
	needsPracticeScore = 6.0
	strengthScore      = 8.0
	improvementScore   = 5.0
)

// ReportBuilder folds a session's evaluations into the final report. The build
// is a pure function of its inputs ordered by question position, so rebuilding
// from the same rows yields an identical payload.
type ReportBuilder struct {
	masteryThreshold float64
}

func NewReportBuilder(masteryThreshold float64) *ReportBuilder {
	return &ReportBuilder{masteryThreshold: masteryThreshold}
}

func (b *ReportBuilder) Build(session *models.TrainingSession, questions []*models.Question, evaluations []*models.Evaluation, generatedAt time.Time) *models.Report {
	byQuestion := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID.String()] = q
	}

	// Evaluations in question-position order, independent of submission timing.
	ordered := make([]*models.Evaluation, len(evaluations))
	copy(ordered, evaluations)
	sort.SliceStable(ordered, func(i, j int) bool {
		qi, qj := byQuestion[ordered[i].QuestionID.String()], byQuestion[ordered[j].QuestionID.String()]
		if qi == nil || qj == nil {
			return qi != nil
		}
		return qi.Position < qj.Position
	})

	report := &models.Report{
		SessionID:    session.ID,
		Category:     session.Category,
		Difficulty:   session.Difficulty,
		Mode:         session.Mode,
		Strengths:    []string{},
		Improvements: []string{},
		Rows:         []models.ReportRow{},
		GeneratedAt:  generatedAt,
	}

	var (
		allScores     []float64
		byType        = map[string][]float64{}
		clarityScores []float64
		objection     []float64
		handledWell   []models.ObjectionHighlight
		needsPractice []models.ObjectionHighlight
	)

	for _, e := range ordered {
		q := byQuestion[e.QuestionID.String()]
		if q == nil {
			continue
		}

		score := e.OverallScore
		allScores = append(allScores, score)
		byType[q.Type] = append(byType[q.Type], score)
		if e.Clarity != nil {
			clarityScores = append(clarityScores, *e.Clarity)
		}

		if e.IsObjection {
			objection = append(objection, score)
			highlight := models.ObjectionHighlight{
				Question: q.Text,
				Score:    score,
				Evidence: e.Evidence,
				Source:   q.Source,
			}
			if score >= handledWellScore {
				handledWell = append(handledWell, highlight)
			} else if score < needsPracticeScore {
				needsPractice = append(needsPractice, highlight)
			}
		}

		if score >= strengthScore && e.WhatCorrect != "" {
			report.Strengths = append(report.Strengths, e.WhatCorrect)
		}
		if score < improvementScore && e.WhatMissed != "" {
			report.Improvements = append(report.Improvements, e.WhatMissed)
		}

		rowScore := score
		report.Rows = append(report.Rows, models.ReportRow{
			Question:       q.Text,
			UserAnswer:     e.UserAnswer,
			ExpectedAnswer: q.ExpectedAnswer,
			Source:         q.Source,
			Score:          &rowScore,
			WhatCorrect:    e.WhatCorrect,
			WhatMissed:     e.WhatMissed,
			WhatWrong:      e.WhatWrong,
		})
	}

	report.OverallScore = mean(allScores)
	report.FactualAvg = mean(byType[models.QuestionFactual])
	report.ProceduralAvg = mean(byType[models.QuestionProcedural])
	report.ScenarioAvg = mean(byType[models.QuestionScenario])
	report.ClarityAvg = mean(clarityScores)
	report.Mastered = report.OverallScore != nil && *report.OverallScore >= b.masteryThreshold

	if len(objection) > 0 {
		if handledWell == nil {
			handledWell = []models.ObjectionHighlight{}
		}
		if needsPractice == nil {
			needsPractice = []models.ObjectionHighlight{}
		}
		report.Objection = &models.ObjectionSummary{
			Average:       mean(objection),
			HandledWell:   handledWell,
			NeedsPractice: needsPractice,
		}
	}

	return report
}

// mean returns nil for an empty slice so absent rubric axes stay absent in the
// report instead of reading as zero.
func mean(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	m := sum / float64(len(scores))
	return &m
}
