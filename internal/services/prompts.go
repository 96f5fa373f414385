package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Difficulty-to-question-type distribution hints, worded for the model.
var distributionHints = map[string]string{
	"new-joining": "All questions factual (direct recall); no procedures or scenarios",
	"basic":       "Mostly factual (approx 60%) with some procedural (30%) and simple scenario (10%) questions",
	"advanced":    "Balanced mix of factual (30%), procedural (40%), and scenario (30%) questions",
	"expert":      "Focus on procedural (30%) and complex scenario/edge-case (60%) questions; only 10% factual",
}

func buildQuestionPrompt(req QuestionGenRequest) string {
	var b strings.Builder

	b.WriteString("You are an expert sales training coach creating exam questions.\n\n")

	if strings.TrimSpace(req.Content) == "" {
		b.WriteString(fmt.Sprintf("NOTE: Specific training material unavailable. Use conservative expert knowledge about %q in a high-ticket sales context.\n\n", req.Category))
	} else {
		b.WriteString("TRAINING MATERIAL (verbatim excerpts; do not invent facts):\n")
		b.WriteString(truncate(req.Content, 8000))
		b.WriteString("\n\n")
	}

	b.WriteString(fmt.Sprintf("TASK: Generate exactly %d questions to test knowledge of %q.\n\n", req.Count, req.Category))

	if len(req.RecentQuestions) > 0 {
		b.WriteString("AVOID REPEATING THESE RECENTLY ASKED QUESTIONS:\n")
		for i, q := range req.RecentQuestions {
			if i >= 20 {
				break
			}
			b.WriteString("- " + truncate(q, 100) + "\n")
		}
		b.WriteString("\n")
	}

	hint, ok := distributionHints[strings.ToLower(req.Difficulty)]
	if !ok {
		hint = "Balanced mix of factual, procedural, and scenario questions"
	}
	b.WriteString(fmt.Sprintf("QUESTION MIX for difficulty %q:\n", req.Difficulty))
	b.WriteString("- Order questions from EASIEST to HARDEST.\n")
	b.WriteString("- " + hint + "\n\n")

	if req.Mode == "exam" {
		b.WriteString("CERTIFICATION EXAM MODE:\n")
		b.WriteString("- Questions must be challenging and test deep understanding.\n")
		b.WriteString("- Include critical edge cases.\n")
		b.WriteString("- Do NOT simplify language; use professional terminology.\n\n")
	}

	b.WriteString(`STRICT RULES:
1) Every question must be answerable from the material when material is provided.
2) Provide an "expected_answer".
3) Provide 3-5 "key_points" the answer should include (short phrases).
4) Provide a "source" reference (specific source name if available, else "General Knowledge").
5) Phrase questions like a real customer would ask.
6) Set "type" to one of "factual", "procedural", "scenario".
7) Include a "difficulty" field matching the input difficulty.

CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.

OUTPUT:
{"questions": [{"question": "...", "expected_answer": "...", "key_points": ["a","b","c"], "source": "...", "difficulty": "` + req.Difficulty + `", "type": "factual", "is_objection": false}]}
`)

	return b.String()
}

func buildStandardJudgmentPrompt(req JudgmentRequest) string {
	var b strings.Builder

	if req.ExamMode {
		b.WriteString("You are a STRICT CERTIFICATION EXAMINER.\nYour goal is to verify deep understanding and precision.\n\n")
	} else {
		b.WriteString("You are a supportive sales training evaluator.\nYour goal is to verify understanding, not memorization.\n\n")
	}

	b.WriteString(`IMPORTANT INSTRUCTIONS:
1. IGNORE filler words, hesitations, or conversational fluff.
2. If the user captures the CORE IDEA, mark it correct (8/10+).
3. Do NOT penalize for using different vocabulary if the meaning is preserved.
4. If the answer is short but correct, score it HIGH. Do not punish brevity.
5. Recognize synonyms (e.g. "client" == "customer", "verify" == "check").

SCORING GUIDANCE:
- Semantically correct but informal: 8/10
- Covers key points with fillers: 9/10
- Factually wrong: <5/10
- "overall_score" must be your aggregate of the three axes.

FEEDBACK GUIDELINES:
- If the answer is correct but informal, praise the understanding.
- Do NOT correct grammar or word choice unless it changes the meaning.
- Keep spoken_feedback conversational and encouraging.

`)

	writeJudgmentContext(&b, req)

	b.WriteString(`OUTPUT JSON ONLY:
{"accuracy": 0, "completeness": 0, "clarity": 0, "overall_score": 0, "what_correct": "", "what_missed": "", "what_wrong": null, "feedback": "", "spoken_feedback": "Short, encouraging, specific 1-2 sentences"}
`)

	return b.String()
}

func buildObjectionJudgmentPrompt(req JudgmentRequest) string {
	var b strings.Builder

	if req.ExamMode {
		b.WriteString("You are a STRICT CERTIFICATION EXAMINER scoring an objection-handling response.\n")
		b.WriteString("Penalize ambiguity and lack of confidence heavily.\n\n")
	} else {
		b.WriteString("You are evaluating a sales trainee's objection-handling response.\n")
		b.WriteString("If the core meaning matches the expected handling: minimum score 7/10.\n\n")
	}

	b.WriteString(`EVALUATION CRITERIA:
- IGNORE filler words (um, uh, like, you know) and minor stammering.
- Focus strictly on MEANING and INTENT.
- Paraphrasing is ENCOURAGED. The right concept in different words gets FULL CREDIT.
- If technique is correct but wording differs: score 8/10 or higher.
- Score each axis (tone, technique, key_points_covered, closing) from 0 to 10.
- "overall_score" must be your raw aggregate of the axes, BEFORE any penalty.
- Report forbidden mistakes the trainee ACTUALLY committed in "forbidden_mistakes_made";
  do NOT adjust any score for them yourself.
- Set "prescribed_language_used" true if the trainee used the prescribed script
  or an equivalent professional phrasing.

`)

	if len(req.Question.ForbiddenMistakes) > 0 {
		b.WriteString("FORBIDDEN MISTAKES TO DETECT:\n")
		for _, m := range req.Question.ForbiddenMistakes {
			b.WriteString("- " + m + "\n")
		}
		b.WriteString("\n")
	}

	writeJudgmentContext(&b, req)

	b.WriteString(`OUTPUT JSON ONLY:
{"tone": 0, "technique": 0, "key_points_covered": 0, "closing": 0, "overall_score": 0, "forbidden_mistakes_made": [], "prescribed_language_used": false, "what_correct": "", "what_missed": "", "what_wrong": null, "feedback": "", "spoken_feedback": "Short, encouraging, specific 1-2 sentences"}
`)

	return b.String()
}

func writeJudgmentContext(b *strings.Builder, req JudgmentRequest) {
	b.WriteString("QUESTION:\n" + req.Question.Text + "\n\n")
	b.WriteString("EXPECTED ANSWER (from training):\n" + req.Question.ExpectedAnswer + "\n\n")

	keyPoints, _ := json.Marshal(req.Question.KeyPoints)
	b.WriteString("KEY POINTS:\n" + string(keyPoints) + "\n\n")

	if strings.TrimSpace(req.Context) != "" {
		b.WriteString("RELEVANT TRAINING CONTENT:\n" + truncate(req.Context, 1500) + "\n\n")
	}

	b.WriteString("USER'S ANSWER:\n\"" + req.Answer + "\"\n\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
