package models

import (
	"time"

	"github.com/google/uuid"
)

// Session status values. Transitions are one-directional except active⇄paused:
// pending → active ⇄ paused → completed.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Session modes.
const (
	ModePractice = "practice"
	ModeStandard = "standard"
	ModeExam     = "exam"
)

// Completion reasons recorded when a session reaches the terminal state.
const (
	ReasonEnded         = "ended"
	ReasonTimeExpired   = "time_expired"
	ReasonBankExhausted = "bank_exhausted"
	ReasonNoContent     = "no_content"
)

type TrainingSession struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Category         string     `json:"category"`
	Difficulty       string     `json:"difficulty"`
	DurationMinutes  int        `json:"duration_minutes"`
	Mode             string     `json:"mode"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	LastResumedAt    *time.Time `json:"last_resumed_at,omitempty"`
	ElapsedSeconds   int        `json:"elapsed_seconds"`
	QuestionsAsked   int        `json:"questions_asked"`
	RunningScore     *float64   `json:"running_score,omitempty"`
	OverallScore     *float64   `json:"overall_score,omitempty"`
	CompletionReason *string    `json:"completion_reason,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RemainingSeconds reports how much of the allotted duration is left at the
// given instant. The clock only runs while the session is active; paused and
// terminal sessions keep the value reached at their last transition.
func (s *TrainingSession) RemainingSeconds(now time.Time) int {
	elapsed := s.ElapsedSeconds
	if s.Status == StatusActive && s.LastResumedAt != nil {
		elapsed += int(now.Sub(*s.LastResumedAt).Seconds())
	}
	remaining := s.DurationMinutes*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeExpired reports whether the allotted duration is spent. Practice mode is
// untimed; only bank exhaustion or an explicit end closes it.
func (s *TrainingSession) TimeExpired(now time.Time) bool {
	if s.Mode == ModePractice {
		return false
	}
	return s.RemainingSeconds(now) == 0
}

// AutosaveSnapshot is a best-effort, overwritable checkpoint of in-progress
// session state. It is never the source of truth for timing.
type AutosaveSnapshot struct {
	SessionID        uuid.UUID        `json:"session_id"`
	Transcript       []TranscriptTurn `json:"transcript"`
	RemainingSeconds int              `json:"remaining_seconds"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type TranscriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StartSessionRequest struct {
	Category        string `json:"category"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
	Mode            string `json:"mode"`
}

type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
}

// RestoredState is returned to a client reattaching to a session.
type RestoredState struct {
	Session          *TrainingSession `json:"session"`
	CurrentQuestion  *Question        `json:"current_question,omitempty"`
	Transcript       []TranscriptTurn `json:"transcript"`
	RemainingSeconds int              `json:"remaining_seconds"`
	SnapshotRestored bool             `json:"snapshot_restored"`
}
