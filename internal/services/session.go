package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"salescoach-backend/internal/models"
	"salescoach-backend/internal/repository"
)

const (
	recentQuestionLimit = 20
	adaptiveScoreWindow = 5

	minDurationMinutes     = 5
	maxDurationMinutes     = 240
	defaultDurationMinutes = 30
)

// Persistence surfaces the session service depends on. The pgx-backed
// repositories satisfy them.
type SessionStore interface {
	Create(ctx context.Context, s *models.TrainingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	Activate(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error)
	RecordTurn(ctx context.Context, id uuid.UUID, questionsAsked int, runningScore float64) error
	CompleteIfOpen(ctx context.Context, id uuid.UUID, reason string, overallScore *float64) (*models.TrainingSession, bool, error)
	ListExpirable(ctx context.Context) ([]*models.TrainingSession, error)
	RecentCompletedScores(ctx context.Context, userID uuid.UUID, category string, limit int) ([]float64, error)
	RecentQuestionTexts(ctx context.Context, userID uuid.UUID, category string, limit int) ([]string, error)
}

type QuestionStore interface {
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Question, error)
	MarkAnswered(ctx context.Context, id uuid.UUID) error
}

type EvaluationStore interface {
	Create(ctx context.Context, e *models.Evaluation) error
	GetByQuestion(ctx context.Context, questionID uuid.UUID) (*models.Evaluation, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Evaluation, error)
}

type ReportStore interface {
	Save(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Report, error)
}

// SnapshotStore is the autosave side-channel; Redis-backed in production.
type SnapshotStore interface {
	Enqueue(ctx context.Context, snapshot *models.AutosaveSnapshot)
	Load(ctx context.Context, sessionID uuid.UUID) *models.AutosaveSnapshot
	Delete(ctx context.Context, sessionID uuid.UUID)
}

// SubmissionGuard serializes concurrent answers to one question.
type SubmissionGuard interface {
	TryLock(ctx context.Context, sessionID, questionID uuid.UUID) bool
	Unlock(ctx context.Context, sessionID, questionID uuid.UUID)
}

// EventSink receives session lifecycle events for live clients.
type EventSink interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// SessionService drives a training session through its whole life: bank
// generation on start, turn-by-turn evaluation and adaptive selection,
// pause/resume bookkeeping, and the guarded transition into the completed
// state that owns report generation.
type SessionService struct {
	sessions    SessionStore
	questions   QuestionStore
	evaluations EvaluationStore
	reports     ReportStore

	bank      *BankBuilder
	selector  *Selector
	evaluator *Evaluator
	builder   *ReportBuilder
	autosave  SnapshotStore
	guard     SubmissionGuard
	events    EventSink
}

func NewSessionService(
	sessions SessionStore,
	questions QuestionStore,
	evaluations EvaluationStore,
	reports ReportStore,
	bank *BankBuilder,
	selector *Selector,
	evaluator *Evaluator,
	builder *ReportBuilder,
	autosave SnapshotStore,
	guard SubmissionGuard,
	events EventSink,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		questions:   questions,
		evaluations: evaluations,
		reports:     reports,
		bank:        bank,
		selector:    selector,
		evaluator:   evaluator,
		builder:     builder,
		autosave:    autosave,
		guard:       guard,
		events:      events,
	}
}

// StartedSession is everything the client needs after session creation.
type StartedSession struct {
	Session       *models.TrainingSession
	FirstQuestion *models.Question
	QuestionCount int
	Degraded      bool
}

func (s *SessionService) Start(ctx context.Context, userID uuid.UUID, req *models.StartSessionRequest) (*StartedSession, error) {
	if err := validateStartRequest(req); err != nil {
		return nil, err
	}

	difficulty := req.Difficulty
	if difficulty == DifficultyAdaptive {
		difficulty = s.resolveAdaptiveDifficulty(ctx, userID, req.Category)
	}

	session := &models.TrainingSession{
		ID:              uuid.New(),
		UserID:          userID,
		Category:        req.Category,
		Difficulty:      difficulty,
		DurationMinutes: req.DurationMinutes,
		Mode:            req.Mode,
		Status:          models.StatusPending,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	recent, err := s.sessions.RecentQuestionTexts(ctx, userID, req.Category, recentQuestionLimit)
	if err != nil {
		log.Printf("failed to load recent questions for user %s: %v", userID, err)
	}

	result := s.bank.Build(ctx, req.Category, difficulty, req.DurationMinutes, req.Mode, recent)
	if len(result.Questions) == 0 {
		// Nothing to ask: close the session immediately instead of leaving a
		// pending shell behind.
		reason := models.ReasonNoContent
		if session, _, err = s.sessions.CompleteIfOpen(ctx, session.ID, reason, nil); err != nil {
			return nil, &PersistenceError{Cause: err}
		}
		return &StartedSession{Session: session}, nil
	}

	questions := make([]*models.Question, 0, len(result.Questions))
	for i, g := range result.Questions {
		questions = append(questions, &models.Question{
			ID:                uuid.New(),
			SessionID:         session.ID,
			Position:          i,
			Text:              g.Question,
			ExpectedAnswer:    g.ExpectedAnswer,
			KeyPoints:         g.KeyPoints,
			ForbiddenMistakes: g.ForbiddenMistakes,
			Source:            g.Source,
			Difficulty:        g.Difficulty,
			Type:              g.Type,
			IsObjection:       g.IsObjection,
		})
	}
	if err := s.questions.CreateBatch(ctx, questions); err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	session, err = s.sessions.Activate(ctx, session.ID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	return &StartedSession{
		Session:       session,
		FirstQuestion: s.selector.Next(questions, nil),
		QuestionCount: len(questions),
		Degraded:      result.Degraded,
	}, nil
}

// resolveAdaptiveDifficulty maps the mean of the user's recent completed
// scores in the category onto a concrete level. No history starts at basic.
func (s *SessionService) resolveAdaptiveDifficulty(ctx context.Context, userID uuid.UUID, category string) string {
	scores, err := s.sessions.RecentCompletedScores(ctx, userID, category, adaptiveScoreWindow)
	if err != nil {
		log.Printf("adaptive difficulty lookup failed for user %s: %v", userID, err)
		return DifficultyBasic
	}
	if len(scores) == 0 {
		return DifficultyBasic
	}

	sum := 0.0
	for _, sc := range scores {
		sum += sc
	}
	avg := sum / float64(len(scores))

	switch {
	case avg >= 8.0:
		return DifficultyExpert
	case avg >= 6.5:
		return DifficultyAdvanced
	case avg >= 4.5:
		return DifficultyBasic
	default:
		return DifficultyNewJoining
	}
}

// Turn is the outcome of one answer submission.
type Turn struct {
	Evaluation   *models.Evaluation
	NextQuestion *models.Question
	Session      *models.TrainingSession
	Done         bool
}

func (s *SessionService) SubmitAnswer(ctx context.Context, userID, sessionID uuid.UUID, req *models.SubmitAnswerRequest) (*Turn, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.StatusActive:
	case models.StatusPaused:
		return nil, &StateConflictError{Code: "SESSION_PAUSED", Message: "Resume the session before answering"}
	case models.StatusCompleted:
		return nil, &StateConflictError{Code: "SESSION_COMPLETED", Message: "Session has already ended"}
	default:
		return nil, &StateConflictError{Code: "SESSION_NOT_STARTED", Message: "Session is not active yet"}
	}

	if session.TimeExpired(time.Now()) {
		if _, err := s.expire(ctx, session); err != nil {
			return nil, err
		}
		return nil, &StateConflictError{Code: "TIME_EXPIRED", Message: "Session time has run out"}
	}

	question, err := s.questions.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Question not found"}
		}
		return nil, &PersistenceError{Cause: err}
	}
	if question.SessionID != sessionID {
		return nil, &NotFoundError{Message: "Question not found"}
	}

	// First accepted answer wins. Repeats get the stored evaluation back.
	if existing, err := s.evaluations.GetByQuestion(ctx, question.ID); err == nil {
		return s.turnAfter(ctx, session, existing, false)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, &PersistenceError{Cause: err}
	}

	if !s.guard.TryLock(ctx, sessionID, question.ID) {
		return nil, &StateConflictError{Code: "DUPLICATE_SUBMISSION", Message: "This answer is already being evaluated"}
	}
	defer s.guard.Unlock(ctx, sessionID, question.ID)

	eval := s.evaluator.Evaluate(ctx, question, req.Text, session.Category, session.Mode == models.ModeExam)
	if err := s.evaluations.Create(ctx, eval); err != nil {
		return nil, &PersistenceError{Cause: err}
	}
	if err := s.questions.MarkAnswered(ctx, question.ID); err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	asked := session.QuestionsAsked + 1
	running := eval.OverallScore
	if session.RunningScore != nil {
		running = (*session.RunningScore*float64(session.QuestionsAsked) + eval.OverallScore) / float64(asked)
	}
	if err := s.sessions.RecordTurn(ctx, sessionID, asked, running); err != nil {
		return nil, &PersistenceError{Cause: err}
	}
	session.QuestionsAsked = asked
	session.RunningScore = &running

	s.autosave.Enqueue(ctx, &models.AutosaveSnapshot{
		SessionID:        sessionID,
		RemainingSeconds: session.RemainingSeconds(time.Now()),
		UpdatedAt:        time.Now(),
	})

	return s.turnAfter(ctx, session, eval, true)
}

// turnAfter selects the next question, auto-ending when the bank is exhausted,
// and publishes the turn event.
func (s *SessionService) turnAfter(ctx context.Context, session *models.TrainingSession, eval *models.Evaluation, publish bool) (*Turn, error) {
	bank, err := s.questions.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	next := s.selector.Next(bank, session.RunningScore)
	turn := &Turn{Evaluation: eval, NextQuestion: next, Session: session}

	if next == nil && session.Status == models.StatusActive {
		completed, _, err := s.complete(ctx, session.ID, models.ReasonBankExhausted)
		if err != nil {
			return nil, err
		}
		turn.Session = completed
		turn.Done = true
	}

	if publish {
		score := eval.OverallScore
		s.events.Publish(ctx, session.UserID, models.WSMessage{
			Type: "turn_evaluated",
			Payload: models.SessionEvent{
				SessionID:        session.ID.String(),
				Status:           turn.Session.Status,
				QuestionsAsked:   turn.Session.QuestionsAsked,
				RunningScore:     turn.Session.RunningScore,
				LastOverallScore: &score,
				Done:             turn.Done,
			},
		})
	}
	return turn, nil
}

func (s *SessionService) Pause(ctx context.Context, userID, sessionID uuid.UUID) (*models.TrainingSession, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusPaused {
		return session, nil
	}
	if session.Status != models.StatusActive {
		return nil, &StateConflictError{Code: "INVALID_TRANSITION", Message: fmt.Sprintf("Cannot pause a %s session", session.Status)}
	}

	session, ok, err := s.sessions.Pause(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}
	if !ok && session.Status != models.StatusPaused {
		return nil, &StateConflictError{Code: "INVALID_TRANSITION", Message: fmt.Sprintf("Cannot pause a %s session", session.Status)}
	}

	s.autosave.Enqueue(ctx, &models.AutosaveSnapshot{
		SessionID:        sessionID,
		RemainingSeconds: session.RemainingSeconds(time.Now()),
		UpdatedAt:        time.Now(),
	})
	return session, nil
}

func (s *SessionService) Resume(ctx context.Context, userID, sessionID uuid.UUID) (*models.TrainingSession, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusActive {
		return session, nil
	}
	if session.Status != models.StatusPaused {
		return nil, &StateConflictError{Code: "INVALID_TRANSITION", Message: fmt.Sprintf("Cannot resume a %s session", session.Status)}
	}

	session, ok, err := s.sessions.Resume(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}
	if !ok && session.Status != models.StatusActive {
		return nil, &StateConflictError{Code: "INVALID_TRANSITION", Message: fmt.Sprintf("Cannot resume a %s session", session.Status)}
	}
	return session, nil
}

// Autosave records a client-supplied transcript checkpoint. Best-effort by
// contract: failures are logged, never surfaced.
func (s *SessionService) Autosave(ctx context.Context, userID, sessionID uuid.UUID, transcript []models.TranscriptTurn) error {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.StatusCompleted {
		return &StateConflictError{Code: "SESSION_COMPLETED", Message: "Session has already ended"}
	}

	s.autosave.Enqueue(ctx, &models.AutosaveSnapshot{
		SessionID:        sessionID,
		Transcript:       transcript,
		RemainingSeconds: session.RemainingSeconds(time.Now()),
		UpdatedAt:        time.Now(),
	})
	return nil
}

// Attach restores the state a client needs to continue a session on a new
// connection: current question, transcript and remaining time. The snapshot
// supplies the transcript when present; otherwise it is rebuilt from the
// persisted evaluations.
func (s *SessionService) Attach(ctx context.Context, userID, sessionID uuid.UUID) (*models.RestoredState, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	state := &models.RestoredState{
		Session:          session,
		Transcript:       []models.TranscriptTurn{},
		RemainingSeconds: session.RemainingSeconds(time.Now()),
	}

	if snapshot := s.autosave.Load(ctx, sessionID); snapshot != nil && len(snapshot.Transcript) > 0 {
		state.Transcript = snapshot.Transcript
		state.SnapshotRestored = true
	}

	bank, err := s.questions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}

	if !state.SnapshotRestored {
		state.Transcript = s.rebuildTranscript(ctx, sessionID, bank)
	}

	if session.Status != models.StatusCompleted {
		state.CurrentQuestion = s.selector.Next(bank, session.RunningScore)
	}
	return state, nil
}

func (s *SessionService) rebuildTranscript(ctx context.Context, sessionID uuid.UUID, bank []*models.Question) []models.TranscriptTurn {
	transcript := []models.TranscriptTurn{}
	evals, err := s.evaluations.ListBySession(ctx, sessionID)
	if err != nil {
		log.Printf("failed to rebuild transcript for session %s: %v", sessionID, err)
		return transcript
	}

	byID := make(map[uuid.UUID]*models.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}
	for _, e := range evals {
		if q := byID[e.QuestionID]; q != nil {
			transcript = append(transcript, models.TranscriptTurn{Role: "trainer", Content: q.Text})
		}
		transcript = append(transcript, models.TranscriptTurn{Role: "trainee", Content: e.UserAnswer})
		if e.SpokenFeedback != "" {
			transcript = append(transcript, models.TranscriptTurn{Role: "trainer", Content: e.SpokenFeedback})
		}
	}
	return transcript
}

// EndResult pairs the final session row with its report.
type EndResult struct {
	Session *models.TrainingSession
	Report  *models.Report
}

// End closes the session. Safe to call repeatedly and concurrently: the
// status guard picks one winner to generate the report, everyone gets the
// same report back.
func (s *SessionService) End(ctx context.Context, userID, sessionID uuid.UUID) (*EndResult, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	session, _, err = s.complete(ctx, sessionID, models.ReasonEnded)
	if err != nil {
		return nil, err
	}

	report, err := s.GetReport(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &EndResult{Session: session, Report: report}, nil
}

// GetReport returns the persisted report, generating it first if the
// completing writer crashed before saving one.
func (s *SessionService) GetReport(ctx context.Context, userID, sessionID uuid.UUID) (*models.Report, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusCompleted {
		return nil, &StateConflictError{Code: "SESSION_NOT_COMPLETED", Message: "Report is available after the session ends"}
	}

	report, err := s.reports.Get(ctx, sessionID)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &PersistenceError{Cause: err}
	}

	if err := s.generateReport(ctx, session); err != nil {
		return nil, err
	}
	report, err = s.reports.Get(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Cause: err}
	}
	return report, nil
}

// ExpireDueSessions closes timed sessions that ran out while active. Called
// by the scheduler.
func (s *SessionService) ExpireDueSessions(ctx context.Context) {
	due, err := s.sessions.ListExpirable(ctx)
	if err != nil {
		log.Printf("expiry sweep: failed to list sessions: %v", err)
		return
	}
	for _, session := range due {
		if _, err := s.expire(ctx, session); err != nil {
			log.Printf("expiry sweep: failed to close session %s: %v", session.ID, err)
		}
	}
}

func (s *SessionService) expire(ctx context.Context, session *models.TrainingSession) (*models.TrainingSession, error) {
	completed, _, err := s.complete(ctx, session.ID, models.ReasonTimeExpired)
	return completed, err
}

// complete performs the guarded transition into the terminal state. The winner
// generates the report, drops the snapshot and announces the end; losers just
// read back the final row.
func (s *SessionService) complete(ctx context.Context, sessionID uuid.UUID, reason string) (*models.TrainingSession, bool, error) {
	current, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, &PersistenceError{Cause: err}
	}

	session, won, err := s.sessions.CompleteIfOpen(ctx, sessionID, reason, current.RunningScore)
	if err != nil {
		return nil, false, &PersistenceError{Cause: err}
	}
	if !won {
		return session, false, nil
	}

	if err := s.generateReport(ctx, session); err != nil {
		log.Printf("report generation failed for session %s: %v", sessionID, err)
	}
	s.autosave.Delete(ctx, sessionID)
	s.events.Publish(ctx, session.UserID, models.WSMessage{
		Type: "session_completed",
		Payload: models.SessionEvent{
			SessionID:      session.ID.String(),
			Status:         session.Status,
			QuestionsAsked: session.QuestionsAsked,
			RunningScore:   session.RunningScore,
			Done:           true,
		},
	})
	return session, true, nil
}

// generateReport builds and persists the report. Timestamps come from the
// session's ended_at so a regeneration produces an identical payload.
func (s *SessionService) generateReport(ctx context.Context, session *models.TrainingSession) error {
	questions, err := s.questions.ListBySession(ctx, session.ID)
	if err != nil {
		return &PersistenceError{Cause: err}
	}
	evals, err := s.evaluations.ListBySession(ctx, session.ID)
	if err != nil {
		return &PersistenceError{Cause: err}
	}

	generatedAt := time.Now()
	if session.EndedAt != nil {
		generatedAt = *session.EndedAt
	}

	report := s.builder.Build(session, questions, evals, generatedAt)
	if err := s.reports.Save(ctx, report); err != nil {
		return &PersistenceError{Cause: err}
	}
	return nil
}

func (s *SessionService) loadOwned(ctx context.Context, userID, sessionID uuid.UUID) (*models.TrainingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, &PersistenceError{Cause: err}
	}
	if session.UserID != userID {
		return nil, &UnauthorizedError{Message: "Session belongs to another user"}
	}
	return session, nil
}

func validateStartRequest(req *models.StartSessionRequest) error {
	fields := map[string]string{}

	req.Category = strings.TrimSpace(req.Category)
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))

	if req.Category == "" {
		fields["category"] = "Category is required"
	}
	if !ValidDifficulty(req.Difficulty) {
		fields["difficulty"] = "Difficulty must be one of: new-joining, basic, advanced, expert, adaptive"
	}

	switch req.Mode {
	case "":
		req.Mode = models.ModeStandard
	case models.ModePractice, models.ModeStandard, models.ModeExam:
	default:
		fields["mode"] = "Mode must be one of: practice, standard, exam"
	}

	if req.DurationMinutes == 0 && req.Mode == models.ModePractice {
		req.DurationMinutes = defaultDurationMinutes
	}
	if req.DurationMinutes < minDurationMinutes || req.DurationMinutes > maxDurationMinutes {
		fields["duration_minutes"] = fmt.Sprintf("Duration must be between %d and %d minutes", minDurationMinutes, maxDurationMinutes)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
