package services

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"salescoach-backend/internal/models"
	"salescoach-backend/internal/repository"
)

type fakeSessionStore struct {
	rows map[uuid.UUID]*models.TrainingSession
	wins int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: map[uuid.UUID]*models.TrainingSession{}}
}

func (f *fakeSessionStore) copyOf(id uuid.UUID) (*models.TrainingSession, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSessionStore) Create(ctx context.Context, s *models.TrainingSession) error {
	c := *s
	f.rows[s.ID] = &c
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	return f.copyOf(id)
}

func (f *fakeSessionStore) Activate(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.Status == models.StatusPending {
		now := time.Now()
		s.Status = models.StatusActive
		s.StartedAt = now
		s.LastResumedAt = &now
	}
	return f.copyOf(id)
}

func (f *fakeSessionStore) Pause(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	moved := false
	if s.Status == models.StatusActive {
		s.Status = models.StatusPaused
		moved = true
	}
	c, err := f.copyOf(id)
	return c, moved, err
}

func (f *fakeSessionStore) Resume(ctx context.Context, id uuid.UUID) (*models.TrainingSession, bool, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	moved := false
	if s.Status == models.StatusPaused {
		now := time.Now()
		s.Status = models.StatusActive
		s.LastResumedAt = &now
		moved = true
	}
	c, err := f.copyOf(id)
	return c, moved, err
}

func (f *fakeSessionStore) RecordTurn(ctx context.Context, id uuid.UUID, questionsAsked int, runningScore float64) error {
	s, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.QuestionsAsked = questionsAsked
	s.RunningScore = &runningScore
	return nil
}

func (f *fakeSessionStore) CompleteIfOpen(ctx context.Context, id uuid.UUID, reason string, overallScore *float64) (*models.TrainingSession, bool, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if s.Status == models.StatusCompleted {
		c, err := f.copyOf(id)
		return c, false, err
	}
	now := time.Now()
	s.Status = models.StatusCompleted
	s.CompletionReason = &reason
	s.OverallScore = overallScore
	s.EndedAt = &now
	f.wins++
	c, err := f.copyOf(id)
	return c, true, err
}

func (f *fakeSessionStore) ListExpirable(ctx context.Context) ([]*models.TrainingSession, error) {
	return nil, nil
}

func (f *fakeSessionStore) RecentCompletedScores(ctx context.Context, userID uuid.UUID, category string, limit int) ([]float64, error) {
	return nil, nil
}

func (f *fakeSessionStore) RecentQuestionTexts(ctx context.Context, userID uuid.UUID, category string, limit int) ([]string, error) {
	return nil, nil
}

type fakeQuestionStore struct {
	rows []*models.Question
}

func (f *fakeQuestionStore) CreateBatch(ctx context.Context, questions []*models.Question) error {
	for _, q := range questions {
		c := *q
		f.rows = append(f.rows, &c)
	}
	return nil
}

func (f *fakeQuestionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	for _, q := range f.rows {
		if q.ID == id {
			c := *q
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeQuestionStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Question, error) {
	out := []*models.Question{}
	for _, q := range f.rows {
		if q.SessionID == sessionID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeQuestionStore) MarkAnswered(ctx context.Context, id uuid.UUID) error {
	for _, q := range f.rows {
		if q.ID == id {
			q.Answered = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeEvaluationStore struct {
	rows []*models.Evaluation
}

func (f *fakeEvaluationStore) Create(ctx context.Context, e *models.Evaluation) error {
	c := *e
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeEvaluationStore) GetByQuestion(ctx context.Context, questionID uuid.UUID) (*models.Evaluation, error) {
	for _, e := range f.rows {
		if e.QuestionID == questionID {
			c := *e
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeEvaluationStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Evaluation, error) {
	out := []*models.Evaluation{}
	for _, e := range f.rows {
		if e.SessionID == sessionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// fakeReportStore mimics the insert-if-absent semantics of the SQL store.
type fakeReportStore struct {
	rows  map[uuid.UUID]*models.Report
	saves int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{rows: map[uuid.UUID]*models.Report{}}
}

func (f *fakeReportStore) Save(ctx context.Context, report *models.Report) error {
	if _, ok := f.rows[report.SessionID]; ok {
		return nil
	}
	f.rows[report.SessionID] = report
	f.saves++
	return nil
}

func (f *fakeReportStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	r, ok := f.rows[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

type fakeSnapshots struct{}

func (f *fakeSnapshots) Enqueue(ctx context.Context, snapshot *models.AutosaveSnapshot) {}
func (f *fakeSnapshots) Load(ctx context.Context, sessionID uuid.UUID) *models.AutosaveSnapshot {
	return nil
}
func (f *fakeSnapshots) Delete(ctx context.Context, sessionID uuid.UUID) {}

type fakeGuard struct {
	deny bool
}

func (f *fakeGuard) TryLock(ctx context.Context, sessionID, questionID uuid.UUID) bool {
	return !f.deny
}
func (f *fakeGuard) Unlock(ctx context.Context, sessionID, questionID uuid.UUID) {}

type fakeEvents struct {
	msgs []models.WSMessage
}

func (f *fakeEvents) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	f.msgs = append(f.msgs, msg)
}

type sessionFixture struct {
	svc       *SessionService
	sessions  *fakeSessionStore
	questions *fakeQuestionStore
	evals     *fakeEvaluationStore
	reports   *fakeReportStore
	events    *fakeEvents
}

func newSessionFixture(t *testing.T, completion CompletionGateway) *sessionFixture {
	t.Helper()
	catalog := testCatalog(t)
	retrieval := &stubRetrieval{}
	f := &sessionFixture{
		sessions:  newFakeSessionStore(),
		questions: &fakeQuestionStore{},
		evals:     &fakeEvaluationStore{},
		reports:   newFakeReportStore(),
		events:    &fakeEvents{},
	}
	f.svc = NewSessionService(
		f.sessions,
		f.questions,
		f.evals,
		f.reports,
		NewBankBuilder(catalog, retrieval, completion, 0.6, 7, 25),
		NewSelector(7.5, 5.0),
		NewEvaluator(completion, retrieval, catalog),
		NewReportBuilder(7.0),
		&fakeSnapshots{},
		&fakeGuard{},
		f.events,
	)
	return f
}

func activeSession(userID uuid.UUID) *models.TrainingSession {
	now := time.Now()
	return &models.TrainingSession{
		ID:              uuid.New(),
		UserID:          userID,
		Category:        "Sales Objections",
		Difficulty:      DifficultyBasic,
		DurationMinutes: 30,
		Mode:            models.ModeStandard,
		Status:          models.StatusActive,
		StartedAt:       now,
		LastResumedAt:   &now,
	}
}

func TestEndTwiceReturnsIdenticalReport(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newSessionFixture(t, &stubCompletion{})

	session := activeSession(userID)
	f.sessions.Create(ctx, session)

	q := objectionQuestion()
	q.SessionID = session.ID
	q.Answered = true
	f.questions.CreateBatch(ctx, []*models.Question{q})

	f.evals.Create(ctx, &models.Evaluation{
		ID:           uuid.New(),
		SessionID:    session.ID,
		QuestionID:   q.ID,
		UserAnswer:   "Quality lasts longer than cheap implants.",
		IsObjection:  true,
		OverallScore: 7.5,
		Feedback:     "Held the line on value.",
	})

	first, err := f.svc.End(ctx, userID, session.ID)
	if err != nil {
		t.Fatalf("first end: %v", err)
	}
	second, err := f.svc.End(ctx, userID, session.ID)
	if err != nil {
		t.Fatalf("second end: %v", err)
	}

	if f.sessions.wins != 1 {
		t.Fatalf("expected exactly one winning completion, got %d", f.sessions.wins)
	}
	if f.reports.saves != 1 {
		t.Fatalf("expected the report to be written once, got %d", f.reports.saves)
	}
	if second.Session.Status != models.StatusCompleted || *second.Session.CompletionReason != models.ReasonEnded {
		t.Fatalf("unexpected final session state: %s/%v", second.Session.Status, second.Session.CompletionReason)
	}

	a, err := json.Marshal(first.Report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second.Report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("repeated end produced a different report:\n%s\n%s", a, b)
	}
}

func TestSubmitObjectionAnswerGoodVersusBad(t *testing.T) {
	tests := []struct {
		name         string
		judgment     *models.ObjectionJudgment
		answer       string
		wantAtLeast  float64
		wantBelow    float64
		wantMistakes []string
	}{
		{
			name: "confident handling scores well",
			judgment: &models.ObjectionJudgment{
				Tone:             fptr(8),
				Technique:        fptr(8),
				KeyPointsCovered: fptr(7),
				Closing:          fptr(8),
				OverallScore:     fptr(7.8),
			},
			answer:       "I hear you, but the long-term value is unmatched.",
			wantAtLeast:  7.0,
			wantBelow:    10.1,
			wantMistakes: []string{},
		},
		{
			name: "apologizing drags the score down",
			judgment: &models.ObjectionJudgment{
				Tone:                  fptr(8),
				Technique:             fptr(8),
				KeyPointsCovered:      fptr(7),
				Closing:               fptr(8),
				OverallScore:          fptr(7.8),
				ForbiddenMistakesMade: []string{"apologizing for the price"},
			},
			answer:       "I am so sorry it costs this much, truly.",
			wantAtLeast:  0,
			wantBelow:    6.0,
			wantMistakes: []string{"apologizing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			userID := uuid.New()
			f := newSessionFixture(t, &stubCompletion{objection: tt.judgment})

			session := activeSession(userID)
			f.sessions.Create(ctx, session)

			q := objectionQuestion()
			q.SessionID = session.ID
			f.questions.CreateBatch(ctx, []*models.Question{q})

			turn, err := f.svc.SubmitAnswer(ctx, userID, session.ID, &models.SubmitAnswerRequest{
				QuestionID: q.ID,
				Text:       tt.answer,
			})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}

			got := turn.Evaluation.OverallScore
			if got < tt.wantAtLeast || got >= tt.wantBelow {
				t.Fatalf("score %v outside [%v, %v)", got, tt.wantAtLeast, tt.wantBelow)
			}
			if len(turn.Evaluation.ForbiddenMistakesMade) != len(tt.wantMistakes) {
				t.Fatalf("mistakes: expected %v, got %v", tt.wantMistakes, turn.Evaluation.ForbiddenMistakesMade)
			}
			for i, m := range tt.wantMistakes {
				if turn.Evaluation.ForbiddenMistakesMade[i] != m {
					t.Fatalf("mistakes: expected %v, got %v", tt.wantMistakes, turn.Evaluation.ForbiddenMistakesMade)
				}
			}

			// A one-question bank is exhausted after the answer, so the
			// session ends itself.
			if !turn.Done {
				t.Fatal("expected the turn to finish the session")
			}
			if turn.Session.Status != models.StatusCompleted || *turn.Session.CompletionReason != models.ReasonBankExhausted {
				t.Fatalf("unexpected session state: %s/%v", turn.Session.Status, turn.Session.CompletionReason)
			}
		})
	}
}

func TestSubmitAnswerRejectsConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newSessionFixture(t, &stubCompletion{})

	session := activeSession(userID)
	f.sessions.Create(ctx, session)

	q := objectionQuestion()
	q.SessionID = session.ID
	f.questions.CreateBatch(ctx, []*models.Question{q})

	guard := &fakeGuard{deny: true}
	f.svc.guard = guard

	_, err := f.svc.SubmitAnswer(ctx, userID, session.ID, &models.SubmitAnswerRequest{QuestionID: q.ID, Text: "answer"})
	conflict, ok := err.(*StateConflictError)
	if !ok || conflict.Code != "DUPLICATE_SUBMISSION" {
		t.Fatalf("expected duplicate-submission conflict, got %v", err)
	}
}
