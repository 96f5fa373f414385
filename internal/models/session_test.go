package models

import (
	"testing"
	"time"
)

func TestRemainingSeconds(t *testing.T) {
	now := time.Now()
	resumed := now.Add(-2 * time.Minute)

	tests := []struct {
		name    string
		session TrainingSession
		want    int
	}{
		{
			"active session clock runs",
			TrainingSession{Status: StatusActive, DurationMinutes: 10, ElapsedSeconds: 60, LastResumedAt: &resumed},
			10*60 - 60 - 120,
		},
		{
			"paused session clock frozen",
			TrainingSession{Status: StatusPaused, DurationMinutes: 10, ElapsedSeconds: 300},
			300,
		},
		{
			"never below zero",
			TrainingSession{Status: StatusActive, DurationMinutes: 1, ElapsedSeconds: 0, LastResumedAt: &resumed},
			0,
		},
		{
			"completed session keeps final value",
			TrainingSession{Status: StatusCompleted, DurationMinutes: 10, ElapsedSeconds: 400},
			200,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.RemainingSeconds(now); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestTimeExpired(t *testing.T) {
	now := time.Now()
	resumed := now.Add(-30 * time.Minute)

	expired := TrainingSession{Status: StatusActive, Mode: ModeStandard, DurationMinutes: 10, LastResumedAt: &resumed}
	if !expired.TimeExpired(now) {
		t.Fatal("expected timed session to expire")
	}

	practice := TrainingSession{Status: StatusActive, Mode: ModePractice, DurationMinutes: 10, LastResumedAt: &resumed}
	if practice.TimeExpired(now) {
		t.Fatal("practice mode never expires")
	}

	fresh := TrainingSession{Status: StatusActive, Mode: ModeExam, DurationMinutes: 60, LastResumedAt: &resumed}
	if fresh.TimeExpired(now) {
		t.Fatal("fresh session must not expire")
	}
}
