package services

import (
	"context"
	"log"
	"time"
)

const expiryPollInterval = 30 * time.Second

// ExpiryScheduler periodically closes timed sessions whose clock ran out
// without the client calling end. Expiry is also checked on every submit, so
// the sweep only covers abandoned sessions.
type ExpiryScheduler struct {
	sessions *SessionService
	stopChan chan struct{}
}

func NewExpiryScheduler(sessions *SessionService) *ExpiryScheduler {
	return &ExpiryScheduler{
		sessions: sessions,
		stopChan: make(chan struct{}),
	}
}

func (s *ExpiryScheduler) Start() {
	if s.sessions == nil {
		return
	}
	go s.loop()
	log.Printf("Session expiry scheduler started")
}

func (s *ExpiryScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ExpiryScheduler) loop() {
	ticker := time.NewTicker(expiryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sessions.ExpireDueSessions(context.Background())
		}
	}
}
