package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AnswerGuard serializes answer submissions per (session, question) across
// instances with a Redis SETNX lock. A second submission arriving while the
// first is still being judged is rejected as a duplicate.
type AnswerGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAnswerGuard(redisClient *redis.Client, ttl time.Duration) *AnswerGuard {
	return &AnswerGuard{redis: redisClient, ttl: ttl}
}

func answerLockKey(sessionID, questionID uuid.UUID) string {
	return fmt.Sprintf("answer_lock:%s:%s", sessionID, questionID)
}

// TryLock reports whether this caller owns the submission. A Redis failure
// grants the lock so evaluation still works when Redis is down; the database
// duplicate check remains as the backstop.
func (g *AnswerGuard) TryLock(ctx context.Context, sessionID, questionID uuid.UUID) bool {
	locked, err := g.redis.SetNX(ctx, answerLockKey(sessionID, questionID), "1", g.ttl).Result()
	if err != nil {
		return true
	}
	return locked
}

func (g *AnswerGuard) Unlock(ctx context.Context, sessionID, questionID uuid.UUID) {
	g.redis.Del(ctx, answerLockKey(sessionID, questionID))
}
