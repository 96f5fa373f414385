package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"salescoach-backend/internal/models"
)

const AutosaveQueue = "queue:autosave"

// AutosaveStore keeps best-effort session snapshots in Redis. Writes go
// through a queue drained by the worker pool so the request path never waits
// on snapshot persistence; reads hit the snapshot key directly.
type AutosaveStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAutosaveStore(redisClient *redis.Client, ttl time.Duration) *AutosaveStore {
	return &AutosaveStore{redis: redisClient, ttl: ttl}
}

func snapshotKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session_snapshot:%s", sessionID)
}

// Enqueue hands a snapshot to the worker queue. Errors are logged and
// swallowed: autosave losing a checkpoint is acceptable, slowing down or
// failing a turn is not.
func (s *AutosaveStore) Enqueue(ctx context.Context, snapshot *models.AutosaveSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("autosave: failed to marshal snapshot for session %s: %v", snapshot.SessionID, err)
		return
	}
	if err := s.redis.LPush(ctx, AutosaveQueue, data).Err(); err != nil {
		log.Printf("autosave: failed to enqueue snapshot for session %s: %v", snapshot.SessionID, err)
	}
}

// Save writes the snapshot key. Newer checkpoints overwrite older ones; the
// TTL bounds how long an abandoned session can be resumed from Redis.
func (s *AutosaveStore) Save(ctx context.Context, snapshot *models.AutosaveSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, snapshotKey(snapshot.SessionID), data, s.ttl).Err()
}

// Load returns the latest snapshot, or nil when none exists or Redis is
// unavailable. Callers fall back to database state.
func (s *AutosaveStore) Load(ctx context.Context, sessionID uuid.UUID) *models.AutosaveSnapshot {
	data, err := s.redis.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("autosave: failed to load snapshot for session %s: %v", sessionID, err)
		}
		return nil
	}
	var snapshot models.AutosaveSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Printf("autosave: corrupt snapshot for session %s: %v", sessionID, err)
		return nil
	}
	return &snapshot
}

// Delete removes the snapshot once a session completes.
func (s *AutosaveStore) Delete(ctx context.Context, sessionID uuid.UUID) {
	if err := s.redis.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		log.Printf("autosave: failed to delete snapshot for session %s: %v", sessionID, err)
	}
}
