package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"salescoach-backend/internal/models"
	"salescoach-backend/internal/services"
)

// Pool drains the autosave queue and persists snapshots. Autosave is
// fire-and-forget on the request path; this pool is the only writer of the
// snapshot keys.
type Pool struct {
	redis       *redis.Client
	autosave    *services.AutosaveStore
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, autosave *services.AutosaveStore, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		autosave:    autosave,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d autosave worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, services.AutosaveQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var snapshot models.AutosaveSnapshot
		if err := json.Unmarshal([]byte(result[1]), &snapshot); err != nil {
			log.Printf("Worker %d: failed to parse snapshot: %v", id, err)
			continue
		}

		// Out-of-order queue entries must not roll a session back to an older
		// checkpoint.
		if existing := p.autosave.Load(ctx, snapshot.SessionID); existing != nil && existing.UpdatedAt.After(snapshot.UpdatedAt) {
			continue
		}

		if err := p.autosave.Save(ctx, &snapshot); err != nil {
			log.Printf("Worker %d: failed to save snapshot for session %s: %v", id, snapshot.SessionID, err)
		}
	}
}
