package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/model"
)

// SubmissionQueue pushes submissions to the Redis list drained by the
// submission worker. It satisfies collector.Sink.
type SubmissionQueue struct {
	rdb *redis.Client
}

// NewSubmissionQueue creates a new SubmissionQueue.
func NewSubmissionQueue(rdb *redis.Client) *SubmissionQueue {
	return &SubmissionQueue{rdb: rdb}
}

// Submit enqueues sub.
func (q *SubmissionQueue) Submit(ctx context.Context, sub model.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw).Err()
}
