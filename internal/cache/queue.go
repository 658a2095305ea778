package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshJob asks the worker to re-ingest one playlist source.
type RefreshJob struct {
	SourceID   int64     `json:"source_id"`
	SourceName string    `json:"source_name"`
	Queued     time.Time `json:"queued"`
}

// RefreshQueue is the list key holding pending refresh jobs.
const RefreshQueue = "jobs:refresh"

// Enqueue pushes job onto the left of queue.
func Enqueue(ctx context.Context, r *Redis, queue string, job RefreshJob) error {
	if job.Queued.IsZero() {
		job.Queued = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, KeyPrefix+queue, data).Err()
}

// Dequeue blocks up to timeout for a job from the right of queue.
// (nil, nil) means nothing arrived or ctx was cancelled; the caller loops.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*RefreshJob, error) {
	result, err := r.client.BRPop(ctx, timeout, KeyPrefix+queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	var job RefreshJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}

// QueueLen reports the number of pending jobs.
func QueueLen(ctx context.Context, r *Redis, queue string) (int64, error) {
	return r.client.LLen(ctx, KeyPrefix+queue).Result()
}
