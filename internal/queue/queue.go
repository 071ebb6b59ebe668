// Package queue implements the durable submission queue on a Redis
// list. Enqueue is LPUSH, consume is BRPOPLPUSH into a processing list,
// and acknowledgement removes the claimed entry with LREM. Entries left
// in the processing list by a crashed worker are pushed back on startup.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"algojudge/internal/logging"
	"algojudge/pkg/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Queue is a FIFO job queue backed by a Redis list.
type Queue struct {
	client     *redis.Client
	name       string
	processing string
}

func New(client *redis.Client, name string) *Queue {
	return &Queue{
		client:     client,
		name:       name,
		processing: name + ":processing",
	}
}

// Enqueue appends a job to the queue.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available, claiming it onto the
// processing list. The returned raw payload must be passed to Ack once
// the job reaches a terminal state.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, string, error) {
	payload, err := q.client.BRPopLPush(ctx, q.name, q.processing, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", redis.Nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("dequeue: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// A malformed entry would otherwise wedge the processing list.
		q.client.LRem(ctx, q.processing, 1, payload)
		return nil, "", fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, payload, nil
}

// Ack removes a claimed job from the processing list.
func (q *Queue) Ack(ctx context.Context, payload string) error {
	return q.client.LRem(ctx, q.processing, 1, payload).Err()
}

// RequeueStale moves every entry stranded in the processing list back to
// the main queue. Called once at worker startup; combined with the
// terminal-state guard on updates, redelivered jobs are harmless.
func (q *Queue) RequeueStale(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.RPopLPush(ctx, q.processing, q.name).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("requeue stale: %w", err)
		}
		moved++
	}
	if moved > 0 {
		logging.L().Info("requeued stale jobs", zap.Int("count", moved))
	}
	return moved, nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
