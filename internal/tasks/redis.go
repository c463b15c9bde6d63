package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue stores tasks in a Redis list. A dequeued task is moved to a
// processing list until acknowledged, so tasks held by a crashed worker can
// be recovered with Recover.
type RedisQueue struct {
	client        redis.Cmdable
	key           string
	processingKey string
}

// NewRedisQueue returns a queue on the list named key.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, processingKey: key + ":processing"}
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	raw, err := t.Encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Name, err)
	}
	return nil
}

// Dequeue implements Queue.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.key, q.processingKey, wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	ack := func(ctx context.Context) error {
		return q.client.LRem(ctx, q.processingKey, 1, raw).Err()
	}
	t, err := Decode([]byte(raw))
	if err != nil {
		// Poison messages are dropped.
		_ = ack(ctx)
		return nil, err
	}
	return &Delivery{Task: t, Ack: ack}, nil
}

// Recover moves every unacknowledged task back onto the queue. Call it once
// at daemon start, before workers run.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingKey, q.key).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover tasks: %w", err)
		}
		moved++
	}
}

// Len reports how many tasks are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close implements Queue. The client is owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}
