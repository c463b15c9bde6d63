package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLocker implements Locker with SET NX EX on a shared Redis.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLocker builds a locker on client. Keys are stored as prefix+name.
func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Release implements Locker.
func (l *RedisLocker) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.prefix+name).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Held implements Locker.
func (l *RedisLocker) Held(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+name).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", name, err)
	}
	return n > 0, nil
}
