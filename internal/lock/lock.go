package lock

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"videofront/internal/logging"
)

// ErrUnavailable is returned by Run when another holder owns the lock.
var ErrUnavailable = errors.New("lock unavailable")

// MonitorUploadsKey names the lock held by the periodic upload sweep.
const MonitorUploadsKey = "monitor_uploads"

// TranscodeKey names the per-video transcoding lock.
func TranscodeKey(videoID string) string {
	return "transcode:" + strings.TrimSpace(videoID)
}

// Locker is a named lock with expiry shared by every worker.
type Locker interface {
	// Acquire atomically takes name for ttl when it is free. It reports false
	// without error when someone else holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Release drops name. Releasing an absent lock is not an error.
	Release(ctx context.Context, name string) error
	// Held reports whether name is currently taken.
	Held(ctx context.Context, name string) (bool, error)
}

// Run executes fn while holding name. It returns ErrUnavailable without
// calling fn when the lock is taken. The lock is released on every exit path,
// panics included. Release failures are logged and swallowed; the TTL bounds
// a leaked lock.
func Run(ctx context.Context, l Locker, logger *slog.Logger, name string, ttl time.Duration, fn func(context.Context) error) error {
	ok, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnavailable
	}
	defer func() {
		// Release with a fresh context so a cancelled caller still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx, name); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, loggerOrNop(logger)), "lock release failed", "lock_release_failed",
				logging.String(logging.FieldErrorHint, "the lock expires on its own after its ttl"),
				logging.String("lock", name),
				logging.Error(err),
			)
		}
	}()
	return fn(ctx)
}

// Wait polls until name is no longer held, the deadline passes, or ctx ends.
// It never acquires the lock. It reports true when the lock was observed free.
func Wait(ctx context.Context, l Locker, name string, interval time.Duration, deadline time.Time) (bool, error) {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		held, err := l.Held(ctx, name)
		if err != nil {
			return false, err
		}
		if !held {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

func loggerOrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}
