package transcode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"videofront/internal/backend"
	"videofront/internal/cache"
	"videofront/internal/lock"
	"videofront/internal/logging"
	"videofront/internal/metrics"
	"videofront/internal/services"
	"videofront/internal/store"
)

const (
	// DefaultPollInterval separates two progress sweeps.
	DefaultPollInterval = 10 * time.Second
	// DefaultLockTTL bounds how long a crashed attempt blocks the next one.
	DefaultLockTTL = time.Hour
)

// Coordinator runs transcoding attempts.
type Coordinator struct {
	store   *store.Store
	backend backend.Backend
	locker  lock.Locker
	cache   *cache.VideoCache
	logger  *slog.Logger

	pollInterval time.Duration
	lockTTL      time.Duration
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets the delay between progress sweeps. Zero polls
// back-to-back.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval >= 0 {
			c.pollInterval = interval
		}
	}
}

// WithLockTTL sets the per-video lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator wires a coordinator.
func NewCoordinator(st *store.Store, b backend.Backend, locker lock.Locker, vc *cache.VideoCache, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        st,
		backend:      b,
		locker:       locker,
		cache:        vc,
		logger:       logging.NewComponentLogger(logger, "transcode"),
		pollInterval: DefaultPollInterval,
		lockTTL:      DefaultLockTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcode runs one attempt for videoID. When another attempt holds the
// video's lock the call returns nil without doing anything. Job failures are
// recorded in the processing state and are not returned; any other error is
// recorded as a failure and returned so the task can be retried.
func (c *Coordinator) Transcode(ctx context.Context, videoID string, deleteOnFailure bool) error {
	ctx = services.WithVideoID(ctx, videoID)
	err := lock.Run(ctx, c.locker, c.logger, lock.TranscodeKey(videoID), c.lockTTL, func(ctx context.Context) error {
		return c.attempt(ctx, videoID, deleteOnFailure)
	})
	if errors.Is(err, lock.ErrUnavailable) {
		metrics.TranscodeAttemptsTotal.WithLabelValues("skipped").Inc()
		logging.WithContext(ctx, c.logger).Debug("transcode already running; skipping",
			logging.String(logging.FieldEventType, "transcode_skipped"),
		)
		return nil
	}
	return err
}

// Running reports whether an attempt currently holds the lock of videoID.
func (c *Coordinator) Running(ctx context.Context, videoID string) (bool, error) {
	return c.locker.Held(ctx, lock.TranscodeKey(videoID))
}

// WaitIdle blocks until no attempt holds the lock of videoID or deadline
// passes. It does not take the lock.
func (c *Coordinator) WaitIdle(ctx context.Context, videoID string, deadline time.Time) (bool, error) {
	interval := c.pollInterval
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	return lock.Wait(ctx, c.locker, lock.TranscodeKey(videoID), interval, deadline)
}

func (c *Coordinator) sleep(ctx context.Context) error {
	if c.pollInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
