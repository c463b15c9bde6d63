package uploads

import (
	"context"
	"errors"
	"fmt"
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

// DefaultGrace is the reservation lifetime and the window during which an
// expired reservation is still checked.
const DefaultGrace = time.Hour

// EnqueueFunc schedules a transcoding attempt for a newly created video.
type EnqueueFunc func(ctx context.Context, videoID string, deleteOnFailure bool) error

// Result summarizes one reconciliation sweep.
type Result struct {
	Checked   int
	Confirmed int
	Enqueued  int
	Failed    int
}

// Monitor detects completed uploads.
type Monitor struct {
	store   *store.Store
	backend backend.Backend
	locker  lock.Locker
	cache   *cache.VideoCache
	enqueue EnqueueFunc
	logger  *slog.Logger

	grace   time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithGrace overrides the reservation grace window.
func WithGrace(grace time.Duration) Option {
	return func(m *Monitor) {
		if grace > 0 {
			m.grace = grace
		}
	}
}

// WithLockTTL overrides the expiry of the sweep lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Monitor) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor wires an upload monitor. enqueue may be nil, in which case new
// videos are created but no attempt is scheduled.
func NewMonitor(st *store.Store, b backend.Backend, locker lock.Locker, vc *cache.VideoCache, enqueue EnqueueFunc, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:   st,
		backend: b,
		locker:  locker,
		cache:   vc,
		enqueue: enqueue,
		logger:  logging.NewComponentLogger(logger, "uploads"),
		grace:   DefaultGrace,
		lockTTL: time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Grace returns the configured grace window.
func (m *Monitor) Grace() time.Duration {
	return m.grace
}

// ReconcileLocked runs a full sweep under the monitor_uploads lock. A sweep
// already running elsewhere makes this call a no-op.
func (m *Monitor) ReconcileLocked(ctx context.Context) (Result, error) {
	var res Result
	err := lock.Run(ctx, m.locker, m.logger, lock.MonitorUploadsKey, m.lockTTL, func(ctx context.Context) error {
		var err error
		res, err = m.Reconcile(ctx)
		return err
	})
	if errors.Is(err, lock.ErrUnavailable) {
		m.logger.Debug("upload sweep already running; skipping")
		return res, nil
	}
	return res, err
}

// Reconcile checks every candidate reservation, optionally restricted to
// publicVideoIDs. Backend errors other than "not uploaded" are logged and
// counted; the reservation is retried by the next sweep.
func (m *Monitor) Reconcile(ctx context.Context, publicVideoIDs ...string) (Result, error) {
	var res Result
	now := m.now()
	candidates, err := m.store.ReservationsToCheck(ctx, now, m.grace, publicVideoIDs...)
	if err != nil {
		return res, services.Wrap(services.ErrTransient, "uploads", "list candidates", "Failed to load upload reservations", err)
	}

	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		if err := m.check(ctx, r, now, &res); err != nil {
			res.Failed++
			metrics.UploadChecksFailedTotal.Inc()
			logging.WarnWithContext(logging.WithContext(services.WithVideoID(ctx, r.PublicVideoID), m.logger),
				"upload check failed", "upload_check_failed",
				logging.String(logging.FieldErrorHint, "reservation will be checked again on the next sweep"),
				logging.Error(err),
			)
		}
	}

	if res.Confirmed > 0 || res.Failed > 0 {
		m.logger.Info("upload sweep complete",
			logging.String(logging.FieldEventType, "upload_sweep_complete"),
			logging.Int("checked", res.Checked),
			logging.Int("confirmed", res.Confirmed),
			logging.Int("enqueued", res.Enqueued),
			logging.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (m *Monitor) check(ctx context.Context, r *store.Reservation, now time.Time, res *Result) error {
	ctx = services.WithVideoID(ctx, r.PublicVideoID)
	err := m.backend.CheckUploaded(ctx, r.PublicVideoID)
	if errors.Is(err, backend.ErrNotUploaded) {
		return m.store.TouchReservation(ctx, r.PublicVideoID, now)
	}
	if err != nil {
		return fmt.Errorf("check uploaded: %w", err)
	}

	video, claimed, err := m.store.ConsumeReservation(ctx, r.PublicVideoID, now)
	if err != nil {
		return fmt.Errorf("consume reservation: %w", err)
	}
	res.Confirmed++
	metrics.UploadsConfirmedTotal.Inc()
	m.cache.Invalidate(ctx, video.PublicID)
	if !claimed {
		return nil
	}

	logging.WithContext(ctx, m.logger).Info("upload confirmed",
		logging.String(logging.FieldEventType, "upload_confirmed"),
		logging.String("title", video.Title),
		logging.String("owner", video.Owner),
	)
	if m.enqueue == nil {
		return nil
	}
	if err := m.enqueue(ctx, video.PublicID, true); err != nil {
		// The reservation goes back into the candidate set; the next sweep
		// finds the existing video and enqueues it again.
		if reopenErr := m.store.ReopenReservation(ctx, r.PublicVideoID); reopenErr != nil {
			return fmt.Errorf("enqueue transcode: %w (reopen reservation: %v)", err, reopenErr)
		}
		return fmt.Errorf("enqueue transcode: %w", err)
	}
	res.Enqueued++
	return nil
}

// PruneExpired deletes unconsumed reservations that expired more than twice
// the grace window ago.
func (m *Monitor) PruneExpired(ctx context.Context) (int64, error) {
	removed, err := m.store.PruneReservations(ctx, m.now(), m.grace)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "uploads", "prune", "Failed to prune reservations", err)
	}
	if removed > 0 {
		metrics.ReservationsPrunedTotal.Add(float64(removed))
		m.logger.Info("pruned expired reservations",
			logging.String(logging.FieldEventType, "reservations_pruned"),
			logging.Int64("removed", removed),
		)
	}
	return removed, nil
}
