package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"videofront/internal/app"
	"videofront/internal/config"
	"videofront/internal/lock"
	"videofront/internal/logging"
	"videofront/internal/store"
	"videofront/internal/tasks"
)

// Daemon runs the workers, the scheduler, and the HTTP surface of one app.
type Daemon struct {
	cfg    *config.Config
	app    *app.App
	logger *slog.Logger

	lockPath  string
	lock      *flock.Flock
	worker    *tasks.Worker
	scheduler *tasks.Scheduler
	server    *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	DatabasePath    string
	LockFilePath    string
	APIAddress      string
	Backend         string
	Queue           string
	Workers         int
	ScheduleEntries int
}

// New constructs a daemon around an opened app.
func New(cfg *config.Config, a *app.App, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || a == nil {
		return nil, errors.New("daemon requires config and app")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	scheduler, err := tasks.NewScheduler(a.Queue, cfg.Schedule, logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	d := &Daemon{
		cfg:       cfg,
		app:       a,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		lockPath:  cfg.DaemonLockPath(),
		lock:      flock.New(cfg.DaemonLockPath()),
		scheduler: scheduler,
		worker: tasks.NewWorker(a.Queue, a.Handlers(), logger,
			tasks.WithConcurrency(cfg.Tasks.Workers),
			tasks.WithMaxAttempts(cfg.Tasks.MaxAttempts),
		),
	}
	d.server = newAPIServer(cfg, a, logger)
	return d, nil
}

// Start acquires the daemon lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another videofront daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.recoverQueue(runCtx)
	d.recoverInterrupted(runCtx)

	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.worker.Start(runCtx); err != nil {
		cancel()
		d.server.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workers: %w", err)
	}
	d.scheduler.Start()

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("videofront daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.address()),
		logging.String("queue", d.cfg.Tasks.Queue),
		logging.Int("schedules", d.scheduler.Entries()),
	)
	return nil
}

// recoverQueue hands tasks a crashed worker took from Redis back to the queue.
func (d *Daemon) recoverQueue(ctx context.Context) {
	rq, ok := d.app.Queue.(*tasks.RedisQueue)
	if !ok {
		return
	}
	moved, err := rq.Recover(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "task recovery failed", "task_recovery_failed",
			logging.String(logging.FieldErrorHint, "check redis connectivity"),
			logging.String(logging.FieldImpact, "tasks held by a crashed worker stay parked until the next start"),
			logging.Error(err),
		)
		return
	}
	if moved > 0 {
		d.logger.Info("recovered unacknowledged tasks",
			logging.String(logging.FieldEventType, "tasks_recovered"),
			logging.Int("count", moved),
		)
	}
}

// recoverInterrupted marks attempts left in processing by a crash for
// restart, unless another worker still holds their lock.
func (d *Daemon) recoverInterrupted(ctx context.Context) {
	ids, err := d.app.Store.VideoIDsWithStatus(ctx, store.StatusProcessing)
	if err != nil {
		logging.WarnWithContext(d.logger, "interrupted attempt scan failed", "recover_scan_failed",
			logging.String(logging.FieldErrorHint, "check the state database"),
			logging.Error(err),
		)
		return
	}
	for _, id := range ids {
		held, err := d.app.Locker.Held(ctx, lock.TranscodeKey(id))
		if err != nil || held {
			continue
		}
		if err := d.app.Coordinator.RequestRestart(ctx, id); err != nil {
			logging.WarnWithContext(d.logger, "restart request failed", "recover_restart_failed",
				logging.String(logging.FieldVideoID, id),
				logging.String(logging.FieldErrorHint, "run videofront video restart manually"),
				logging.Error(err),
			)
			continue
		}
		d.logger.Info("interrupted attempt scheduled for restart",
			logging.String(logging.FieldEventType, "attempt_recovered"),
			logging.String(logging.FieldVideoID, id),
		)
	}
}

// Stop stops background processing and releases the daemon lock. In-flight
// attempts see their context cancelled and record a restart request.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.scheduler.Stop(stopCtx)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("videofront daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon. The app is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddress returns the bound HTTP address, empty when not listening.
func (d *Daemon) APIAddress() string {
	return d.server.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.cfg.DatabasePath(),
		LockFilePath:    d.lockPath,
		APIAddress:      d.server.address(),
		Backend:         d.cfg.Backend.Kind,
		Queue:           d.cfg.Tasks.Queue,
		Workers:         d.cfg.Tasks.Workers,
		ScheduleEntries: d.scheduler.Entries(),
	}
}
