package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"videofront/internal/config"
	"videofront/internal/logging"
)

// Scheduler enqueues the periodic sweeps on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	queue  Queue
	logger *slog.Logger
}

// NewScheduler registers one entry per non-empty spec of sched. Specs use the
// standard five-field syntax or descriptors such as "@every 30s".
func NewScheduler(q Queue, sched config.Schedule, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		queue:  q,
		logger: logging.NewComponentLogger(logger, "scheduler"),
	}
	entries := []struct {
		spec string
		task func() Task
	}{
		{sched.Reconcile, func() Task { return Reconcile() }},
		{sched.RestartSweep, Restart},
		{sched.Prune, Prune},
	}
	for _, entry := range entries {
		spec := strings.TrimSpace(entry.spec)
		if spec == "" {
			continue
		}
		build := entry.task
		if _, err := s.cron.AddFunc(spec, func() { s.enqueue(build()) }); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", spec, err)
		}
	}
	return s, nil
}

// Entries reports the number of registered schedules.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) enqueue(t Task) {
	if err := s.queue.Enqueue(context.Background(), t); err != nil {
		logging.WarnWithContext(s.logger, "scheduled task not enqueued", "schedule_enqueue_failed",
			logging.String(logging.FieldErrorHint, "check queue connectivity; the next tick tries again"),
			logging.String("task", string(t.Name)),
			logging.Error(err),
		)
	}
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedules and waits for running enqueues, or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
