package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"videofront/internal/logging"
	"videofront/internal/metrics"
	"videofront/internal/services"
)

// Handler runs one task.
type Handler func(ctx context.Context, t Task) error

const (
	defaultConcurrency = 2
	defaultMaxAttempts = 3
	defaultDequeueWait = 5 * time.Second
	errorBackoff       = time.Second
)

// Worker consumes a Queue with a fixed number of goroutines.
type Worker struct {
	queue       Queue
	logger      *slog.Logger
	handlers    map[Name]Handler
	concurrency int
	maxAttempts int
	wait        time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of consuming goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithMaxAttempts bounds how often a retryable task is delivered.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithDequeueWait sets how long one Dequeue call blocks.
func WithDequeueWait(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.wait = d
		}
	}
}

// NewWorker builds a worker for handlers.
func NewWorker(q Queue, handlers map[Name]Handler, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       q,
		logger:      logging.NewComponentLogger(logger, "worker"),
		handlers:    handlers,
		concurrency: defaultConcurrency,
		maxAttempts: defaultMaxAttempts,
		wait:        defaultDequeueWait,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consuming goroutines.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go w.loop(runCtx)
	}
	w.logger.Info("task workers started",
		logging.String(logging.FieldEventType, "workers_started"),
		logging.Int("concurrency", w.concurrency),
	)
	return nil
}

// Stop cancels the consumers and waits for in-flight tasks to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := w.queue.Dequeue(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			logging.WarnWithContext(w.logger, "dequeue failed", "dequeue_failed",
				logging.String(logging.FieldErrorHint, "check queue connectivity"),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		w.Process(ctx, delivery)
	}
}

// Process runs one delivery, re-enqueues it when it failed with a retryable
// error and attempts remain, then acknowledges it.
func (w *Worker) Process(ctx context.Context, d *Delivery) {
	t := d.Task
	err := w.Run(ctx, t)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if ctx.Err() == nil && services.Retryable(err) && t.Attempt+1 < w.maxAttempts {
			if enqErr := w.queue.Enqueue(ctx, t.Retry()); enqErr == nil {
				outcome = "retry"
			} else {
				err = errors.Join(err, enqErr)
			}
		}
	}
	metrics.TasksTotal.WithLabelValues(string(t.Name), outcome).Inc()

	if ctx.Err() != nil && err != nil {
		// Leave the delivery unacknowledged so a durable queue hands it out
		// again after restart.
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ackErr := d.Ack(ackCtx); ackErr != nil {
		logging.WarnWithContext(w.logger, "task ack failed", "task_ack_failed",
			logging.String(logging.FieldErrorHint, "the task may be delivered again"),
			logging.String("task_id", t.ID),
			logging.Error(ackErr),
		)
	}
	if outcome == "retry" {
		logging.WarnWithContext(w.logger, "task failed; retrying", "task_retry",
			logging.String(logging.FieldErrorHint, "transient failures are retried automatically"),
			logging.String("task", string(t.Name)),
			logging.String("task_id", t.ID),
			logging.Int("attempt", t.Attempt+1),
			logging.Error(err),
		)
	}
	if outcome == "error" {
		logging.ErrorWithContext(w.logger, "task failed", "task_failed",
			logging.String(logging.FieldErrorHint, "inspect the error; the task will not be retried"),
			logging.String(logging.FieldImpact, "the work is dropped until the next scheduled sweep or a manual run"),
			logging.String("task", string(t.Name)),
			logging.String("task_id", t.ID),
			logging.Int("attempt", t.Attempt+1),
			logging.Error(err),
		)
	}
}

// Run executes t synchronously with its handler.
func (w *Worker) Run(ctx context.Context, t Task) error {
	handler, ok := w.handlers[t.Name]
	if !ok {
		return services.Wrap(services.ErrValidation, "worker", "dispatch", fmt.Sprintf("no handler for task %q", t.Name), nil)
	}
	ctx = services.WithRequestID(ctx, t.ID)
	ctx = services.WithTask(ctx, string(t.Name))
	if t.VideoID != "" {
		ctx = services.WithVideoID(ctx, t.VideoID)
	}
	logger := logging.WithContext(ctx, w.logger)

	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()
	start := time.Now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(string(t.Name)).Observe(time.Since(start).Seconds())
	}()

	logger.Debug("task started", logging.Int("attempt", t.Attempt+1))
	if err := handler(ctx, t); err != nil {
		return err
	}
	logger.Debug("task finished", logging.Duration("elapsed", time.Since(start)))
	return nil
}
