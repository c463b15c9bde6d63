package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-redis/redis/v8"

	"videofront/internal/api"
	"videofront/internal/backend"
	awsbackend "videofront/internal/backend/aws"
	"videofront/internal/backend/local"
	"videofront/internal/cache"
	"videofront/internal/config"
	"videofront/internal/lock"
	"videofront/internal/logging"
	"videofront/internal/store"
	"videofront/internal/subtitles"
	"videofront/internal/tasks"
	"videofront/internal/transcode"
	"videofront/internal/uploads"
)

const (
	lockPrefix = "videofront:lock:"
	drainWait  = 10 * time.Millisecond
)

// App holds every long-lived component of the orchestrator.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       *store.Store
	Backend     backend.Backend
	Redis       *redis.Client
	Locker      lock.Locker
	Cache       *cache.VideoCache
	Queue       tasks.Queue
	Monitor     *uploads.Monitor
	Coordinator *transcode.Coordinator
	Subtitles   *subtitles.Service
	Views       *api.Views

	closers []func() error
}

// Option overrides a component during Open, mostly for tests.
type Option func(*openOptions)

type openOptions struct {
	backend backend.Backend
	sqs     tasks.SQSAPI
}

// WithBackend uses b instead of building one from configuration.
func WithBackend(b backend.Backend) Option {
	return func(o *openOptions) { o.backend = b }
}

// WithSQSClient uses client for an sqs task queue.
func WithSQSClient(client tasks.SQSAPI) Option {
	return func(o *openOptions) { o.sqs = client }
}

// Open builds an App. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.open(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, o openOptions) error {
	cfg := a.Config
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	b := o.backend
	if b == nil {
		b, err = newBackend(ctx, cfg, a.Logger)
		if err != nil {
			return err
		}
		if closer, ok := b.(io.Closer); ok {
			a.closers = append(a.closers, closer.Close)
		}
	}
	a.Backend = b

	var cacheStore cache.Store
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, a.Redis.Close)
		a.Locker = lock.NewRedisLocker(a.Redis, lockPrefix)
		cacheStore = cache.NewRedisStore(a.Redis)
	} else {
		a.Locker = lock.NewMemoryLocker()
		cacheStore = cache.NewMemoryStore()
	}
	a.Cache = cache.NewVideoCache(cacheStore, cfg.CacheTTL(), a.Logger)

	q, err := a.newQueue(ctx, o)
	if err != nil {
		return err
	}
	a.Queue = q
	a.closers = append(a.closers, q.Close)

	a.Monitor = uploads.NewMonitor(st, b, a.Locker, a.Cache, tasks.Enqueuer(q), a.Logger,
		uploads.WithGrace(cfg.UploadGrace()),
		uploads.WithLockTTL(cfg.MonitorLockTTL()),
	)
	a.Coordinator = transcode.NewCoordinator(st, b, a.Locker, a.Cache, a.Logger,
		transcode.WithPollInterval(cfg.PollInterval()),
		transcode.WithLockTTL(cfg.TranscodeLockTTL()),
	)
	a.Subtitles = subtitles.NewService(st, b, a.Cache, cfg.Subtitles.MaxBytes, a.Logger)
	a.Views = api.NewViews(st, b, a.Cache, a.Logger)
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendLocal:
		return local.New(cfg.Local, logger)
	case config.BackendAWS:
		return awsbackend.New(ctx, cfg.AWS, logger)
	default:
		return nil, fmt.Errorf("backend.kind: unsupported value %q", cfg.Backend.Kind)
	}
}

func (a *App) newQueue(ctx context.Context, o openOptions) (tasks.Queue, error) {
	cfg := a.Config
	switch cfg.Tasks.Queue {
	case config.QueueMemory, "":
		return tasks.NewMemoryQueue(), nil
	case config.QueueRedis:
		if a.Redis == nil {
			return nil, errors.New("tasks.queue is redis but redis.addr is empty")
		}
		return tasks.NewRedisQueue(a.Redis, cfg.Tasks.RedisKey), nil
	case config.QueueSQS:
		client := o.sqs
		if client == nil {
			awsCfg, err := awsbackend.LoadConfig(ctx, cfg.AWS)
			if err != nil {
				return nil, err
			}
			client = sqs.NewFromConfig(awsCfg)
		}
		return tasks.NewSQSQueue(client, cfg.Tasks.SQSQueueURL), nil
	default:
		return nil, fmt.Errorf("tasks.queue: unsupported value %q", cfg.Tasks.Queue)
	}
}

// Handlers maps every task onto this App's services.
func (a *App) Handlers() map[tasks.Name]tasks.Handler {
	return tasks.Handlers(a.Monitor, a.Coordinator)
}

// RunTask executes t synchronously in the calling process.
func (a *App) RunTask(ctx context.Context, t tasks.Task) error {
	return tasks.NewWorker(a.Queue, a.Handlers(), a.Logger).Run(ctx, t)
}

// DrainLocal runs every task waiting in an in-process queue, including tasks
// enqueued while draining, and reports how many ran. Durable queues are left
// to the daemon and report zero.
func (a *App) DrainLocal(ctx context.Context) (int, error) {
	mq, ok := a.Queue.(*tasks.MemoryQueue)
	if !ok {
		return 0, nil
	}
	worker := tasks.NewWorker(mq, a.Handlers(), a.Logger)
	ran := 0
	var errs []error
	for mq.Len() > 0 {
		d, err := mq.Dequeue(ctx, drainWait)
		if err != nil {
			return ran, err
		}
		if d == nil {
			break
		}
		if err := worker.Run(ctx, d.Task); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Task.Name, err))
		}
		ran++
	}
	return ran, errors.Join(errs...)
}

// Ping reports whether the store and, when configured, Redis are reachable.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
