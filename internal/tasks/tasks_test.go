package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/go-redis/redis/v8"

	"videofront/internal/config"
	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/tasks"
	"videofront/internal/uploads"
)

func TestTaskEncodeDecode(t *testing.T) {
	task := tasks.Transcode("vid", true)
	raw, err := task.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := tasks.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ID != task.ID || decoded.VideoID != "vid" || !decoded.DeleteOnFailure || decoded.Name != tasks.TranscodeVideo {
		t.Fatalf("unexpected task %#v", decoded)
	}

	for _, raw := range []string{`{"name":"bogus"}`, `{"name":"transcode_video"}`, `not json`} {
		if _, err := tasks.Decode([]byte(raw)); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}

func TestParseName(t *testing.T) {
	for _, name := range tasks.Names() {
		if got, err := tasks.ParseName(" " + string(name) + " "); err != nil || got != name {
			t.Fatalf("ParseName(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := tasks.ParseName("monitor"); err == nil {
		t.Fatal("expected unknown task error")
	}
}

func TestMemoryQueue(t *testing.T) {
	q := tasks.NewMemoryQueue()
	ctx := context.Background()

	d, err := q.Dequeue(ctx, 10*time.Millisecond)
	if err != nil || d != nil {
		t.Fatalf("expected empty dequeue, got %#v err=%v", d, err)
	}
	if err := q.Enqueue(ctx, tasks.Prune()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err = q.Dequeue(ctx, time.Second)
	if err != nil || d == nil || d.Task.Name != tasks.PruneReservations {
		t.Fatalf("unexpected delivery %#v err=%v", d, err)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	_ = q.Close()
	if err := q.Enqueue(ctx, tasks.Prune()); !errors.Is(err, tasks.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func newRedisQueue(t *testing.T) (*tasks.RedisQueue, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return tasks.NewRedisQueue(client, "videofront:tasks"), client
}

func TestRedisQueueAckAndRecover(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	first := tasks.Transcode("a", true)
	second := tasks.Transcode("b", false)
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	d, err := q.Dequeue(ctx, time.Second)
	if err != nil || d == nil {
		t.Fatalf("Dequeue: %#v err=%v", d, err)
	}
	if d.Task.ID != first.ID {
		t.Fatalf("expected FIFO order, got %#v", d.Task)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	// Simulate a crash: dequeue without ack.
	if d, err = q.Dequeue(ctx, time.Second); err != nil || d == nil {
		t.Fatalf("Dequeue: %#v err=%v", d, err)
	}
	if n, _ := client.LLen(ctx, "videofront:tasks:processing").Result(); n != 1 {
		t.Fatalf("expected one unacknowledged task, got %d", n)
	}
	moved, err := q.Recover(ctx)
	if err != nil || moved != 1 {
		t.Fatalf("Recover: moved=%d err=%v", moved, err)
	}
	d, err = q.Dequeue(ctx, time.Second)
	if err != nil || d == nil || d.Task.ID != second.ID {
		t.Fatalf("expected recovered task, got %#v err=%v", d, err)
	}
}

func TestRedisQueueDropsPoisonMessages(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	if err := client.LPush(ctx, "videofront:tasks", "garbage").Err(); err != nil {
		t.Fatalf("LPush: %v", err)
	}
	if _, err := q.Dequeue(ctx, time.Second); err == nil {
		t.Fatal("expected decode error")
	}
	if n, _ := client.LLen(ctx, "videofront:tasks:processing").Result(); n != 0 {
		t.Fatalf("poison message should be dropped, %d left", n)
	}
}

type fakeSQS struct {
	messages []sqstypes.Message
	deleted  []string
	nextID   int
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.nextID++
	handle := string(rune('a' + f.nextID))
	f.messages = append(f.messages, sqstypes.Message{Body: in.MessageBody, ReceiptHandle: aws.String(handle)})
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if len(f.messages) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{msg}}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	client := &fakeSQS{}
	q := tasks.NewSQSQueue(client, "https://sqs.test/queue")
	ctx := context.Background()

	if d, err := q.Dequeue(ctx, time.Minute); err != nil || d != nil {
		t.Fatalf("expected empty receive, got %#v err=%v", d, err)
	}
	if err := q.Enqueue(ctx, tasks.Reconcile("x", "y")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := q.Dequeue(ctx, time.Minute)
	if err != nil || d == nil {
		t.Fatalf("Dequeue: %#v err=%v", d, err)
	}
	if d.Task.Name != tasks.ReconcileUploads || len(d.Task.VideoIDs) != 2 {
		t.Fatalf("unexpected task %#v", d.Task)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected message deletion, got %v", client.deleted)
	}
}

type stubMonitor struct {
	reconciled [][]string
	locked     int
	pruned     int
}

func (s *stubMonitor) Reconcile(_ context.Context, ids ...string) (uploads.Result, error) {
	s.reconciled = append(s.reconciled, ids)
	return uploads.Result{}, nil
}

func (s *stubMonitor) ReconcileLocked(context.Context) (uploads.Result, error) {
	s.locked++
	return uploads.Result{}, nil
}

func (s *stubMonitor) PruneExpired(context.Context) (int64, error) {
	s.pruned++
	return 0, nil
}

type stubTranscoder struct {
	calls    []tasks.Task
	err      error
	restarts int
}

func (s *stubTranscoder) Transcode(_ context.Context, videoID string, deleteOnFailure bool) error {
	s.calls = append(s.calls, tasks.Task{VideoID: videoID, DeleteOnFailure: deleteOnFailure})
	return s.err
}

func (s *stubTranscoder) RestartRequested(context.Context) (int, error) {
	s.restarts++
	return 0, nil
}

func TestHandlersDispatch(t *testing.T) {
	monitor := &stubMonitor{}
	transcoder := &stubTranscoder{}
	w := tasks.NewWorker(tasks.NewMemoryQueue(), tasks.Handlers(monitor, transcoder), logging.NewNop())
	ctx := context.Background()

	for _, task := range []tasks.Task{
		tasks.Reconcile(),
		tasks.Reconcile("vid"),
		tasks.Transcode("vid", true),
		tasks.Restart(),
		tasks.Prune(),
	} {
		if err := w.Run(ctx, task); err != nil {
			t.Fatalf("Run %s: %v", task.Name, err)
		}
	}
	if monitor.locked != 1 || len(monitor.reconciled) != 1 || monitor.reconciled[0][0] != "vid" || monitor.pruned != 1 {
		t.Fatalf("unexpected monitor calls %#v", monitor)
	}
	if len(transcoder.calls) != 1 || !transcoder.calls[0].DeleteOnFailure || transcoder.restarts != 1 {
		t.Fatalf("unexpected transcoder calls %#v", transcoder)
	}

	if err := w.Run(ctx, tasks.Task{Name: "bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown task, got %v", err)
	}
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	q := tasks.NewMemoryQueue()
	transcoder := &stubTranscoder{err: services.Wrap(services.ErrTransient, "test", "op", "flaky", nil)}
	w := tasks.NewWorker(q, tasks.Handlers(&stubMonitor{}, transcoder), logging.NewNop(), tasks.WithMaxAttempts(2))
	ctx := context.Background()

	acked := 0
	w.Process(ctx, &tasks.Delivery{Task: tasks.Transcode("vid", true), Ack: func(context.Context) error { acked++; return nil }})
	if acked != 1 || q.Len() != 1 {
		t.Fatalf("expected ack and one retry, acked=%d queued=%d", acked, q.Len())
	}

	d, _ := q.Dequeue(ctx, time.Second)
	if d.Task.Attempt != 1 {
		t.Fatalf("expected attempt 1, got %d", d.Task.Attempt)
	}
	w.Process(ctx, d)
	if q.Len() != 0 {
		t.Fatal("expected no retry after max attempts")
	}
}

func TestWorkerDoesNotRetryValidationErrors(t *testing.T) {
	q := tasks.NewMemoryQueue()
	transcoder := &stubTranscoder{err: services.Wrap(services.ErrValidation, "test", "op", "bad input", nil)}
	w := tasks.NewWorker(q, tasks.Handlers(&stubMonitor{}, transcoder), logging.NewNop())

	w.Process(context.Background(), &tasks.Delivery{Task: tasks.Transcode("vid", true), Ack: func(context.Context) error { return nil }})
	if q.Len() != 0 {
		t.Fatal("validation errors must not be retried")
	}
}

func TestWorkerStartStop(t *testing.T) {
	q := tasks.NewMemoryQueue()
	transcoder := &stubTranscoder{}
	done := make(chan struct{})
	handlers := tasks.Handlers(&stubMonitor{}, transcoder)
	inner := handlers[tasks.TranscodeVideo]
	handlers[tasks.TranscodeVideo] = func(ctx context.Context, t tasks.Task) error {
		defer close(done)
		return inner(ctx, t)
	}
	w := tasks.NewWorker(q, handlers, logging.NewNop(), tasks.WithConcurrency(1), tasks.WithDequeueWait(10*time.Millisecond))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if err := tasks.Enqueuer(q)(context.Background(), "vid", true); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed")
	}
	w.Stop()
	if len(transcoder.calls) != 1 || transcoder.calls[0].VideoID != "vid" {
		t.Fatalf("unexpected calls %#v", transcoder.calls)
	}
}

func TestSchedulerRegistersEntries(t *testing.T) {
	sched := config.Schedule{Reconcile: "@every 30s", RestartSweep: "@every 5s", Prune: "@hourly"}
	s, err := tasks.NewScheduler(tasks.NewMemoryQueue(), sched, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if s.Entries() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Entries())
	}
	s.Start()
	s.Stop(context.Background())

	sched.Prune = ""
	s, err = tasks.NewScheduler(tasks.NewMemoryQueue(), sched, logging.NewNop())
	if err != nil || s.Entries() != 2 {
		t.Fatalf("expected empty spec to be skipped, entries=%d err=%v", s.Entries(), err)
	}

	if _, err := tasks.NewScheduler(tasks.NewMemoryQueue(), config.Schedule{Reconcile: "every minute"}, logging.NewNop()); err == nil {
		t.Fatal("expected invalid spec error")
	}
}

func TestSchedulerEnqueues(t *testing.T) {
	q := tasks.NewMemoryQueue()
	s, err := tasks.NewScheduler(q, config.Schedule{RestartSweep: "@every 1s"}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	d, err := q.Dequeue(context.Background(), 3*time.Second)
	if err != nil || d == nil {
		t.Fatalf("expected scheduled task, got %#v err=%v", d, err)
	}
	if d.Task.Name != tasks.RestartTranscodes {
		t.Fatalf("unexpected task %#v", d.Task)
	}
}
