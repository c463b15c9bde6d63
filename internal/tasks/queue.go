package tasks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a queue after Close.
var ErrClosed = errors.New("task queue closed")

// Delivery is a dequeued task. Ack must be called once the task has been
// handled (or handed back with a retry) so the queue can forget it.
type Delivery struct {
	Task Task
	Ack  func(ctx context.Context) error
}

// Queue transports tasks between producers and workers.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue waits up to wait for a task. It returns (nil, nil) when none
	// arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error)
	Close() error
}

const memoryQueueCapacity = 1024

// MemoryQueue is an in-process queue for a single daemon. Tasks do not
// survive a restart.
type MemoryQueue struct {
	ch     chan Task
	once   sync.Once
	closed chan struct{}
}

// NewMemoryQueue returns an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{ch: make(chan Task, memoryQueueCapacity), closed: make(chan struct{})}
}

// Enqueue implements Queue. It blocks while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- t:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue implements Queue.
func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case t := <-q.ch:
		return &Delivery{Task: t, Ack: func(context.Context) error { return nil }}, nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// Len reports how many tasks are waiting.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close implements Queue.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
