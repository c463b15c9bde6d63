package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]time.Time), now: time.Now}
}

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if expires, ok := l.entries[name]; ok && now.Before(expires) {
		return false, nil
	}
	l.entries[name] = now.Add(ttl)
	return true, nil
}

// Release implements Locker.
func (l *MemoryLocker) Release(_ context.Context, name string) error {
	l.mu.Lock()
	delete(l.entries, name)
	l.mu.Unlock()
	return nil
}

// Held implements Locker.
func (l *MemoryLocker) Held(_ context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expires, ok := l.entries[name]
	if !ok {
		return false, nil
	}
	if !l.now().Before(expires) {
		delete(l.entries, name)
		return false, nil
	}
	return true, nil
}
