package uploads_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"videofront/internal/cache"
	"videofront/internal/lock"
	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/store"
	"videofront/internal/testsupport"
	"videofront/internal/uploads"
)

type enqueued struct {
	videoID         string
	deleteOnFailure bool
}

type harness struct {
	store   *store.Store
	backend *testsupport.FakeBackend
	locker  lock.Locker
	monitor *uploads.Monitor
	now     time.Time

	mu         sync.Mutex
	calls      []enqueued
	enqueueErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		store:   testsupport.MustOpenStore(t, cfg),
		backend: testsupport.NewFakeBackend("LD"),
		locker:  lock.NewMemoryLocker(),
		now:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	enqueue := func(_ context.Context, videoID string, deleteOnFailure bool) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.enqueueErr != nil {
			return h.enqueueErr
		}
		h.calls = append(h.calls, enqueued{videoID, deleteOnFailure})
		return nil
	}
	vc := cache.NewVideoCache(cache.NewMemoryStore(), 0, logging.NewNop())
	h.monitor = uploads.NewMonitor(h.store, h.backend, h.locker, vc, enqueue, logging.NewNop(),
		uploads.WithGrace(time.Hour),
		uploads.WithClock(func() time.Time { return h.now }),
	)
	return h
}

func (h *harness) enqueued() []enqueued {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]enqueued(nil), h.calls...)
}

func TestReconcileCreatesVideoOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "/tmp/lecture.mp4", Owner: "alice"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Filename != "lecture.mp4" || !r.ExpiresAt.Equal(h.now.Add(time.Hour)) {
		t.Fatalf("unexpected reservation %#v", r)
	}
	h.backend.MarkUploaded(r.PublicVideoID, "lecture.mp4")

	res, err := h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Confirmed != 1 || res.Enqueued != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
	if _, err := h.monitor.Reconcile(ctx); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	// Explicitly re-check the consumed reservation, as a retried task would.
	if _, err := h.monitor.Reconcile(ctx, r.PublicVideoID); err != nil {
		t.Fatalf("filtered Reconcile: %v", err)
	}

	calls := h.enqueued()
	if len(calls) != 1 || calls[0].videoID != r.PublicVideoID || !calls[0].deleteOnFailure {
		t.Fatalf("expected exactly one transcode enqueue, got %#v", calls)
	}
	video, err := h.store.GetVideo(ctx, r.PublicVideoID)
	if err != nil || video == nil {
		t.Fatalf("expected video, got %#v err=%v", video, err)
	}
	if video.Title != "lecture.mp4" || video.Owner != "alice" {
		t.Fatalf("unexpected video %#v", video)
	}
}

func (h *harness) failEnqueue(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueErr = err
}

func TestReconcileRetriesFailedEnqueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "talk.mp4"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	h.backend.MarkUploaded(r.PublicVideoID, "talk.mp4")

	h.failEnqueue(errors.New("queue unreachable"))
	res, err := h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Failed != 1 || res.Enqueued != 0 {
		t.Fatalf("expected failed enqueue to be counted, got %#v", res)
	}

	h.failEnqueue(nil)
	res, err = h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if res.Checked != 1 || res.Enqueued != 1 {
		t.Fatalf("expected the reservation to be enqueued on the next sweep, got %#v", res)
	}
	calls := h.enqueued()
	if len(calls) != 1 || calls[0].videoID != r.PublicVideoID {
		t.Fatalf("expected one transcode enqueue, got %#v", calls)
	}

	if res, err := h.monitor.Reconcile(ctx); err != nil || res.Checked != 0 {
		t.Fatalf("expected consumed reservation to leave the candidate set, got %#v err=%v", res, err)
	}
	if calls := h.enqueued(); len(calls) != 1 {
		t.Fatalf("expected no further enqueue, got %d", len(calls))
	}
}

func TestReconcileConcurrentSweepsCreateOneVideo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	h.backend.MarkUploaded(r.PublicVideoID, "a.mp4")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.monitor.Reconcile(ctx, r.PublicVideoID); err != nil {
				t.Errorf("Reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := h.enqueued(); len(calls) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(calls))
	}
}

func TestReconcileNotUploadedTouchesReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	res, err := h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Checked != 1 || res.Confirmed != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result %#v", res)
	}
	stored, _ := h.store.GetReservation(ctx, r.PublicVideoID)
	if stored.WasUsed || stored.LastChecked == nil || !stored.LastChecked.Equal(h.now) {
		t.Fatalf("unexpected reservation %#v", stored)
	}
	if video, _ := h.store.GetVideo(ctx, r.PublicVideoID); video != nil {
		t.Fatal("video should not exist yet")
	}
}

func TestReconcileBackendErrorIsCounted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4"}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	h.backend.UploadedErr = errors.New("s3 unavailable")

	res, err := h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected one failure, got %#v", res)
	}
}

func TestReconcileGraceWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	checked := h.now.Add(-time.Minute)
	rows := []*store.Reservation{
		{PublicVideoID: "ingrace", ExpiresAt: h.now.Add(-30 * time.Minute), LastChecked: &checked},
		{PublicVideoID: "orphan", ExpiresAt: h.now.Add(-3 * time.Hour)},
		{PublicVideoID: "stale", ExpiresAt: h.now.Add(-3 * time.Hour), LastChecked: &checked},
	}
	for _, r := range rows {
		if err := h.store.CreateReservation(ctx, r); err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
	}
	res, err := h.monitor.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Checked != 2 {
		t.Fatalf("expected ingrace and orphan to be checked, got %#v", res)
	}
	orphan, _ := h.store.GetReservation(ctx, "orphan")
	if orphan.LastChecked == nil {
		t.Fatal("expected orphan to be checked once")
	}

	res, _ = h.monitor.Reconcile(ctx)
	if res.Checked != 1 {
		t.Fatalf("expected only ingrace on the second sweep, got %#v", res)
	}
}

func TestReconcileLockedSkipsWhenHeld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, _ := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4"})
	h.backend.MarkUploaded(r.PublicVideoID, "a.mp4")

	if ok, _ := h.locker.Acquire(ctx, lock.MonitorUploadsKey, time.Minute); !ok {
		t.Fatal("expected to acquire monitor lock")
	}
	res, err := h.monitor.ReconcileLocked(ctx)
	if err != nil {
		t.Fatalf("ReconcileLocked: %v", err)
	}
	if res.Checked != 0 {
		t.Fatalf("expected skipped sweep, got %#v", res)
	}

	_ = h.locker.Release(ctx, lock.MonitorUploadsKey)
	res, err = h.monitor.ReconcileLocked(ctx)
	if err != nil {
		t.Fatalf("ReconcileLocked: %v", err)
	}
	if res.Confirmed != 1 {
		t.Fatalf("expected confirmed upload, got %#v", res)
	}
	if held, _ := h.locker.Held(ctx, lock.MonitorUploadsKey); held {
		t.Fatal("expected monitor lock to be released")
	}
}

func TestReserveAttachesPlaylist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4", PlaylistID: "missing"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown playlist, got %v", err)
	}
	if _, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: " "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty filename, got %v", err)
	}

	playlist, err := h.store.CreatePlaylist(ctx, "Course", "alice")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	r, err := h.monitor.Reserve(ctx, uploads.ReserveRequest{Filename: "a.mp4", PlaylistID: playlist.PublicID})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	h.backend.MarkUploaded(r.PublicVideoID, "a.mp4")
	if _, err := h.monitor.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	ids, _ := h.store.VideoPlaylistIDs(ctx, r.PublicVideoID)
	if len(ids) != 1 || ids[0] != playlist.PublicID {
		t.Fatalf("expected playlist membership, got %v", ids)
	}
}

func TestPruneExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for id, expires := range map[string]time.Time{
		"old":    h.now.Add(-150 * time.Minute),
		"recent": h.now.Add(-90 * time.Minute),
	} {
		if err := h.store.CreateReservation(ctx, &store.Reservation{PublicVideoID: id, ExpiresAt: expires}); err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
	}
	removed, err := h.monitor.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
}
