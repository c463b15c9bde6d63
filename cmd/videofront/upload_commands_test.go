package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videofront/internal/api"
	"videofront/internal/services"
)

func reserve(t *testing.T, env *cliTestEnv, filename string) string {
	t.Helper()
	var view reservationView
	decodeJSON(t, env.mustRun(t, "--json", "upload", "reserve", filename, "--owner", "alice"), &view)
	if len(view.VideoID) != 12 {
		t.Fatalf("expected 12-char video id, got %q", view.VideoID)
	}
	if view.Filename != filename || view.Owner != "alice" || view.Used || !view.Available {
		t.Fatalf("unexpected reservation %+v", view)
	}
	return view.VideoID
}

func TestUploadReserveReconcileTranscodes(t *testing.T) {
	env := setupCLITestEnv(t)
	id := reserve(t, env, "holiday.mp4")

	out := env.mustRun(t, "upload", "reconcile")
	requireContains(t, out, "0 confirmed")

	env.backend.MarkUploaded(id, "holiday.mp4")
	out, stderr, err := env.run(t, "upload", "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "1 confirmed, 1 enqueued, 0 failed")
	requireContains(t, stderr, "Ran 1 queued task(s)")

	var video api.Video
	decodeJSON(t, env.mustRun(t, "--json", "video", "show", id), &video)
	if video.Title != "holiday.mp4" || video.Owner != "alice" {
		t.Fatalf("unexpected video %+v", video)
	}
	if video.Processing.Status != "success" || video.Processing.Progress != 100 {
		t.Fatalf("expected finished attempt, got %+v", video.Processing)
	}
	if len(video.Formats) != 2 {
		t.Fatalf("expected two formats, got %+v", video.Formats)
	}

	var list []reservationView
	decodeJSON(t, env.mustRun(t, "--json", "upload", "list"), &list)
	if len(list) != 1 || !list[0].Used || list[0].Available || list[0].LastChecked == "" {
		t.Fatalf("expected one consumed reservation, got %+v", list)
	}
}

func TestUploadSendStoresAndReconciles(t *testing.T) {
	env := setupCLITestEnv(t)
	id := reserve(t, env, "clip.mov")

	source := filepath.Join(t.TempDir(), "clip.mov")
	if err := os.WriteFile(source, []byte("not really a movie"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	out := env.mustRun(t, "upload", "send", id, source)
	requireContains(t, out, "Uploaded clip.mov for video "+id)
	requireContains(t, out, "1 confirmed")

	out = env.mustRun(t, "video", "list", "--status", "success")
	requireContains(t, out, id)

	_, _, err := env.run(t, "upload", "send", "unreserved00", source)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unreserved video, got %v", err)
	}
}

func TestUploadListAndPruneEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	requireContains(t, env.mustRun(t, "upload", "list"), "No reservations")
	requireContains(t, env.mustRun(t, "upload", "prune"), "Pruned 0 reservation(s)")
}

func TestUploadReserveValidation(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "upload", "reserve", "   "); err == nil {
		t.Fatal("expected blank filename to fail")
	}
	_, _, err := env.run(t, "upload", "reserve", "a.mp4", "--playlist", "missing")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected unknown playlist error, got %v", err)
	}
}
