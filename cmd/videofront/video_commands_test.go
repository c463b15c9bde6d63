package main

import (
	"errors"
	"strings"
	"testing"

	"videofront/internal/api"
	"videofront/internal/services"
	"videofront/internal/testsupport"
)

// uploadedVideo reserves, uploads, and transcodes one video.
func uploadedVideo(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	id := reserve(t, env, "talk.mp4")
	env.backend.MarkUploaded(id, "talk.mp4")
	env.mustRun(t, "upload", "reconcile", id)
	return id
}

func showVideo(t *testing.T, env *cliTestEnv, id string) api.Video {
	t.Helper()
	var video api.Video
	decodeJSON(t, env.mustRun(t, "--json", "video", "show", id), &video)
	return video
}

func TestVideoListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	requireContains(t, env.mustRun(t, "video", "list"), "No videos")

	id := uploadedVideo(t, env)
	out := env.mustRun(t, "video", "list")
	requireContains(t, out, id)
	requireContains(t, out, "success")
	requireContains(t, out, "100%")

	out = env.mustRun(t, "video", "show", id)
	requireContains(t, out, "== Video "+id+" ==")
	requireContains(t, out, "Title:     talk.mp4")
	requireContains(t, out, "https://cdn.test/"+id+"/HD.mp4")

	if _, _, err := env.run(t, "video", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	requireContains(t, env.mustRun(t, "video", "list", "--status", "failed"), "No videos")
}

func TestVideoShowMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := env.run(t, "video", "show", "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVideoRestartRunsSweep(t *testing.T) {
	env := setupCLITestEnv(t)
	id := uploadedVideo(t, env)

	out := env.mustRun(t, "video", "restart", id)
	requireContains(t, out, "marked for restart")
	video := showVideo(t, env, id)
	if video.Processing.Status != "restart-requested" || len(video.Formats) != 0 {
		t.Fatalf("expected restart-requested without formats, got %+v", video)
	}

	env.mustRun(t, "task", "run", "restart_transcodes")
	video = showVideo(t, env, id)
	if video.Processing.Status != "success" || len(video.Formats) != 2 {
		t.Fatalf("expected restarted attempt to succeed, got %+v", video)
	}

	env.mustRun(t, "video", "restart", id, "--now")
	if status := showVideo(t, env, id).Processing.Status; status != "success" {
		t.Fatalf("expected --now to run the sweep, got %s", status)
	}

	if _, _, err := env.run(t, "video", "restart", "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown video, got %v", err)
	}
}

func TestVideoTranscodeFailureKeepsVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	id := uploadedVideo(t, env)

	env.backend.Script("HD", testsupport.Step{Fail: "codec not supported"})
	out := env.mustRun(t, "video", "transcode", id)
	requireContains(t, out, "Video "+id+": failed")
	video := showVideo(t, env, id)
	if video.Processing.Message != "codec not supported" {
		t.Fatalf("expected failure message, got %q", video.Processing.Message)
	}

	env.backend.Script("HD", testsupport.Step{Progress: 100, Finished: true})
	out = env.mustRun(t, "video", "transcode", id, "--queue")
	requireContains(t, out, "Queued transcoding of "+id)
	if status := showVideo(t, env, id).Processing.Status; status != "success" {
		t.Fatalf("expected queued attempt to be drained, got %s", status)
	}

	requireContains(t, env.mustRun(t, "video", "transcode", id, "--wait", "1s"), "Video "+id+": success")
}

func TestVideoRenameAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	id := uploadedVideo(t, env)

	env.mustRun(t, "video", "rename", id, "Keynote")
	if title := showVideo(t, env, id).Title; title != "Keynote" {
		t.Fatalf("expected renamed title, got %q", title)
	}

	requireContains(t, env.mustRun(t, "video", "delete", id), "Deleted video "+id)
	deleted := env.backend.DeletedVideos()
	if len(deleted) != 1 || deleted[0] != id {
		t.Fatalf("expected backend cleanup for %s, got %v", id, deleted)
	}
	_, _, err := env.run(t, "video", "show", id)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected deleted video to be gone, got %v", err)
	}
}
