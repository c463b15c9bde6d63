package local

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"videofront/internal/backend"
	"videofront/internal/config"
	"videofront/internal/media/ffprobe"
)

func newTestBackend(t *testing.T, run commandRunner) *Backend {
	t.Helper()
	cfg := config.Default().Local
	cfg.StorageRoot = t.TempDir()
	cfg.BaseURL = "http://example.test/storage"
	for i := range cfg.Presets {
		cfg.Presets[i].Framerate = "30"
		cfg.Presets[i].AudioRate = "48000"
	}
	b, err := New(cfg, nil,
		WithCommandRunner(run),
		WithProbe(func(context.Context, string, string) (ffprobe.Info, error) {
			return ffprobe.Info{Duration: 10 * time.Second, HasVideo: true}, nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writeOutputRunner(_ context.Context, _ string, args ...string) error {
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func TestFilePathRejectsEscapes(t *testing.T) {
	b := newTestBackend(t, writeOutputRunner)
	if _, err := b.filePath("abc", "src", "movie.mp4"); err != nil {
		t.Fatalf("expected path inside root: %v", err)
	}
	if _, err := b.filePath("..", "etc", "passwd"); err == nil {
		t.Fatal("expected error for path outside storage root")
	}
}

func TestCheckUploadedAfterUpload(t *testing.T) {
	b := newTestBackend(t, writeOutputRunner)
	ctx := context.Background()
	if err := b.CheckUploaded(ctx, "vid"); !errors.Is(err, backend.ErrNotUploaded) {
		t.Fatalf("expected ErrNotUploaded, got %v", err)
	}
	if err := b.Upload(ctx, "vid", "../sneaky/movie.mp4", strings.NewReader("data")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := b.CheckUploaded(ctx, "vid"); err != nil {
		t.Fatalf("CheckUploaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.Root(), "vid", "src", "movie.mp4")); err != nil {
		t.Fatalf("expected source stored under src/: %v", err)
	}
}

func TestTranscodeRunsPresetCommand(t *testing.T) {
	var (
		mu   sync.Mutex
		seen [][]string
	)
	run := func(ctx context.Context, name string, args ...string) error {
		mu.Lock()
		seen = append(seen, append([]string{name}, args...))
		mu.Unlock()
		return writeOutputRunner(ctx, name, args...)
	}
	b := newTestBackend(t, run)
	ctx := context.Background()
	if err := b.Upload(ctx, "vid", "in.mov", strings.NewReader("data")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	jobs, err := b.StartTranscoding(ctx, "vid")
	if err != nil {
		t.Fatalf("StartTranscoding: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		deadline := time.Now().Add(2 * time.Second)
		for {
			progress, finished, err := b.CheckProgress(ctx, j)
			if err != nil {
				t.Fatalf("CheckProgress(%s): %v", j.ID, err)
			}
			if finished {
				if progress != 100 {
					t.Fatalf("finished job must report 100, got %v", progress)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s never finished", j.ID)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	_ = b.Close()
	if len(seen) != 3 {
		t.Fatalf("expected 3 ffmpeg invocations, got %d", len(seen))
	}
	for _, cmd := range seen {
		if argAfter(cmd, "-c:v") != "libx264" || argAfter(cmd, "-c:a") != "aac" || argAfter(cmd, "-strict") != "experimental" {
			t.Fatalf("unexpected codec args: %v", cmd)
		}
		if argAfter(cmd, "-s") == "640x360" && argAfter(cmd, "-vb") != "900k" {
			t.Fatalf("LD preset should use 900k video bitrate: %v", cmd)
		}
	}

	formats, err := b.AvailableFormats(ctx, "vid")
	if err != nil {
		t.Fatalf("AvailableFormats: %v", err)
	}
	if len(formats) != 3 || formats[0].Name != "LD" || formats[0].Bitrate != 900 {
		t.Fatalf("unexpected formats %#v", formats)
	}
}

func TestStartTranscodingRefusesWhileAnyPresetRuns(t *testing.T) {
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	run := func(ctx context.Context, name string, args ...string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		if argAfter(args, "-s") == "1920x1080" {
			<-release
		}
		return writeOutputRunner(ctx, name, args...)
	}
	b := newTestBackend(t, run)
	ctx := context.Background()
	_ = b.Upload(ctx, "vid", "in.mov", strings.NewReader("data"))
	jobs, err := b.StartTranscoding(ctx, "vid")
	if err != nil {
		t.Fatalf("StartTranscoding: %v", err)
	}
	for _, j := range jobs[:2] {
		deadline := time.Now().Add(2 * time.Second)
		for {
			if _, finished, err := b.CheckProgress(ctx, j); err != nil || finished {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s never finished", j.ID)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	if _, err := b.StartTranscoding(ctx, "vid"); err == nil || !strings.Contains(err.Error(), "vid/HD") {
		t.Fatalf("expected the running HD job to block a restart, got %v", err)
	}
	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 3 {
		t.Fatalf("expected no new ffmpeg processes, got %d invocations", got)
	}
	close(release)
}

func TestCheckProgressReadsFFmpegReport(t *testing.T) {
	release := make(chan struct{})
	run := func(ctx context.Context, name string, args ...string) error {
		report := "frame=10\nout_time_us=5000000\nprogress=continue\n"
		if err := os.WriteFile(argAfter(args, "-progress"), []byte(report), 0o644); err != nil {
			return err
		}
		<-release
		return errors.New("exit status 1")
	}
	b := newTestBackend(t, run)
	b.presets = b.presets[:1]
	ctx := context.Background()
	_ = b.Upload(ctx, "vid", "in.mov", strings.NewReader("data"))
	jobs, err := b.StartTranscoding(ctx, "vid")
	if err != nil {
		t.Fatalf("StartTranscoding: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		progress, finished, err := b.CheckProgress(ctx, jobs[0])
		if err != nil || finished {
			t.Fatalf("unexpected state finished=%v err=%v", finished, err)
		}
		if progress == 50 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress never reached 50, last %v", progress)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	deadline = time.Now().Add(2 * time.Second)
	for {
		_, _, err := b.CheckProgress(ctx, jobs[0])
		if msg, ok := backend.IsTranscodingFailed(err); ok {
			if !strings.Contains(msg, "exit status 1") {
				t.Fatalf("unexpected failure message %q", msg)
			}
			break
		}
		if err != nil {
			t.Fatalf("expected TranscodingFailedError, got %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("job never failed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateThumbnailFitsSize(t *testing.T) {
	run := func(_ context.Context, _ string, args ...string) error {
		img := imaging.New(3000, 1500, color.NRGBA{R: 200, A: 255})
		return imaging.Save(img, args[len(args)-1])
	}
	b := newTestBackend(t, run)
	ctx := context.Background()
	_ = b.Upload(ctx, "vid", "in.mov", strings.NewReader("data"))
	if err := b.CreateThumbnail(ctx, "vid", "thumb1"); err != nil {
		t.Fatalf("CreateThumbnail: %v", err)
	}
	img, err := imaging.Open(filepath.Join(b.Root(), "vid", "thumbs", "thumb1.jpg"))
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 1024 || img.Bounds().Dy() != 512 {
		t.Fatalf("unexpected thumbnail size %v", img.Bounds())
	}
	if err := b.DeleteThumbnail(ctx, "vid", "thumb1"); err != nil {
		t.Fatalf("DeleteThumbnail: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.Root(), "vid", "thumbs", "thumb1.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected thumbnail removed, got %v", err)
	}
}

func TestSubtitlesAndURLs(t *testing.T) {
	b := newTestBackend(t, writeOutputRunner)
	ctx := context.Background()
	if err := b.UploadSubtitle(ctx, "vid", "sub1", "fr", []byte("WEBVTT\n")); err != nil {
		t.Fatalf("UploadSubtitle: %v", err)
	}
	path := filepath.Join(b.Root(), "vid", "subs", "sub1.fr.vtt")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected subtitle file: %v", err)
	}
	if err := b.DeleteSubtitle(ctx, "vid", "sub1"); err != nil {
		t.Fatalf("DeleteSubtitle: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected subtitle removed, got %v", err)
	}

	if got := b.StreamingURL("vid", "HD"); got != "http://example.test/storage/videos/vid/HD.mp4" {
		t.Fatalf("StreamingURL = %q", got)
	}
	if got := b.SubtitleURL("vid", "sub1", "fr"); got != "http://example.test/storage/videos/vid/subs/sub1.fr.vtt" {
		t.Fatalf("SubtitleURL = %q", got)
	}
	if got := b.ThumbnailURL("vid", ""); got != "" {
		t.Fatalf("ThumbnailURL without id = %q", got)
	}
}

func TestDeleteVideoRemovesFolder(t *testing.T) {
	b := newTestBackend(t, writeOutputRunner)
	ctx := context.Background()
	_ = b.Upload(ctx, "vid", "in.mov", strings.NewReader("data"))
	if err := b.DeleteVideo(ctx, "vid"); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.Root(), "vid")); !os.IsNotExist(err) {
		t.Fatalf("expected video folder removed, got %v", err)
	}
	if err := b.DeleteVideo(ctx, "vid"); err != nil {
		t.Fatalf("deleting twice should succeed: %v", err)
	}
}

func TestReadProgressPicksLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p")
	_ = os.WriteFile(path, []byte("out_time_ms=1000000\nprogress=continue\nout_time_us=2500000\n"), 0o644)
	got, err := readProgress(path)
	if err != nil {
		t.Fatalf("readProgress: %v", err)
	}
	if got != 2500*time.Millisecond {
		t.Fatalf("readProgress = %v", got)
	}
}
