package local

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"videofront/internal/backend"
	"videofront/internal/logging"
)

// job tracks one ffmpeg rendition running in the background.
type job struct {
	format       string
	output       string
	progressPath string
	duration     time.Duration

	done chan struct{}
	err  error
}

// StartTranscoding implements backend.Backend. It launches one ffmpeg process
// per preset and returns immediately.
func (b *Backend) StartTranscoding(ctx context.Context, videoID string) ([]backend.Job, error) {
	src, err := b.sourcePath(videoID)
	if err != nil {
		return nil, err
	}
	var duration time.Duration
	if info, err := b.probe(ctx, b.ffprobeBinary, src); err != nil {
		b.logger.Debug("source probe failed; progress will jump from 0 to 100",
			logging.String(logging.FieldVideoID, videoID), logging.Error(err))
	} else {
		duration = info.Duration
	}

	type launch struct {
		id   string
		job  *job
		args []string
	}
	launches := make([]launch, 0, len(b.presets))
	for _, preset := range b.presets {
		output, err := b.filePath(videoID, preset.Name+".mp4")
		if err != nil {
			return nil, err
		}
		j := &job{
			format:       preset.Name,
			output:       output,
			progressPath: output + ".progress",
			duration:     duration,
			done:         make(chan struct{}),
		}
		args := []string{
			"-y",
			"-i", src,
			"-c:v", "libx264",
			"-c:a", "aac",
			"-strict", "experimental",
			"-r", preset.Framerate,
			"-s", preset.Size,
			"-vb", preset.VideoBitrate,
			"-ab", preset.AudioBitrate,
			"-ar", preset.AudioRate,
			"-progress", j.progressPath,
			"-nostats",
			output,
		}
		launches = append(launches, launch{id: videoID + "/" + preset.Name, job: j, args: args})
	}

	// Every preset is checked before any process starts.
	b.mu.Lock()
	for _, l := range launches {
		if previous, ok := b.jobs[l.id]; ok {
			select {
			case <-previous.done:
			default:
				b.mu.Unlock()
				return nil, fmt.Errorf("transcoding job %s is already running", l.id)
			}
		}
	}
	for _, l := range launches {
		b.jobs[l.id] = l.job
	}
	b.mu.Unlock()

	jobs := make([]backend.Job, 0, len(launches))
	for _, l := range launches {
		j, args := l.job, l.args
		_ = os.Remove(j.progressPath)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer close(j.done)
			j.err = b.run(b.ctx, b.ffmpegBinary, args...)
			_ = os.Remove(j.progressPath)
			if j.err != nil {
				_ = os.Remove(j.output)
			}
		}()
		jobs = append(jobs, backend.Job{ID: l.id, Format: j.format})
	}
	return jobs, nil
}

// CheckProgress implements backend.Backend.
func (b *Backend) CheckProgress(_ context.Context, handle backend.Job) (float64, bool, error) {
	b.mu.Lock()
	j, ok := b.jobs[handle.ID]
	b.mu.Unlock()
	if !ok {
		return 0, false, backend.Failed(fmt.Sprintf("unknown transcoding job %s", handle.ID))
	}
	select {
	case <-j.done:
		b.mu.Lock()
		delete(b.jobs, handle.ID)
		b.mu.Unlock()
		if j.err != nil {
			return 0, false, backend.Failed(fmt.Sprintf("%s: %v", j.format, j.err))
		}
		return 100, true, nil
	default:
	}
	if j.duration <= 0 {
		return 0, false, nil
	}
	elapsed, err := readProgress(j.progressPath)
	if err != nil {
		return 0, false, nil
	}
	percent := 100 * float64(elapsed) / float64(j.duration)
	// 100 is reserved for a job whose process has exited cleanly.
	if percent > 99 {
		percent = 99
	}
	if percent < 0 {
		percent = 0
	}
	return percent, false, nil
}

// readProgress returns the last out_time reported in an ffmpeg -progress file.
func readProgress(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var (
		latest time.Duration
		found  bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		// out_time_ms is in microseconds despite its name; out_time_us is the
		// same value on newer builds.
		if key != "out_time_us" && key != "out_time_ms" {
			continue
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			continue
		}
		latest = time.Duration(us) * time.Microsecond
		found = true
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.New("no progress reported yet")
	}
	return latest, nil
}
