package testsupport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"videofront/internal/backend"
)

// Step is one scripted CheckProgress answer.
type Step struct {
	Progress float64
	Finished bool
	// Fail makes the job fail with this message.
	Fail string
	// Err is returned as an unexpected (non job-failure) error.
	Err error
}

// FakeBackend is an in-memory backend.Backend whose transcoding jobs replay
// scripted progress steps. The last step of a script repeats forever.
type FakeBackend struct {
	mu sync.Mutex

	Uploaded  map[string]string
	Subtitles map[string][]byte
	Thumbs    map[string]bool
	Deleted   []string
	Formats   []backend.Format

	// Scripts maps format name to the steps its job replays.
	Scripts map[string][]Step
	cursor  map[string]int

	StartErr     error
	ThumbnailErr error
	UploadedErr  error

	// OnCheck runs before every CheckProgress, e.g. to delete the video mid-attempt.
	OnCheck func(job backend.Job)

	Starts int
}

// NewFakeBackend returns a backend whose jobs finish immediately for each of
// the given formats.
func NewFakeBackend(formats ...string) *FakeBackend {
	f := &FakeBackend{
		Uploaded:  map[string]string{},
		Subtitles: map[string][]byte{},
		Thumbs:    map[string]bool{},
		Scripts:   map[string][]Step{},
		cursor:    map[string]int{},
	}
	for i, name := range formats {
		f.Formats = append(f.Formats, backend.Format{Name: name, Bitrate: float64(1000 * (i + 1))})
		f.Scripts[name] = []Step{{Progress: 100, Finished: true}}
	}
	return f
}

// Script replaces the step list of a format.
func (f *FakeBackend) Script(format string, steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts[format] = steps
}

// MarkUploaded pretends a source file exists for videoID.
func (f *FakeBackend) MarkUploaded(videoID, filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uploaded[videoID] = filename
}

func (f *FakeBackend) Upload(_ context.Context, videoID, filename string, r io.Reader) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.MarkUploaded(videoID, filename)
	return nil
}

func (f *FakeBackend) CheckUploaded(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadedErr != nil {
		return f.UploadedErr
	}
	if _, ok := f.Uploaded[videoID]; !ok {
		return backend.ErrNotUploaded
	}
	return nil
}

func (f *FakeBackend) StartTranscoding(_ context.Context, videoID string) ([]backend.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Starts++
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	names := make([]string, 0, len(f.Scripts))
	for name := range f.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	jobs := make([]backend.Job, 0, len(names))
	for _, name := range names {
		id := fmt.Sprintf("%s/%s/%d", videoID, name, f.Starts)
		f.cursor[id] = 0
		jobs = append(jobs, backend.Job{ID: id, Format: name})
	}
	return jobs, nil
}

func (f *FakeBackend) CheckProgress(_ context.Context, job backend.Job) (float64, bool, error) {
	if f.OnCheck != nil {
		f.OnCheck(job)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.Scripts[job.Format]
	if len(steps) == 0 {
		return 0, false, errors.New("no script for " + job.Format)
	}
	i := f.cursor[job.ID]
	if i >= len(steps) {
		i = len(steps) - 1
	}
	f.cursor[job.ID] = i + 1
	step := steps[i]
	switch {
	case step.Err != nil:
		return 0, false, step.Err
	case step.Fail != "":
		return 0, false, backend.Failed(step.Fail)
	default:
		return step.Progress, step.Finished, nil
	}
}

func (f *FakeBackend) AvailableFormats(context.Context, string) ([]backend.Format, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Format(nil), f.Formats...), nil
}

func (f *FakeBackend) CreateThumbnail(_ context.Context, videoID, thumbnailID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ThumbnailErr != nil {
		return f.ThumbnailErr
	}
	f.Thumbs[videoID+"/"+thumbnailID] = true
	return nil
}

func (f *FakeBackend) DeleteVideo(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, videoID)
	delete(f.Uploaded, videoID)
	return nil
}

func (f *FakeBackend) DeleteThumbnail(_ context.Context, videoID, thumbnailID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Thumbs, videoID+"/"+thumbnailID)
	return nil
}

func (f *FakeBackend) UploadSubtitle(_ context.Context, videoID, subtitleID, language string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subtitles[videoID+"/"+subtitleID+"."+language] = append([]byte(nil), content...)
	return nil
}

func (f *FakeBackend) DeleteSubtitle(_ context.Context, videoID, subtitleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := videoID + "/" + subtitleID + "."
	for key := range f.Subtitles {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(f.Subtitles, key)
		}
	}
	return nil
}

func (f *FakeBackend) StreamingURL(videoID, format string) string {
	return "https://cdn.test/" + videoID + "/" + format + ".mp4"
}

func (f *FakeBackend) SubtitleURL(videoID, subtitleID, language string) string {
	return "https://cdn.test/" + videoID + "/subs/" + subtitleID + "." + language + ".vtt"
}

func (f *FakeBackend) ThumbnailURL(videoID, thumbnailID string) string {
	if thumbnailID == "" {
		return ""
	}
	return "https://cdn.test/" + videoID + "/thumbs/" + thumbnailID + ".jpg"
}

// DeletedVideos returns a copy of the ids passed to DeleteVideo.
func (f *FakeBackend) DeletedVideos() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Deleted...)
}

var _ backend.Backend = (*FakeBackend)(nil)
