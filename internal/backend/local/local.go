package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"videofront/internal/backend"
	"videofront/internal/config"
	"videofront/internal/fileutil"
	"videofront/internal/logging"
	"videofront/internal/media/ffprobe"
	"videofront/internal/services"
	"videofront/internal/textutil"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Info, error)

// Backend stores videos below a storage root and transcodes them with ffmpeg.
type Backend struct {
	root          string
	baseURL       string
	ffmpegBinary  string
	ffprobeBinary string
	thumbnailSize int
	presets       []config.LocalPreset
	logger        *slog.Logger

	run   commandRunner
	probe probeFunc

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	jobs   map[string]*job
	wg     sync.WaitGroup
}

// Option customizes a Backend.
type Option func(*Backend)

// WithCommandRunner replaces the ffmpeg executor (used by tests).
func WithCommandRunner(r commandRunner) Option {
	return func(b *Backend) {
		if r != nil {
			b.run = r
		}
	}
}

// WithProbe replaces the ffprobe inspector (used by tests).
func WithProbe(p func(ctx context.Context, binary, path string) (ffprobe.Info, error)) Option {
	return func(b *Backend) {
		if p != nil {
			b.probe = p
		}
	}
}

// New builds a local backend from configuration.
func New(cfg config.Local, logger *slog.Logger, opts ...Option) (*Backend, error) {
	root, err := filepath.Abs(filepath.Join(cfg.StorageRoot, "videos"))
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		root:          root,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		ffmpegBinary:  cfg.FFmpegBinary,
		ffprobeBinary: cfg.FFprobeBinary,
		thumbnailSize: cfg.ThumbnailSize,
		presets:       append([]config.LocalPreset(nil), cfg.Presets...),
		logger:        logging.NewComponentLogger(logger, "backend-local"),
		run:           runCommand,
		probe:         ffprobe.Probe,
		ctx:           ctx,
		cancel:        cancel,
		jobs:          make(map[string]*job),
	}
	if b.thumbnailSize <= 0 {
		b.thumbnailSize = 1024
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close stops running ffmpeg processes and waits for them to exit.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

// Root returns the directory holding every video folder.
func (b *Backend) Root() string {
	return b.root
}

// filePath joins parts below the videos root and refuses anything that
// escapes it.
func (b *Backend) filePath(parts ...string) (string, error) {
	path := filepath.Clean(filepath.Join(append([]string{b.root}, parts...)...))
	if path != b.root && !strings.HasPrefix(path, b.root+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrValidation, "backend-local", "resolve path",
			fmt.Sprintf("path %s is outside of %s", path, b.root), nil)
	}
	return path, nil
}

func (b *Backend) makeFilePath(parts ...string) (string, error) {
	path, err := b.filePath(parts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	return path, nil
}

func (b *Backend) remove(parts ...string) error {
	path, err := b.filePath(parts...)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Upload implements backend.Backend.
func (b *Backend) Upload(_ context.Context, videoID, filename string, r io.Reader) error {
	name := textutil.CleanUploadName(filename)
	if name == "" {
		return services.Wrap(services.ErrValidation, "backend-local", "upload", "filename is required", nil)
	}
	dst, err := b.makeFilePath(videoID, "src", name)
	if err != nil {
		return err
	}
	res, err := fileutil.WriteAtomic(dst, r, 0o644)
	if err != nil {
		return err
	}
	b.logger.Debug("source stored",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("filename", name),
		logging.Int64("bytes", res.Size),
		logging.String("sha256", res.SHA256),
	)
	return nil
}

// CheckUploaded implements backend.Backend.
func (b *Backend) CheckUploaded(_ context.Context, videoID string) error {
	_, err := b.sourcePath(videoID)
	return err
}

func (b *Backend) sourcePath(videoID string) (string, error) {
	dir, err := b.filePath(videoID, "src")
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", backend.ErrNotUploaded
	}
	if err != nil {
		return "", fmt.Errorf("read source dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && !fileutil.IsPartial(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", backend.ErrNotUploaded
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// AvailableFormats implements backend.Backend.
func (b *Backend) AvailableFormats(_ context.Context, videoID string) ([]backend.Format, error) {
	var formats []backend.Format
	for _, preset := range b.presets {
		path, err := b.filePath(videoID, preset.Name+".mp4")
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			continue
		}
		formats = append(formats, backend.Format{Name: preset.Name, Bitrate: preset.Bitrate})
	}
	return formats, nil
}

// DeleteVideo implements backend.Backend.
func (b *Backend) DeleteVideo(_ context.Context, videoID string) error {
	if strings.TrimSpace(videoID) == "" {
		return services.Wrap(services.ErrValidation, "backend-local", "delete video", "video id is required", nil)
	}
	return b.remove(videoID)
}

// UploadSubtitle implements backend.Backend.
func (b *Backend) UploadSubtitle(_ context.Context, videoID, subtitleID, language string, content []byte) error {
	dst, err := b.makeFilePath(videoID, "subs", subtitleFilename(subtitleID, language))
	if err != nil {
		return err
	}
	_, err = fileutil.WriteAtomic(dst, bytes.NewReader(content), 0o644)
	return err
}

// DeleteSubtitle implements backend.Backend.
func (b *Backend) DeleteSubtitle(_ context.Context, videoID, subtitleID string) error {
	pattern, err := b.filePath(videoID, "subs", subtitleID+".*.vtt")
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob subtitles: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove subtitle: %w", err)
		}
	}
	return nil
}

// DeleteThumbnail implements backend.Backend.
func (b *Backend) DeleteThumbnail(_ context.Context, videoID, thumbnailID string) error {
	return b.remove(videoID, "thumbs", thumbnailID+".jpg")
}

// StreamingURL implements backend.Backend.
func (b *Backend) StreamingURL(videoID, format string) string {
	return b.baseURL + "/videos/" + videoID + "/" + format + ".mp4"
}

// SubtitleURL implements backend.Backend.
func (b *Backend) SubtitleURL(videoID, subtitleID, language string) string {
	return b.baseURL + "/videos/" + videoID + "/subs/" + subtitleFilename(subtitleID, language)
}

// ThumbnailURL implements backend.Backend.
func (b *Backend) ThumbnailURL(videoID, thumbnailID string) string {
	if thumbnailID == "" {
		return ""
	}
	return b.baseURL + "/videos/" + videoID + "/thumbs/" + thumbnailID + ".jpg"
}

func subtitleFilename(subtitleID, language string) string {
	return subtitleID + "." + language + ".vtt"
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, lastLine(string(output)))
	}
	return nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ backend.Backend = (*Backend)(nil)
