package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Redis configures the shared key-value store used for locks, the video
// cache, and the redis task queue. An empty address selects in-process
// implementations suitable for a single daemon.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Backend selects the storage and transcoding provider.
type Backend struct {
	Kind string `toml:"kind"` // "local" or "aws"
}

// LocalPreset describes one ffmpeg output rendition.
type LocalPreset struct {
	Name         string  `toml:"name"`
	Size         string  `toml:"size"`
	VideoBitrate string  `toml:"video_bitrate"`
	AudioBitrate string  `toml:"audio_bitrate"`
	Framerate    string  `toml:"framerate"`
	AudioRate    string  `toml:"audio_rate"`
	Bitrate      float64 `toml:"bitrate"`
}

// Local contains configuration for the filesystem + ffmpeg backend.
type Local struct {
	StorageRoot   string        `toml:"storage_root"`
	BaseURL       string        `toml:"base_url"`
	FFmpegBinary  string        `toml:"ffmpeg_binary"`
	FFprobeBinary string        `toml:"ffprobe_binary"`
	ThumbnailSize int           `toml:"thumbnail_size"`
	MinFreeGiB    int           `toml:"min_free_gib"`
	Presets       []LocalPreset `toml:"presets"`
}

// AWSPreset maps a rendition name onto an Elastic Transcoder preset.
type AWSPreset struct {
	Name     string  `toml:"name"`
	PresetID string  `toml:"preset_id"`
	Bitrate  float64 `toml:"bitrate"`
}

// AWS contains configuration for the S3 + Elastic Transcoder backend.
type AWS struct {
	Region           string      `toml:"region"`
	AccessKeyID      string      `toml:"access_key_id"`
	SecretAccessKey  string      `toml:"secret_access_key"`
	Bucket           string      `toml:"bucket"`
	PipelineID       string      `toml:"pipeline_id"`
	CloudFrontDomain string      `toml:"cloudfront_domain"`
	ThumbnailsPreset string      `toml:"thumbnails_preset"`
	Presets          []AWSPreset `toml:"presets"`
}

// Tasks configures the task queue consumed by the daemon workers.
type Tasks struct {
	Queue       string `toml:"queue"` // "memory", "redis", or "sqs"
	RedisKey    string `toml:"redis_key"`
	SQSQueueURL string `toml:"sqs_queue_url"`
	Workers     int    `toml:"workers"`
	MaxAttempts int    `toml:"max_attempts"`
}

// Schedule holds cron specs for the periodic sweeps.
type Schedule struct {
	Reconcile    string `toml:"reconcile"`
	RestartSweep string `toml:"restart_sweep"`
	Prune        string `toml:"prune"`
}

// Transcoding contains coordinator timing.
type Transcoding struct {
	PollInterval int `toml:"poll_interval"` // seconds between progress sweeps
	LockTTL      int `toml:"lock_ttl"`      // seconds
}

// Uploads contains reservation timing.
type Uploads struct {
	ExpireDelay    int `toml:"expire_delay"` // seconds; also the grace window
	MonitorLockTTL int `toml:"monitor_lock_ttl"`
}

// Subtitles contains subtitle upload limits.
type Subtitles struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Cache contains read-model cache settings.
type Cache struct {
	TTL int `toml:"ttl"` // seconds
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for videofront.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and HTTP bind address
//   - Redis: shared store for locks, cache, and queue
//   - Backend/Local/AWS: storage and transcoding provider
//   - Tasks/Schedule: queue driver, worker count, and periodic sweeps
//   - Transcoding/Uploads/Subtitles/Cache: orchestrator tuning
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Redis       Redis       `toml:"redis"`
	Backend     Backend     `toml:"backend"`
	Local       Local       `toml:"local"`
	AWS         AWS         `toml:"aws"`
	Tasks       Tasks       `toml:"tasks"`
	Schedule    Schedule    `toml:"schedule"`
	Transcoding Transcoding `toml:"transcoding"`
	Uploads     Uploads     `toml:"uploads"`
	Subtitles   Subtitles   `toml:"subtitles"`
	Cache       Cache       `toml:"cache"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("videofront.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Backend.Kind == BackendLocal {
		dirs = append(dirs, c.Local.StorageRoot)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "videofront.db")
}

// DaemonLockPath returns the file lock guarding a single daemon instance.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "videofrontd.lock")
}

// PollInterval returns the delay between transcoding progress sweeps.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transcoding.PollInterval) * time.Second
}

// TranscodeLockTTL returns the per-video lock expiry.
func (c *Config) TranscodeLockTTL() time.Duration {
	return time.Duration(c.Transcoding.LockTTL) * time.Second
}

// UploadGrace returns the reservation expiry delay, which doubles as the
// grace window before an expired reservation stops being checked.
func (c *Config) UploadGrace() time.Duration {
	return time.Duration(c.Uploads.ExpireDelay) * time.Second
}

// MonitorLockTTL returns the expiry of the upload sweep lock.
func (c *Config) MonitorLockTTL() time.Duration {
	return time.Duration(c.Uploads.MonitorLockTTL) * time.Second
}

// CacheTTL returns the read-model cache expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
