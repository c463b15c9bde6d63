package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Kind {
	case BackendLocal:
		if strings.TrimSpace(c.Local.StorageRoot) == "" {
			return errors.New("local.storage_root must be set when backend.kind is local")
		}
		return validateLocalPresets(c.Local.Presets)
	case BackendAWS:
		if c.AWS.Bucket == "" {
			return errors.New("aws.bucket is required when backend.kind is aws (or set S3_BUCKET_NAME)")
		}
		if c.AWS.PipelineID == "" {
			return errors.New("aws.pipeline_id is required when backend.kind is aws (or set ELASTIC_TRANSCODER_PIPELINE_ID)")
		}
		seen := map[string]struct{}{}
		for _, preset := range c.AWS.Presets {
			if strings.TrimSpace(preset.Name) == "" || strings.TrimSpace(preset.PresetID) == "" {
				return errors.New("aws.presets entries need name and preset_id")
			}
			if _, dup := seen[preset.Name]; dup {
				return fmt.Errorf("aws.presets: duplicate name %q", preset.Name)
			}
			seen[preset.Name] = struct{}{}
			if preset.Bitrate < 0 {
				return fmt.Errorf("aws.presets %q: bitrate must be >= 0", preset.Name)
			}
		}
		return nil
	default:
		return fmt.Errorf("backend.kind: unsupported value %q (want local or aws)", c.Backend.Kind)
	}
}

func validateLocalPresets(presets []LocalPreset) error {
	seen := map[string]struct{}{}
	for _, preset := range presets {
		if preset.Name == "" || strings.TrimSpace(preset.Size) == "" {
			return errors.New("local.presets entries need name and size")
		}
		if _, dup := seen[preset.Name]; dup {
			return fmt.Errorf("local.presets: duplicate name %q", preset.Name)
		}
		seen[preset.Name] = struct{}{}
		if preset.VideoBitrate == "" || preset.AudioBitrate == "" {
			return fmt.Errorf("local.presets %q: video_bitrate and audio_bitrate are required", preset.Name)
		}
		if preset.Bitrate < 0 {
			return fmt.Errorf("local.presets %q: bitrate must be >= 0", preset.Name)
		}
	}
	return nil
}

func (c *Config) validateTasks() error {
	switch c.Tasks.Queue {
	case QueueMemory:
	case QueueRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr must be set when tasks.queue is redis")
		}
	case QueueSQS:
		if c.Tasks.SQSQueueURL == "" {
			return errors.New("tasks.sqs_queue_url must be set when tasks.queue is sqs (or set SQS_QUEUE_URL)")
		}
	default:
		return fmt.Errorf("tasks.queue: unsupported value %q (want memory, redis, or sqs)", c.Tasks.Queue)
	}
	if c.Tasks.Workers <= 0 {
		return errors.New("tasks.workers must be positive")
	}
	return nil
}

func (c *Config) validateTiming() error {
	return ensurePositiveMap(map[string]int{
		"transcoding.poll_interval": c.Transcoding.PollInterval,
		"transcoding.lock_ttl":      c.Transcoding.LockTTL,
		"uploads.expire_delay":      c.Uploads.ExpireDelay,
		"uploads.monitor_lock_ttl":  c.Uploads.MonitorLockTTL,
		"cache.ttl":                 c.Cache.TTL,
		"subtitles.max_bytes":       int(c.Subtitles.MaxBytes),
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
