package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRedis()
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if c.Backend.Kind == "" {
		c.Backend.Kind = defaultBackendKind
	}
	if err := c.normalizeLocal(); err != nil {
		return err
	}
	c.normalizeAWS()
	c.normalizeTasks()
	c.normalizeSchedule()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Addr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Redis.Addr = strings.TrimSpace(value)
		}
	}
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Redis.Password = value
		}
	}
}

func (c *Config) normalizeLocal() error {
	var err error
	if strings.TrimSpace(c.Local.StorageRoot) == "" {
		c.Local.StorageRoot = defaultStorageRoot
	}
	if c.Local.StorageRoot, err = expandPath(c.Local.StorageRoot); err != nil {
		return fmt.Errorf("local.storage_root: %w", err)
	}
	c.Local.BaseURL = strings.TrimRight(strings.TrimSpace(c.Local.BaseURL), "/")
	if c.Local.BaseURL == "" {
		c.Local.BaseURL = defaultLocalBaseURL
	}
	if strings.TrimSpace(c.Local.FFmpegBinary) == "" {
		c.Local.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Local.FFprobeBinary) == "" {
		c.Local.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Local.ThumbnailSize <= 0 {
		c.Local.ThumbnailSize = defaultThumbnailSize
	}
	if len(c.Local.Presets) == 0 {
		c.Local.Presets = defaultLocalPresets()
	}
	for i := range c.Local.Presets {
		preset := &c.Local.Presets[i]
		preset.Name = strings.TrimSpace(preset.Name)
		if strings.TrimSpace(preset.Framerate) == "" {
			preset.Framerate = defaultLocalFramerate
		}
		if strings.TrimSpace(preset.AudioRate) == "" {
			preset.AudioRate = defaultLocalAudioRate
		}
	}
	return nil
}

func (c *Config) normalizeAWS() {
	lookup := func(current *string, keys ...string) {
		*current = strings.TrimSpace(*current)
		if *current != "" {
			return
		}
		for _, key := range keys {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				*current = strings.TrimSpace(value)
				return
			}
		}
	}
	lookup(&c.AWS.Region, "AWS_REGION")
	lookup(&c.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	lookup(&c.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	lookup(&c.AWS.Bucket, "S3_BUCKET_NAME", "S3_BUCKET")
	lookup(&c.AWS.PipelineID, "ELASTIC_TRANSCODER_PIPELINE_ID")
	lookup(&c.AWS.CloudFrontDomain, "CLOUDFRONT_DOMAIN_NAME")
	if c.AWS.Region == "" {
		c.AWS.Region = defaultAWSRegion
	}
	if strings.TrimSpace(c.AWS.ThumbnailsPreset) == "" {
		c.AWS.ThumbnailsPreset = defaultThumbnailsPreset
	}
	if len(c.AWS.Presets) == 0 {
		c.AWS.Presets = defaultAWSPresets()
	}
}

func (c *Config) normalizeTasks() {
	c.Tasks.Queue = strings.ToLower(strings.TrimSpace(c.Tasks.Queue))
	if c.Tasks.Queue == "" {
		c.Tasks.Queue = defaultTaskQueue
	}
	if strings.TrimSpace(c.Tasks.RedisKey) == "" {
		c.Tasks.RedisKey = defaultTaskRedisKey
	}
	c.Tasks.SQSQueueURL = strings.TrimSpace(c.Tasks.SQSQueueURL)
	if c.Tasks.SQSQueueURL == "" {
		if value, ok := os.LookupEnv("SQS_QUEUE_URL"); ok {
			c.Tasks.SQSQueueURL = strings.TrimSpace(value)
		}
	}
	if c.Tasks.MaxAttempts <= 0 {
		c.Tasks.MaxAttempts = defaultTaskMaxAttempts
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.Reconcile = strings.TrimSpace(c.Schedule.Reconcile)
	c.Schedule.RestartSweep = strings.TrimSpace(c.Schedule.RestartSweep)
	c.Schedule.Prune = strings.TrimSpace(c.Schedule.Prune)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
