package config

const (
	BackendLocal = "local"
	BackendAWS   = "aws"

	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueSQS    = "sqs"
)

const (
	defaultConfigPath          = "~/.config/videofront/config.toml"
	defaultStateDir            = "~/.local/share/videofront"
	defaultLogDir              = "~/.local/share/videofront/logs"
	defaultStorageRoot         = "~/.local/share/videofront/storage"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultLocalBaseURL        = "http://127.0.0.1:7490/storage"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultThumbnailSize       = 1024
	defaultMinFreeGiB          = 5
	defaultAWSRegion           = "us-east-1"
	defaultThumbnailsPreset    = "1351620000001-000001"
	defaultTaskQueue           = QueueMemory
	defaultTaskRedisKey        = "videofront:tasks"
	defaultTaskWorkers         = 2
	defaultTaskMaxAttempts     = 3
	defaultReconcileSchedule   = "@every 30s"
	defaultRestartSchedule     = "@every 5s"
	defaultPruneSchedule       = "@hourly"
	defaultPollInterval        = 10
	defaultTranscodeLockTTL    = 3600
	defaultUploadExpireDelay   = 3600
	defaultMonitorLockTTL      = 3600
	defaultSubtitlesMaxBytes   = 5 * 1024 * 1024
	defaultCacheTTL            = 3600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultBackendKind         = BackendLocal
	defaultLocalFramerate      = "30"
	defaultLocalAudioRate      = "48000"
)

func defaultLocalPresets() []LocalPreset {
	return []LocalPreset{
		{Name: "LD", Size: "640x360", VideoBitrate: "900k", AudioBitrate: "96k", Bitrate: 900},
		{Name: "SD", Size: "1280x720", VideoBitrate: "2400k", AudioBitrate: "128k", Bitrate: 2400},
		{Name: "HD", Size: "1920x1080", VideoBitrate: "5400k", AudioBitrate: "192k", Bitrate: 5400},
	}
}

func defaultAWSPresets() []AWSPreset {
	return []AWSPreset{
		{Name: "LD", PresetID: "1351620000001-000030", Bitrate: 900},
		{Name: "SD", PresetID: "1351620000001-000010", Bitrate: 2400},
		{Name: "HD", PresetID: "1351620000001-000001", Bitrate: 5400},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Backend: Backend{Kind: defaultBackendKind},
		Local: Local{
			StorageRoot:   defaultStorageRoot,
			BaseURL:       defaultLocalBaseURL,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ThumbnailSize: defaultThumbnailSize,
			MinFreeGiB:    defaultMinFreeGiB,
			Presets:       defaultLocalPresets(),
		},
		AWS: AWS{
			Region:           defaultAWSRegion,
			ThumbnailsPreset: defaultThumbnailsPreset,
			Presets:          defaultAWSPresets(),
		},
		Tasks: Tasks{
			Queue:       defaultTaskQueue,
			RedisKey:    defaultTaskRedisKey,
			Workers:     defaultTaskWorkers,
			MaxAttempts: defaultTaskMaxAttempts,
		},
		Schedule: Schedule{
			Reconcile:    defaultReconcileSchedule,
			RestartSweep: defaultRestartSchedule,
			Prune:        defaultPruneSchedule,
		},
		Transcoding: Transcoding{
			PollInterval: defaultPollInterval,
			LockTTL:      defaultTranscodeLockTTL,
		},
		Uploads: Uploads{
			ExpireDelay:    defaultUploadExpireDelay,
			MonitorLockTTL: defaultMonitorLockTTL,
		},
		Subtitles: Subtitles{MaxBytes: defaultSubtitlesMaxBytes},
		Cache:     Cache{TTL: defaultCacheTTL},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
