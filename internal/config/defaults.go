package config

const (
	defaultConfigPath              = "~/.config/voiceover/config.toml"
	defaultContentDir              = "content"
	defaultStateDir                = "~/.local/share/voiceover"
	defaultAPIBind                 = "127.0.0.1:8000"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultSampleRate              = 44100
	defaultChannels                = 2
	defaultExtractTimeoutSeconds   = 300
	defaultMergeTimeoutSeconds     = 600
	defaultRetryAttempts           = 2
	defaultRetryBackoffSeconds     = 2
	defaultModel                   = "htdemucs"
	defaultCommentaryStem          = "vocals"
	defaultDevice                  = "auto"
	defaultLauncher                = "uv"
	defaultUVBinary                = "uv"
	defaultPythonBinary            = "python3"
	defaultTorchIndexURL           = "https://download.pytorch.org/whl/cu128"
	defaultOverlap                 = 0.25
	defaultLoadTimeoutSeconds      = 900
	defaultInferenceTimeoutSeconds = 1800
	defaultClipExtension           = ".mp4"
	defaultWorkers                 = 1
	defaultStaleWorkHours          = 24
	defaultMinFreeGiB              = 1
	defaultBitDepth                = 16
	defaultMaxUploadMB             = 100
	defaultShutdownTimeoutSeconds  = 10
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

var (
	defaultPackages       = []string{"demucs"}
	defaultAllowedOrigins = []string{"http://localhost:3000"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ContentDir: defaultContentDir,
			StateDir:   defaultStateDir,
			APIBind:    defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:                defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			SampleRate:            defaultSampleRate,
			Channels:              defaultChannels,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			MergeTimeoutSeconds:   defaultMergeTimeoutSeconds,
			RetryAttempts:         defaultRetryAttempts,
			RetryBackoffSeconds:   defaultRetryBackoffSeconds,
		},
		Separation: Separation{
			Model:                   defaultModel,
			CommentaryStem:          defaultCommentaryStem,
			Device:                  defaultDevice,
			Launcher:                defaultLauncher,
			UVBinary:                defaultUVBinary,
			PythonBinary:            defaultPythonBinary,
			Packages:                append([]string(nil), defaultPackages...),
			TorchIndexURL:           defaultTorchIndexURL,
			Split:                   true,
			Overlap:                 defaultOverlap,
			LoadTimeoutSeconds:      defaultLoadTimeoutSeconds,
			InferenceTimeoutSeconds: defaultInferenceTimeoutSeconds,
		},
		Batch: Batch{
			ClipExtension:  defaultClipExtension,
			Workers:        defaultWorkers,
			StaleWorkHours: defaultStaleWorkHours,
			MinFreeGiB:     defaultMinFreeGiB,
		},
		Output: Output{
			BitDepth: defaultBitDepth,
		},
		Server: Server{
			AllowedOrigins:         append([]string(nil), defaultAllowedOrigins...),
			MaxUploadMB:            defaultMaxUploadMB,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			BatchStarted:   true,
			BatchCompleted: true,
			ClipFailed:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
