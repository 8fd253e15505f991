package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	if err := c.normalizeSeparation(); err != nil {
		return err
	}
	c.normalizeBatch()
	c.normalizeServer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ContentDir) == "" {
		c.Paths.ContentDir = defaultContentDir
	}
	if c.Paths.ContentDir, err = expandPath(c.Paths.ContentDir); err != nil {
		return fmt.Errorf("paths.content_dir: %w", err)
	}
	content := map[string]*string{
		"clips":           &c.Paths.ClipsDir,
		"recordings":      &c.Paths.RecordingsDir,
		"processed-audio": &c.Paths.ProcessedAudioDir,
		"merged":          &c.Paths.MergedDir,
		"thumbnails":      &c.Paths.ThumbnailsDir,
	}
	for sub, field := range content {
		if strings.TrimSpace(*field) == "" {
			*field = filepath.Join(c.Paths.ContentDir, sub)
		}
		if *field, err = expandPath(*field); err != nil {
			return fmt.Errorf("paths.%s_dir: %w", strings.ReplaceAll(sub, "-", "_"), err)
		}
	}

	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = filepath.Join(c.Paths.StateDir, "work")
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("VOICEOVER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	if c.FFmpeg.SampleRate == 0 {
		c.FFmpeg.SampleRate = defaultSampleRate
	}
	if c.FFmpeg.Channels == 0 {
		c.FFmpeg.Channels = defaultChannels
	}
	if c.FFmpeg.ExtractTimeoutSeconds <= 0 {
		c.FFmpeg.ExtractTimeoutSeconds = defaultExtractTimeoutSeconds
	}
	if c.FFmpeg.MergeTimeoutSeconds <= 0 {
		c.FFmpeg.MergeTimeoutSeconds = defaultMergeTimeoutSeconds
	}
	if c.FFmpeg.RetryAttempts < 0 {
		c.FFmpeg.RetryAttempts = 0
	}
	if c.FFmpeg.RetryBackoffSeconds < 0 {
		c.FFmpeg.RetryBackoffSeconds = 0
	}
	return nil
}

func (c *Config) normalizeSeparation() error {
	c.Separation.Model = strings.TrimSpace(c.Separation.Model)
	if c.Separation.Model == "" {
		c.Separation.Model = defaultModel
	}
	c.Separation.CommentaryStem = strings.ToLower(strings.TrimSpace(c.Separation.CommentaryStem))
	if c.Separation.CommentaryStem == "" {
		c.Separation.CommentaryStem = defaultCommentaryStem
	}
	c.Separation.Device = strings.ToLower(strings.TrimSpace(c.Separation.Device))
	if c.Separation.Device == "" {
		c.Separation.Device = defaultDevice
	}
	c.Separation.Launcher = strings.ToLower(strings.TrimSpace(c.Separation.Launcher))
	if c.Separation.Launcher == "" {
		c.Separation.Launcher = defaultLauncher
	}
	c.Separation.UVBinary = strings.TrimSpace(c.Separation.UVBinary)
	if c.Separation.UVBinary == "" {
		c.Separation.UVBinary = defaultUVBinary
	}
	c.Separation.PythonBinary = strings.TrimSpace(c.Separation.PythonBinary)
	if c.Separation.PythonBinary == "" {
		c.Separation.PythonBinary = defaultPythonBinary
	}
	packages := c.Separation.Packages[:0]
	for _, pkg := range c.Separation.Packages {
		if trimmed := strings.TrimSpace(pkg); trimmed != "" {
			packages = append(packages, trimmed)
		}
	}
	c.Separation.Packages = packages
	if len(c.Separation.Packages) == 0 {
		c.Separation.Packages = append([]string(nil), defaultPackages...)
	}
	c.Separation.TorchIndexURL = strings.TrimSpace(c.Separation.TorchIndexURL)
	if c.Separation.Shifts < 0 {
		c.Separation.Shifts = 0
	}
	if c.Separation.LoadTimeoutSeconds <= 0 {
		c.Separation.LoadTimeoutSeconds = defaultLoadTimeoutSeconds
	}
	if c.Separation.InferenceTimeoutSeconds <= 0 {
		c.Separation.InferenceTimeoutSeconds = defaultInferenceTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeBatch() {
	ext := strings.ToLower(strings.TrimSpace(c.Batch.ClipExtension))
	if ext == "" {
		ext = defaultClipExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Batch.ClipExtension = ext
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultWorkers
	}
	if c.Batch.StaleWorkHours < 0 {
		c.Batch.StaleWorkHours = 0
	}
	if c.Batch.MinFreeGiB < 0 {
		c.Batch.MinFreeGiB = 0
	}
}

func (c *Config) normalizeServer() {
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
