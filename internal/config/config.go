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

// Paths contains directory and bind address configuration. Content
// subdirectories left empty are derived from ContentDir.
type Paths struct {
	ContentDir        string `toml:"content_dir"`
	ClipsDir          string `toml:"clips_dir"`
	RecordingsDir     string `toml:"recordings_dir"`
	ProcessedAudioDir string `toml:"processed_audio_dir"`
	MergedDir         string `toml:"merged_dir"`
	ThumbnailsDir     string `toml:"thumbnails_dir"`
	StateDir          string `toml:"state_dir"`
	WorkDir           string `toml:"work_dir"`
	LogDir            string `toml:"log_dir"`
	APIBind           string `toml:"api_bind"`
	APIToken          string `toml:"api_token"`
}

// FFmpeg contains configuration for the audio extraction and muxing subprocesses.
type FFmpeg struct {
	Binary                string `toml:"binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	SampleRate            int    `toml:"sample_rate"`
	Channels              int    `toml:"channels"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout_seconds"`
	MergeTimeoutSeconds   int    `toml:"merge_timeout_seconds"`
	RetryAttempts         int    `toml:"retry_attempts"`
	RetryBackoffSeconds   int    `toml:"retry_backoff_seconds"`
}

// Separation contains configuration for the source separation model worker.
type Separation struct {
	// Model is the pretrained Demucs model name.
	Model string `toml:"model"`
	// CommentaryStem names the source treated as commentary and excluded from the residual.
	CommentaryStem string `toml:"commentary_stem"`
	// Device is "auto", "cuda", or "cpu".
	Device string `toml:"device"`
	// Launcher is "uv" (uv run --with demucs) or "python" (PythonBinary with demucs installed).
	Launcher     string `toml:"launcher"`
	UVBinary     string `toml:"uv_binary"`
	PythonBinary string `toml:"python_binary"`
	// Packages are the pip requirements handed to uv.
	Packages                []string `toml:"packages"`
	TorchIndexURL           string   `toml:"torch_index_url"`
	Split                   bool     `toml:"split"`
	Overlap                 float64  `toml:"overlap"`
	Shifts                  int      `toml:"shifts"`
	LoadTimeoutSeconds      int      `toml:"load_timeout_seconds"`
	InferenceTimeoutSeconds int      `toml:"inference_timeout_seconds"`
}

// Batch contains configuration for batch processing.
type Batch struct {
	ClipExtension  string  `toml:"clip_extension"`
	Workers        int     `toml:"workers"`
	StaleWorkHours int     `toml:"stale_work_hours"`
	MinFreeGiB     float64 `toml:"min_free_gib"`
}

// Output contains configuration for the residual WAV files.
type Output struct {
	BitDepth int `toml:"bit_depth"`
}

// Server contains configuration for the HTTP workspace API.
type Server struct {
	AllowedOrigins         []string `toml:"allowed_origins"`
	MaxUploadMB            int      `toml:"max_upload_mb"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchStarted   bool   `toml:"batch_started"`
	BatchCompleted bool   `toml:"batch_completed"`
	ClipFailed     bool   `toml:"clip_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for voiceover.
//
// Configuration sections by subsystem:
//   - Paths: content directories, state, and API bind address
//   - FFmpeg: extraction and mux subprocess settings
//   - Separation: Demucs model and worker settings
//   - Batch: clip discovery and worker pool
//   - Output: residual WAV format
//   - Server: HTTP workspace settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Separation    Separation    `toml:"separation"`
	Batch         Batch         `toml:"batch"`
	Output        Output        `toml:"output"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
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

	projectPath, err := filepath.Abs("voiceover.toml")
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

// EnsureDirectories creates the content, state, and work directories.
// The clips directory is left alone: a missing clips directory is a batch error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.ContentDir,
		c.Paths.RecordingsDir,
		c.Paths.ProcessedAudioDir,
		c.Paths.MergedDir,
		c.Paths.ThumbnailsDir,
		c.Paths.StateDir,
		c.Paths.WorkDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the location of the SQLite run ledger.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// ExtractTimeout bounds a single ffmpeg extraction.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.FFmpeg.ExtractTimeoutSeconds) * time.Second
}

// MergeTimeout bounds a single ffmpeg mux.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.FFmpeg.MergeTimeoutSeconds) * time.Second
}

// RetryBackoff is the base delay between extraction attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.FFmpeg.RetryBackoffSeconds) * time.Second
}

// LoadTimeout bounds model worker startup.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Separation.LoadTimeoutSeconds) * time.Second
}

// InferenceTimeout bounds a single separation call.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Separation.InferenceTimeoutSeconds) * time.Second
}

// StaleWorkAge is the age past which leftover clip work directories are swept.
func (c *Config) StaleWorkAge() time.Duration {
	return time.Duration(c.Batch.StaleWorkHours) * time.Hour
}

// MaxUploadBytes is the recording upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
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
