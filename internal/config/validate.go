package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ClipsDir == c.Paths.ProcessedAudioDir {
		return errors.New("paths.processed_audio_dir must differ from paths.clips_dir")
	}
	if c.Paths.WorkDir == c.Paths.ProcessedAudioDir {
		return errors.New("paths.work_dir must differ from paths.processed_audio_dir")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.SampleRate <= 0 {
		return errors.New("ffmpeg.sample_rate must be positive")
	}
	if c.FFmpeg.Channels <= 0 {
		return errors.New("ffmpeg.channels must be positive")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("separation.device must be auto, cuda, or cpu (got %q)", c.Separation.Device)
	}
	switch c.Separation.Launcher {
	case "uv", "python":
	default:
		return fmt.Errorf("separation.launcher must be uv or python (got %q)", c.Separation.Launcher)
	}
	if c.Separation.Overlap < 0 || c.Separation.Overlap >= 1 {
		return errors.New("separation.overlap must be in [0, 1)")
	}
	if c.Separation.TorchIndexURL != "" {
		if _, err := url.ParseRequestURI(c.Separation.TorchIndexURL); err != nil {
			return fmt.Errorf("separation.torch_index_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be >= 1")
	}
	if strings.ContainsAny(c.Batch.ClipExtension, `/\`) {
		return errors.New("batch.clip_extension must be a file suffix")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.BitDepth {
	case 16, 24:
		return nil
	default:
		return fmt.Errorf("output.bit_depth must be 16 or 24 (got %d)", c.Output.BitDepth)
	}
}

func (c *Config) validateServer() error {
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("server.allowed_origins: invalid origin %q", origin)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
}
