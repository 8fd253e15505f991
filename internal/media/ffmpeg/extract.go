package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voiceover/internal/logging"
	"voiceover/internal/media/ffprobe"
	"voiceover/internal/services"
)

// Extractor pulls the audio track out of a clip as 16-bit PCM WAV.
type Extractor struct {
	binary     string
	sampleRate int
	channels   int
	timeout    time.Duration
	run        CommandRunner
	prober     *ffprobe.Prober
	logger     *slog.Logger
}

// ExtractorOption customizes an Extractor.
type ExtractorOption func(*Extractor)

// WithRunner overrides the command runner; used by tests.
func WithRunner(r CommandRunner) ExtractorOption {
	return func(e *Extractor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithProber enables an ffprobe pre-check that reports clips without an
// audio stream as validation failures instead of opaque ffmpeg errors.
func WithProber(p *ffprobe.Prober) ExtractorOption {
	return func(e *Extractor) { e.prober = p }
}

// WithTimeout bounds each ffmpeg invocation.
func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) { e.timeout = d }
}

// WithLogger sets the extractor logger.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = logging.NewComponentLogger(logger, "extractor") }
}

// NewExtractor builds an extractor producing sampleRate Hz, channels-channel audio.
func NewExtractor(binary string, sampleRate, channels int, opts ...ExtractorOption) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	e := &Extractor{
		binary:     binary,
		sampleRate: sampleRate,
		channels:   channels,
		run:        defaultRunner,
		logger:     logging.NewComponentLogger(nil, "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Args returns the ffmpeg arguments used to extract video into dest.
func (e *Extractor) Args(video, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(e.sampleRate),
		"-ac", strconv.Itoa(e.channels),
		dest,
	}
}

// Extract writes the audio of video to dest. A missing input fails without
// running ffmpeg. Errors carry services.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, video, dest string) error {
	info, err := os.Stat(video)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrExtraction, "extract", "stat input", video, fmt.Errorf("%w: %w", services.ErrNotFound, err))
		}
		return services.Wrap(services.ErrExtraction, "extract", "stat input", video, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrExtraction, "extract", "stat input", video+" is a directory", services.ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "create destination", "", err)
	}

	if e.prober != nil {
		probe, err := e.prober.Inspect(ctx, video)
		if err == nil && !probe.HasAudio() {
			return services.Wrap(services.ErrExtraction, "extract", "probe input", "clip has no audio stream", services.ErrValidation)
		}
		if err != nil {
			e.logger.Debug("ffprobe pre-check failed; relying on ffmpeg",
				logging.String("path", video),
				logging.Error(err),
			)
		}
	}

	runCtx := ctx
	cancel := func() {}
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	start := time.Now()
	output, err := e.run(runCtx, e.binary, e.Args(video, dest)...)
	if err != nil {
		_ = os.Remove(dest)
		return classify(ctx, runCtx, services.ErrExtraction, "extract audio", output, err)
	}
	if _, err := os.Stat(dest); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "verify output", "ffmpeg produced no file", err)
	}
	e.logger.Debug("audio extracted",
		logging.String("source", video),
		logging.String("dest", dest),
		logging.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
	)
	return nil
}
