package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"voiceover/internal/audio"
	"voiceover/internal/logging"
	"voiceover/internal/notifications"
	"voiceover/internal/runstore"
	"voiceover/internal/separation"
	"voiceover/internal/services"
)

// Extractor pulls a clip's audio track into a PCM WAV file.
type Extractor interface {
	Extract(ctx context.Context, video, dest string) error
}

// Recorder persists run and clip transitions. *runstore.Store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, run runstore.Run) (runstore.Run, error)
	RecordClip(ctx context.Context, result runstore.ClipResult) error
	FinishRun(ctx context.Context, run runstore.Run) error
	MarkAbandoned(ctx context.Context, outputDir string) (int64, error)
}

// ClipResult is the outcome of one clip.
type ClipResult struct {
	Clip        Clip          `json:"clip"`
	State       State         `json:"state"`
	FailedStage State         `json:"failed_stage,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Err         error         `json:"-"`
	OutputPath  string        `json:"output_path,omitempty"`
	Frames      int           `json:"frames,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the residual was written.
func (r ClipResult) Succeeded() bool { return r.State == StateWritten }

// ErrorMessage returns the failure text, or "".
func (r ClipResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ProcessorOptions tunes a Processor.
type ProcessorOptions struct {
	// CommentaryStem names the source removed from the mix.
	CommentaryStem string
	// SampleRate and Channels describe the extractor output. When set they
	// must match the model contract.
	SampleRate    int
	Channels      int
	BitDepth      int
	WorkDir       string
	RetryAttempts int
	RetryBackoff  time.Duration
	Logger        *slog.Logger
	Recorder      Recorder
	Notifier      notifications.Service
}

// Processor drives one clip through extraction, separation, recombination
// and writing. It is safe for concurrent use when its Model is.
type Processor struct {
	extractor  Extractor
	model      separation.Model
	info       separation.ModelInfo
	commentary int
	opts       ProcessorOptions
	logger     *slog.Logger
}

// NewProcessor binds an extractor and a loaded model. It fails with
// services.ErrModelLoad when the model has no source named CommentaryStem or
// when the extractor format differs from the model's.
func NewProcessor(extractor Extractor, model separation.Model, opts ProcessorOptions) (*Processor, error) {
	if extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if model == nil {
		return nil, services.Wrap(services.ErrModelLoad, "load", "", "no model", services.ErrConfiguration)
	}
	info := model.Info()
	stem := strings.TrimSpace(opts.CommentaryStem)
	if stem == "" {
		stem = "vocals"
	}
	idx, err := separation.CommentaryIndex(info, stem)
	if err != nil {
		return nil, err
	}
	if (opts.SampleRate > 0 && opts.SampleRate != info.SampleRate) || (opts.Channels > 0 && opts.Channels != info.Channels) {
		msg := fmt.Sprintf("extractor produces %d Hz/%d ch, model expects %d Hz/%d ch", opts.SampleRate, opts.Channels, info.SampleRate, info.Channels)
		return nil, services.Wrap(services.ErrModelLoad, "load", info.Name, msg, services.ErrConfiguration)
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = 16
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewNoop()
	}
	return &Processor{
		extractor:  extractor,
		model:      model,
		info:       info,
		commentary: idx,
		opts:       opts,
		logger:     logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// Model returns the contract of the bound model.
func (p *Processor) Model() separation.ModelInfo { return p.info }

// OutputPath is where the residual for clip lands under outputDir.
func OutputPath(outputDir string, clip Clip) string {
	return filepath.Join(outputDir, clip.ID+".wav")
}

// ProcessClip removes the commentary stem from clip and writes the residual
// to <outputDir>/<clip id>.wav. A failure is returned both as the error and
// in the result, with FailedStage naming the state that was not reached.
// Intermediate files live in a per-clip work directory removed on every path.
func (p *Processor) ProcessClip(ctx context.Context, clip Clip, outputDir string) (result ClipResult, err error) {
	start := time.Now()
	ctx = services.WithClipID(ctx, clip.ID)
	logger := logging.WithContext(ctx, p.logger)
	runID, _ := services.RunIDFromContext(ctx)

	result = ClipResult{Clip: clip, State: StateDiscovered}
	p.record(ctx, logger, runID, result, start)

	current := StateDiscovered
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", clip.ID, r)
			logger.Error("clip panicked",
				logging.String(logging.FieldEventType, "clip_panic"),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
		result.Duration = time.Since(start)
		if err != nil {
			p.fail(ctx, logger, runID, &result, current, err, start)
		}
	}()

	workDir, werr := p.makeWorkDir(clip)
	if werr != nil {
		current = StateAudioExtracted
		return result, werr
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logging.WarnWithContext(logger, "failed to remove clip work directory", "work_cleanup_failed",
				logging.String("path", workDir),
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the stale sweep"),
			)
		}
	}()

	advance := func(next State) {
		current = next
		result.State = next
		p.record(ctx, logger, runID, result, start)
	}

	current = StateAudioExtracted
	mix, attempts, err := p.extract(ctx, logger, clip, workDir)
	result.Attempts = attempts
	if err != nil {
		return result, err
	}
	result.Frames = mix.Frames()
	advance(StateAudioExtracted)

	current = StateSeparated
	stems, stats, err := p.separate(ctx, logger, mix)
	if err != nil {
		return result, err
	}
	advance(StateSeparated)

	current = StateRecombined
	residual, err := separation.Recombine(stems, p.commentary)
	if err != nil {
		return result, services.Wrap(services.ErrInference, "recombine", "", "", err)
	}
	advance(StateRecombined)

	if logger.Enabled(ctx, slog.LevelDebug) {
		if recon, rerr := separation.ReconstructionError(mix, stems); rerr == nil {
			logger.Debug("stem reconstruction",
				logging.Float64("max_abs_error", recon),
				logging.Float64("mean", stats.Mean),
				logging.Float64("std", stats.Std),
				logging.Bool("std_clamped", stats.Clamped),
			)
		}
	}

	current = StateWritten
	dest := OutputPath(outputDir, clip)
	if err := audio.WriteWAV(dest, residual, p.opts.BitDepth); err != nil {
		return result, services.Wrap(services.ErrWrite, "write", "residual", dest, err)
	}
	result.OutputPath = dest
	result.Duration = time.Since(start)
	advance(StateWritten)

	logger.Info("clip processed",
		logging.String(logging.FieldEventType, "clip_complete"),
		logging.String("output", dest),
		logging.Int("frames", result.Frames),
		logging.Int(logging.FieldAttempt, result.Attempts),
		logging.Int64(logging.FieldDurationMS, result.Duration.Milliseconds()),
	)
	return result, nil
}

func (p *Processor) makeWorkDir(clip Clip) (string, error) {
	if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrWrite, "extract", "create work dir", p.opts.WorkDir, err)
	}
	dir, err := os.MkdirTemp(p.opts.WorkDir, clip.ID+"-*")
	if err != nil {
		return "", services.Wrap(services.ErrWrite, "extract", "create work dir", p.opts.WorkDir, err)
	}
	return dir, nil
}

func (p *Processor) extract(ctx context.Context, logger *slog.Logger, clip Clip, workDir string) (audio.Waveform, int, error) {
	ctx = logging.WithStage(ctx, string(StateAudioExtracted))
	dest := filepath.Join(workDir, clip.ID+".wav")
	attempts, err := retryTransient(ctx, p.opts.RetryAttempts, p.opts.RetryBackoff, func(attempt int) error {
		err := p.extractor.Extract(ctx, clip.Path, dest)
		if err != nil && services.IsTransient(err) && attempt <= p.opts.RetryAttempts {
			logging.WarnWithContext(logger, "audio extraction failed; retrying", "extract_retry",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "ffmpeg crashed or timed out"),
				logging.String(logging.FieldImpact, "clip delayed"),
			)
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, services.ErrExtraction) {
			err = services.Wrap(services.ErrExtraction, "extract", "ffmpeg", clip.Path, err)
		}
		return audio.Waveform{}, attempts, err
	}
	mix, err := audio.ReadWAV(dest)
	if err != nil {
		return audio.Waveform{}, attempts, services.Wrap(services.ErrExtraction, "extract", "decode", dest, err)
	}
	if mix.Frames() == 0 {
		return audio.Waveform{}, attempts, services.Wrap(services.ErrExtraction, "extract", "", "clip has an empty audio track", services.ErrValidation)
	}
	return mix, attempts, nil
}

func (p *Processor) separate(ctx context.Context, logger *slog.Logger, mix audio.Waveform) (separation.StemSet, separation.Stats, error) {
	ctx = logging.WithStage(ctx, string(StateSeparated))
	normalized, stats := separation.Normalize(mix)
	if stats.Clamped {
		attrs := append(logging.DecisionAttrs("normalize_clamp", "std=1", "input is silent or constant"),
			logging.Float64("mean", stats.Mean),
		)
		logger.Debug("normalization std clamped", logging.Args(attrs...)...)
	}
	set, err := p.model.Separate(ctx, normalized)
	if err != nil {
		if !errors.Is(err, services.ErrInference) {
			err = services.Wrap(services.ErrInference, "separate", p.info.Name, "", err)
		}
		return separation.StemSet{}, stats, err
	}
	if err := separation.ValidateStemSet(p.info, normalized, set); err != nil {
		return separation.StemSet{}, stats, err
	}
	return separation.DenormalizeStems(set, stats), stats, nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, runID string, result *ClipResult, stage State, err error, start time.Time) {
	result.FailedStage = stage
	result.State = StateFailed
	result.Err = err
	result.ErrorKind = services.Kind(err)
	p.record(ctx, logger, runID, *result, start)

	logging.ErrorWithContext(logger, "clip failed", "clip_failed",
		logging.String("failed_stage", string(stage)),
		logging.String(logging.FieldErrorKind, result.ErrorKind),
		logging.Bool("transient", services.IsTransient(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	if nerr := p.opts.Notifier.Publish(context.WithoutCancel(ctx), notifications.EventClipFailed, notifications.Payload{
		"clipID": result.Clip.ID,
		"stage":  string(stage),
		"error":  err,
	}); nerr != nil {
		logger.Debug("clip failure notification failed", logging.Error(nerr))
	}
}

func (p *Processor) record(ctx context.Context, logger *slog.Logger, runID string, result ClipResult, start time.Time) {
	if p.opts.Recorder == nil || runID == "" {
		return
	}
	row := runstore.ClipResult{
		RunID:        runID,
		ClipID:       result.Clip.ID,
		SourcePath:   result.Clip.Path,
		State:        string(result.State),
		FailedStage:  string(result.FailedStage),
		ErrorKind:    result.ErrorKind,
		ErrorMessage: result.ErrorMessage(),
		OutputPath:   result.OutputPath,
		Frames:       result.Frames,
		Attempts:     result.Attempts,
		DurationMS:   time.Since(start).Milliseconds(),
		StartedAt:    start.UTC(),
	}
	if err := p.opts.Recorder.RecordClip(context.WithoutCancel(ctx), row); err != nil {
		logging.WarnWithContext(logger, "failed to record clip transition", "ledger_write_failed",
			logging.String("state", row.State),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory database"),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
	}
}

func hintFor(err error) string {
	if errors.Is(err, services.ErrTimeout) {
		return "raise the timeout in the config or use a faster device"
	}
	switch services.Kind(err) {
	case "extraction":
		return "check that the clip is a valid video with an audio track"
	case "inference":
		return "check the separation worker output in the log"
	case "write":
		return "check processed_audio_dir permissions and free space"
	default:
		return "check logs for details"
	}
}
