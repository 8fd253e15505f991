package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"voiceover/internal/logging"
	"voiceover/internal/notifications"
	"voiceover/internal/runstore"
	"voiceover/internal/separation"
	"voiceover/internal/services"
	"voiceover/internal/staging"
)

// Summary is the outcome of a batch.
type Summary struct {
	RunID     string        `json:"run_id,omitempty"`
	Model     string        `json:"model,omitempty"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Results   []ClipResult  `json:"results"`
}

// FreeSpaceFunc reports the bytes available to unprivileged users at path.
type FreeSpaceFunc func(path string) (uint64, error)

// BatchOptions wires a Batch.
type BatchOptions struct {
	Loader        *separation.Loader
	ModelName     string
	Extractor     Extractor
	Processor     ProcessorOptions
	ClipExtension string
	Workers       int
	StaleWorkAge  time.Duration
	// MinFreeBytes triggers a warning when the output volume has less room.
	MinFreeBytes uint64
	FreeSpace    FreeSpaceFunc
}

// Batch runs the pipeline over a directory of clips.
type Batch struct {
	opts   BatchOptions
	logger *slog.Logger
}

// NewBatch builds a Batch. Recorder, Notifier, and Logger come from
// opts.Processor and are shared with every clip.
func NewBatch(opts BatchOptions) *Batch {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ClipExtension == "" {
		opts.ClipExtension = ".mp4"
	}
	if opts.Processor.Notifier == nil {
		opts.Processor.Notifier = notifications.NewNoop()
	}
	return &Batch{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Processor.Logger, "batch"),
	}
}

// ProcessAll processes every clip in clipsDir into outputDir. Per-clip
// failures are recorded in the summary and do not stop the batch; a missing
// clips directory, a held output lock, or a model load failure does.
// Cancelling ctx stops scheduling new clips; unscheduled clips are reported
// as skipped and ctx's error is returned.
func (b *Batch) ProcessAll(ctx context.Context, clipsDir, outputDir string) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	clips, err := Discover(clipsDir, b.opts.ClipExtension)
	if err != nil {
		return summary, err
	}
	summary.Total = len(clips)

	lock, err := AcquireLock(outputDir)
	if err != nil {
		return summary, services.Wrap(services.ErrWrite, "batch", "lock output dir", outputDir, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			b.logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	b.prepare(ctx, outputDir)

	run, ctx := b.beginRun(ctx, runstore.Run{ClipsDir: clipsDir, OutputDir: outputDir, Model: b.opts.ModelName, Total: len(clips)})
	summary.RunID = run.ID
	logger := logging.WithContext(ctx, b.logger)

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("clips_dir", clipsDir),
		logging.String("output_dir", outputDir),
		logging.Int("clips", len(clips)),
		logging.Int("workers", b.opts.Workers),
	)
	b.notify(ctx, notifications.EventBatchStarted, notifications.Payload{"count": len(clips)})

	proc, err := b.processor(ctx)
	if err != nil {
		summary.Duration = time.Since(start)
		b.finishRun(ctx, run, runstore.RunFailed, summary, err)
		logging.ErrorWithContext(logger, "batch aborted", "batch_aborted",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the separation launcher and model name"),
		)
		return summary, err
	}
	summary.Model = proc.Model().Name
	run.Device = proc.Model().Device

	summary.Results = b.runPool(ctx, proc, clips, outputDir)
	for _, res := range summary.Results {
		switch res.State {
		case StateWritten:
			summary.Processed++
		case StateSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	summary.Duration = time.Since(start)

	status := runstore.RunCompleted
	var runErr error
	switch {
	case ctx.Err() != nil:
		status = runstore.RunCancelled
		runErr = ctx.Err()
	case summary.Failed > 0:
		status = runstore.RunPartial
	}
	b.finishRun(ctx, run, status, summary, runErr)

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.String("status", string(status)),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int64(logging.FieldDurationMS, summary.Duration.Milliseconds()),
	)
	b.notify(ctx, notifications.EventBatchCompleted, notifications.Payload{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	})
	return summary, runErr
}

// ProcessOne runs a single clip file through the pipeline under the same
// lock, ledger, and model as a batch.
func (b *Batch) ProcessOne(ctx context.Context, clipPath, outputDir string) (ClipResult, error) {
	clip := NewClip(clipPath)
	if _, err := os.Stat(clipPath); err != nil {
		return ClipResult{Clip: clip, State: StateFailed}, services.Wrap(services.ErrExtraction, "discover", "stat clip", clipPath, fmt.Errorf("%w: %w", services.ErrNotFound, err))
	}

	lock, err := AcquireLock(outputDir)
	if err != nil {
		return ClipResult{Clip: clip}, services.Wrap(services.ErrWrite, "batch", "lock output dir", outputDir, err)
	}
	defer lock.Release()

	b.prepare(ctx, outputDir)
	run, ctx := b.beginRun(ctx, runstore.Run{OutputDir: outputDir, Model: b.opts.ModelName, Total: 1})

	proc, err := b.processor(ctx)
	if err != nil {
		b.finishRun(ctx, run, runstore.RunFailed, Summary{Total: 1}, err)
		return ClipResult{Clip: clip}, err
	}
	run.Device = proc.Model().Device

	res, err := proc.ProcessClip(ctx, clip, outputDir)
	summary := Summary{Total: 1}
	status := runstore.RunCompleted
	if err != nil {
		summary.Failed = 1
		status = runstore.RunFailed
	} else {
		summary.Processed = 1
	}
	b.finishRun(ctx, run, status, summary, err)
	return res, err
}

func (b *Batch) processor(ctx context.Context) (*Processor, error) {
	if b.opts.Loader == nil {
		return nil, services.Wrap(services.ErrModelLoad, "load", "", "no model loader", services.ErrConfiguration)
	}
	model, err := b.opts.Loader.Load(ctx, b.opts.ModelName)
	if err != nil {
		return nil, err
	}
	return NewProcessor(b.opts.Extractor, model, b.opts.Processor)
}

func (b *Batch) runPool(ctx context.Context, proc *Processor, clips []Clip, outputDir string) []ClipResult {
	results := make([]ClipResult, len(clips))
	for i, clip := range clips {
		results[i] = ClipResult{Clip: clip, State: StateSkipped}
	}

	workers := min(b.opts.Workers, len(clips))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, _ := proc.ProcessClip(ctx, clips[idx], outputDir)
				results[idx] = res
			}
		}()
	}

schedule:
	for i := range clips {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break schedule
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// prepare sweeps crash leftovers and warns about low disk space. It runs
// while the output lock is held.
func (b *Batch) prepare(ctx context.Context, outputDir string) {
	if b.opts.StaleWorkAge > 0 {
		staging.CleanStale(ctx, b.opts.Processor.WorkDir, b.opts.StaleWorkAge, b.logger)
		staging.CleanPartialOutputs(ctx, outputDir, b.opts.StaleWorkAge, b.logger)
	}
	if rec := b.opts.Processor.Recorder; rec != nil {
		if n, err := rec.MarkAbandoned(context.WithoutCancel(ctx), outputDir); err != nil {
			b.logger.Debug("mark abandoned runs failed", logging.Error(err))
		} else if n > 0 {
			b.logger.Info("marked abandoned runs as failed",
				logging.Int64("runs", n),
				logging.String(logging.FieldEventType, "runs_abandoned"),
			)
		}
	}
	if b.opts.FreeSpace != nil && b.opts.MinFreeBytes > 0 {
		free, err := b.opts.FreeSpace(outputDir)
		if err == nil && free < b.opts.MinFreeBytes {
			logging.WarnWithContext(b.logger, "low free space on output volume", "low_disk_space",
				logging.String("output_dir", outputDir),
				logging.Int64("free_bytes", int64(free)),
				logging.Int64("min_free_bytes", int64(b.opts.MinFreeBytes)),
				logging.String(logging.FieldErrorHint, "free space or lower batch.min_free_gib"),
				logging.String(logging.FieldImpact, "writes may fail part way through the batch"),
			)
		}
	}
}

func (b *Batch) beginRun(ctx context.Context, run runstore.Run) (runstore.Run, context.Context) {
	rec := b.opts.Processor.Recorder
	if rec == nil {
		return run, ctx
	}
	stored, err := rec.BeginRun(context.WithoutCancel(ctx), run)
	if err != nil {
		logging.WarnWithContext(b.logger, "failed to record run start", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory database"),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
		return run, ctx
	}
	return stored, services.WithRunID(ctx, stored.ID)
}

func (b *Batch) finishRun(ctx context.Context, run runstore.Run, status runstore.RunStatus, summary Summary, runErr error) {
	rec := b.opts.Processor.Recorder
	if rec == nil || run.ID == "" {
		return
	}
	run.Status = status
	run.Total = summary.Total
	run.Processed = summary.Processed
	run.Failed = summary.Failed
	if summary.Model != "" {
		run.Model = summary.Model
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := rec.FinishRun(context.WithoutCancel(ctx), run); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(b.logger, "failed to record run result", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory database"),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
	}
}

func (b *Batch) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := b.opts.Processor.Notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		b.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
