package main

import (
	"errors"
	"fmt"
	"log/slog"

	"voiceover/internal/clips"
	"voiceover/internal/config"
	"voiceover/internal/deps"
	"voiceover/internal/logging"
	"voiceover/internal/media/ffmpeg"
	"voiceover/internal/media/ffprobe"
	"voiceover/internal/notifications"
	"voiceover/internal/pipeline"
	"voiceover/internal/preflight"
	"voiceover/internal/recordings"
	"voiceover/internal/runstore"
	"voiceover/internal/separation"
	"voiceover/internal/separation/demucs"
)

// appDeps overrides the external backends. Zero values use ffmpeg, ffprobe,
// and the Demucs worker.
type appDeps struct {
	factory   separation.Factory
	extractor pipeline.Extractor
	prober    clips.Prober
	muxer     recordings.Muxer
	notifier  notifications.Service
	logger    *slog.Logger
}

// app holds the wired pipeline and workspace for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *runstore.Store
	loader     *separation.Loader
	batch      *pipeline.Batch
	catalog    *clips.Catalog
	recordings *recordings.Store
}

func (c *commandContext) openApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	ffprobeBinary := deps.ResolveFFprobePath(cfg.FFmpeg.Binary, cfg.FFmpeg.FFprobeBinary)
	prober := ffprobe.New(ffprobeBinary)

	factory := c.deps.factory
	if factory == nil {
		workerCfg := demucs.ConfigFromApp(cfg)
		factory = demucs.NewFactory(workerCfg, demucs.ExecLauncher(workerCfg, logger), logger)
	}
	extractor := c.deps.extractor
	if extractor == nil {
		extractor = ffmpeg.NewExtractor(cfg.FFmpeg.Binary, cfg.FFmpeg.SampleRate, cfg.FFmpeg.Channels,
			ffmpeg.WithProber(prober),
			ffmpeg.WithTimeout(cfg.ExtractTimeout()),
			ffmpeg.WithLogger(logger),
		)
	}
	var clipProber clips.Prober = prober
	if c.deps.prober != nil {
		clipProber = c.deps.prober
	}
	var muxer recordings.Muxer = ffmpeg.NewMuxer(cfg.FFmpeg.Binary, cfg.MergeTimeout(), nil)
	if c.deps.muxer != nil {
		muxer = c.deps.muxer
	}
	notifier := c.deps.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	loader := separation.NewLoader(factory, cfg.LoadTimeout(), logger)
	batch := pipeline.NewBatch(pipeline.BatchOptions{
		Loader:        loader,
		ModelName:     cfg.Separation.Model,
		Extractor:     extractor,
		ClipExtension: cfg.Batch.ClipExtension,
		Workers:       cfg.Batch.Workers,
		StaleWorkAge:  cfg.StaleWorkAge(),
		MinFreeBytes:  preflight.MinFreeBytes(cfg),
		FreeSpace:     preflight.FreeBytes,
		Processor: pipeline.ProcessorOptions{
			CommentaryStem: cfg.Separation.CommentaryStem,
			SampleRate:     cfg.FFmpeg.SampleRate,
			Channels:       cfg.FFmpeg.Channels,
			BitDepth:       cfg.Output.BitDepth,
			WorkDir:        cfg.Paths.WorkDir,
			RetryAttempts:  cfg.FFmpeg.RetryAttempts,
			RetryBackoff:   cfg.RetryBackoff(),
			Logger:         logger,
			Recorder:       store,
			Notifier:       notifier,
		},
	})
	catalog := clips.NewCatalog(cfg, clipProber, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		loader:     loader,
		batch:      batch,
		catalog:    catalog,
		recordings: recordings.New(cfg, catalog, muxer, logger),
	}, nil
}

// warnPreflight logs failed readiness checks without stopping the command.
func (a *app) warnPreflight(results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			continue
		}
		logging.WarnWithContext(a.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run `voiceover status` for the full report"),
			logging.String(logging.FieldImpact, "clips may fail until this is fixed"),
		)
	}
}

func (a *app) Close() error {
	var errs []error
	if a.loader != nil {
		errs = append(errs, a.loader.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
