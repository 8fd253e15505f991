package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voiceover/internal/config"
	"voiceover/internal/pipeline"
	"voiceover/internal/preflight"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var clipsDir, outputDir string
	var workers int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Remove commentary from every clip in the clips directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Batch.Workers = workers
			}
			a, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			clipsDir, err := resolveDir(clipsDir, a.cfg.Paths.ClipsDir)
			if err != nil {
				return err
			}
			outputDir, err := resolveDir(outputDir, a.cfg.Paths.ProcessedAudioDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			a.warnPreflight(preflight.RunAll(cmd.Context(), a.cfg))

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, runErr := a.batch.ProcessAll(runCtx, clipsDir, outputDir)
			if jsonOut {
				if err := writeJSON(cmd, summaryView(summary)); err != nil {
					return err
				}
			} else {
				printSummary(cmd, summary)
			}
			if runErr != nil {
				return runErr
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d clips failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clipsDir, "clips", "", "Clips directory (defaults to paths.clips_dir)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (defaults to paths.processed_audio_dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Clips processed concurrently (defaults to batch.workers)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProcessClipCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process-clip <video>",
		Short: "Remove commentary from a single clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			clipPath, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			outputDir, err := resolveDir(outputDir, a.cfg.Paths.ProcessedAudioDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, runErr := a.batch.ProcessOne(runCtx, clipPath, outputDir)
			if jsonOut {
				if err := writeJSON(cmd, clipView(res)); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d frames, %s)\n", res.OutputPath, res.Frames, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (defaults to paths.processed_audio_dir)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func resolveDir(flagValue, fallback string) (string, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		return fallback, nil
	}
	return config.ExpandPath(value)
}

type clipResultView struct {
	ClipID      string `json:"clip_id"`
	Source      string `json:"source"`
	State       string `json:"state"`
	FailedStage string `json:"failed_stage,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	Frames      int    `json:"frames,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

type summaryJSON struct {
	RunID      string           `json:"run_id,omitempty"`
	Model      string           `json:"model,omitempty"`
	Total      int              `json:"total"`
	Processed  int              `json:"processed"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	DurationMS int64            `json:"duration_ms"`
	Clips      []clipResultView `json:"clips"`
}

func clipView(res pipeline.ClipResult) clipResultView {
	return clipResultView{
		ClipID:      res.Clip.ID,
		Source:      res.Clip.Path,
		State:       string(res.State),
		FailedStage: string(res.FailedStage),
		ErrorKind:   res.ErrorKind,
		Error:       res.ErrorMessage(),
		OutputPath:  res.OutputPath,
		Frames:      res.Frames,
		Attempts:    res.Attempts,
		DurationMS:  res.Duration.Milliseconds(),
	}
}

func summaryView(s pipeline.Summary) summaryJSON {
	clips := make([]clipResultView, 0, len(s.Results))
	for _, res := range s.Results {
		clips = append(clips, clipView(res))
	}
	return summaryJSON{
		RunID:      s.RunID,
		Model:      s.Model,
		Total:      s.Total,
		Processed:  s.Processed,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		DurationMS: s.Duration.Milliseconds(),
		Clips:      clips,
	}
}

func printSummary(cmd *cobra.Command, s pipeline.Summary) {
	out := cmd.OutOrStdout()
	if s.Total == 0 {
		fmt.Fprintln(out, "No clips found")
		return
	}
	rows := make([][]string, 0, len(s.Results))
	for _, res := range s.Results {
		detail := res.ErrorMessage()
		if res.Succeeded() {
			detail = res.OutputPath
		}
		rows = append(rows, []string{
			res.Clip.ID,
			string(res.State),
			strconv.Itoa(res.Frames),
			strconv.Itoa(res.Attempts),
			res.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Clip", "State", "Frames", "Attempts", "Time", "Output / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Run %s: %d processed, %d failed, %d skipped in %s\n",
		shortID(s.RunID), s.Processed, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
