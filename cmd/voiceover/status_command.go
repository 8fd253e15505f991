package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiceover/internal/preflight"
	"voiceover/internal/runstore"
	"voiceover/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, directory, and dependency readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configDetail := ctx.loadedPath
			if !ctx.loadedExists {
				configDetail += " (not found, using defaults)"
			}
			lines = append(lines, renderStatusLine("Config", statusInfo, configDetail, colorize))
			lines = append(lines, renderStatusLine("Model", statusInfo, fmt.Sprintf("%s (commentary stem: %s)", cfg.Separation.Model, cfg.Separation.CommentaryStem), colorize))
			lines = append(lines, resultLine(preflight.ProbeDevice(cfg.Separation.Device).Result(), colorize))
			lines = append(lines, resultLine(preflight.CheckNotificationsFromConfig(cfg), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			checks := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range checks {
				if strings.HasSuffix(r.Name, "directory") || strings.HasSuffix(r.Name, "free space") {
					lines = append(lines, resultLine(r, colorize))
				}
			}
			lines = append(lines, workDirLine(cfg.Paths.WorkDir, cfg.StaleWorkAge(), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Ledger", colorize)...)
			lines = append(lines, ledgerLine(cmd, ctx, colorize))

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func workDirLine(workDir string, staleAge time.Duration, colorize bool) string {
	dirs, err := staging.ListDirectories(workDir)
	if err != nil {
		return renderStatusLine("Clip work dirs", statusError, err.Error(), colorize)
	}
	if len(dirs) == 0 {
		return renderStatusLine("Clip work dirs", statusOK, "none", colorize)
	}
	var total int64
	stale := 0
	for _, d := range dirs {
		total += d.Size
		if staleAge > 0 && time.Since(d.ModTime) > staleAge {
			stale++
		}
	}
	detail := fmt.Sprintf("%d dir(s), %.1f MiB", len(dirs), float64(total)/float64(1<<20))
	if stale > 0 {
		return renderStatusLine("Clip work dirs", statusWarn, fmt.Sprintf("%s, %d stale (swept on next run)", detail, stale), colorize)
	}
	return renderStatusLine("Clip work dirs", statusInfo, detail, colorize)
}

func ledgerLine(cmd *cobra.Command, ctx *commandContext, colorize bool) string {
	var line string
	err := withStore(ctx, func(store *runstore.Store) error {
		runs, err := store.ListRuns(cmd.Context(), 1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			line = renderStatusLine("Last run", statusInfo, "none recorded", colorize)
			return nil
		}
		run := runs[0]
		kind := statusOK
		switch run.Status {
		case runstore.RunRunning:
			kind = statusInfo
		case runstore.RunPartial, runstore.RunCancelled:
			kind = statusWarn
		case runstore.RunFailed:
			kind = statusError
		}
		line = renderStatusLine("Last run", kind, fmt.Sprintf("%s %s, %d/%d processed, %d failed (%s)",
			shortID(run.ID), run.Status, run.Processed, run.Total, run.Failed,
			run.StartedAt.Local().Format("2006-01-02 15:04")), colorize)
		return nil
	})
	if err != nil {
		return renderStatusLine("Last run", statusError, err.Error(), colorize)
	}
	return line
}
