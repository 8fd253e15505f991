package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiceover/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *runstore.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					if runs == nil {
						runs = []runstore.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						string(run.Status),
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						run.Duration().Round(time.Second).String(),
						strconv.Itoa(run.Total),
						strconv.Itoa(run.Processed),
						strconv.Itoa(run.Failed),
						run.Model,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Status", "Started", "Time", "Clips", "Done", "Failed", "Model"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	runsCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-clip results for a run (ID prefixes accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *runstore.Store) error {
				run, err := store.FindRun(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				results, err := store.ListClipResults(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					if results == nil {
						results = []runstore.ClipResult{}
					}
					return writeJSON(cmd, struct {
						Run   *runstore.Run         `json:"run"`
						Clips []runstore.ClipResult `json:"clips"`
					}{run, results})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				fmt.Fprintf(out, "Model:    %s\n", valueOrDash(run.Model))
				fmt.Fprintf(out, "Device:   %s\n", valueOrDash(run.Device))
				fmt.Fprintf(out, "Clips:    %s\n", valueOrDash(run.ClipsDir))
				fmt.Fprintf(out, "Output:   %s\n", valueOrDash(run.OutputDir))
				fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Second))
				if run.Error != "" {
					fmt.Fprintf(out, "Error:    %s\n", run.Error)
				}
				if len(results) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, res := range results {
					detail := res.ErrorMessage
					if detail == "" {
						detail = res.OutputPath
					}
					rows = append(rows, []string{
						res.ClipID,
						res.State,
						valueOrDash(res.ErrorKind),
						strconv.Itoa(res.Attempts),
						(time.Duration(res.DurationMS) * time.Millisecond).String(),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Clip", "State", "Kind", "Attempts", "Time", "Output / Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withStore(ctx, func(store *runstore.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff for finished runs")
	return cmd
}

func withStore(ctx *commandContext, fn func(*runstore.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
