package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "clips",
		Short: "List clips and whether a processed residual exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.catalog.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No clips in %s\n", a.catalog.ClipsDir())
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, clip := range list {
				duration := "-"
				if clip.DurationSeconds > 0 {
					duration = strconv.FormatFloat(clip.DurationSeconds, 'f', 1, 64) + "s"
				}
				rows = append(rows, []string{clip.ID, clip.Name, duration, yesNo(clip.HasProcessedAudio)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Duration", "Processed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
