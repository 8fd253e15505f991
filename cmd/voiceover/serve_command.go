package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voiceover/internal/preflight"
	"voiceover/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clip workspace over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.APIBind = bind
			}
			a, err := ctx.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			a.warnPreflight(preflight.RunAll(cmd.Context(), cfg))

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, server.Options{
				Catalog:    a.catalog,
				Recordings: a.recordings,
				Processor:  a.batch,
				Runs:       a.store,
				Models:     a.loader,
				Logger:     a.logger,
			})
			return srv.Run(runCtx)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to paths.api_bind)")
	return cmd
}
