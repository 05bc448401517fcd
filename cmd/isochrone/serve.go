package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kass/go-isochrone/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the isochrone HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger(cmd)
			engine, closeFn, err := newEngine(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer closeInto(&err, closeFn)

			srv := server.New(engine, server.Config{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Logger:       log,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}
