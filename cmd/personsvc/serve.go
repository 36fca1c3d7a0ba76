package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/person_service/internal/app/runtime"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var seed bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := runtime.NewApplication(ctx, cfg, log, seed)
			if err != nil {
				return err
			}

			runErr := application.Run(ctx)
			if err := application.Shutdown(context.Background()); err != nil {
				log.WithError(err).Warn("shutdown")
			}
			return runErr
		},
	}

	c.Flags().BoolVar(&seed, "seed", false, "Insert the sample records on start")
	return c
}
