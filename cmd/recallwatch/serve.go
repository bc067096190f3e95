package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/recallwatch/pkg/api"
	"github.com/pario-ai/recallwatch/pkg/log"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recall detail API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			log.Logger.Info().Str("config", configPath).Str("cache", a.cfg.Cache.Backend).
				Msg("starting recallwatch")
			return api.New(a.cfg, a.reconciler).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "recallwatch.yaml", "path to config file")
	return cmd
}
