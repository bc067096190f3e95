package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/recallwatch/pkg/warm"
)

func newWarmCmd() *cobra.Command {
	var (
		configPath  string
		concurrency int
		days        int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Pre-generate summaries for recently reported recalls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			wcfg := a.cfg.Warm
			if cmd.Flags().Changed("concurrency") {
				wcfg.Concurrency = concurrency
			}
			if cmd.Flags().Changed("days") {
				wcfg.WindowDays = days
			}
			if cmd.Flags().Changed("limit") {
				wcfg.Limit = limit
			}

			report, err := warm.New(a.upstream, a.reconciler, wcfg).Run(ctx)
			fmt.Printf("Listed:    %d\nGenerated: %d\nCached:    %d\nStale:     %d\nSkipped:   %d\nFailed:    %d\n",
				report.Listed, report.Generated, report.Cached, report.Stale, report.Skipped, report.Failed)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "recallwatch.yaml", "path to config file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel resolutions (overrides warm.concurrency)")
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (overrides warm.window_days)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max records to list (overrides warm.limit)")
	return cmd
}
