package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the summary cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c, _, err := openStore(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Backend: %s\nEntries: %d\nHits:    %d\nMisses:  %d\n", cfg.Cache.Backend, stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached summaries, most recently written first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c, _, err := openStore(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			entries, err := c.List(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No cached summaries.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECALL\tCLASSIFICATION\tREPORTED\tDISTRIBUTION\tUPDATED")
			for _, e := range entries {
				dist := truncate(e.Record.DistributionPattern, 40)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Record.RecallNumber, e.Record.Classification, e.Record.ReportDate,
					dist, e.UpdatedAt.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "max entries to list")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "recallwatch.yaml", "path to config file")
	cmd.AddCommand(statsCmd, listCmd)
	return cmd
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
