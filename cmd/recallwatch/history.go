package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/recallwatch/pkg/history"
	"github.com/pario-ai/recallwatch/pkg/models"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		since      string
		limit      int
		stats      bool
	)

	cmd := &cobra.Command{
		Use:   "history [recall-number]",
		Short: "Show summary regeneration history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			l, err := history.New(cfg.History)
			if err != nil {
				return fmt.Errorf("open history db: %w", err)
			}
			defer func() { _ = l.Close() }()

			ctx := context.Background()
			if stats {
				s, err := l.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Print(formatHistoryStats(s))
				return nil
			}

			opts := models.HistoryQueryOpts{Limit: limit}
			if len(args) == 1 {
				opts.RecallNumber = args[0]
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			events, err := l.Query(ctx, opts)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No regenerations found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRECALL\tTRIGGER\tCHANGE\tPROVIDER\tLATENCY")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\n",
					e.CreatedAt.Format("2006-01-02T15:04:05"), e.RecallNumber, e.Trigger,
					describeChange(e), e.Provider, e.LatencyMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "recallwatch.yaml", "path to config file")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max events to return")
	cmd.Flags().BoolVar(&stats, "stats", false, "show counts by day and trigger")
	return cmd
}

// describeChange lists the status fields that differ between the previous
// and current snapshot.
func describeChange(e models.HistoryEvent) string {
	if e.Trigger == "new" {
		return e.Current.Classification
	}
	var parts []string
	if e.Previous.Classification != e.Current.Classification {
		parts = append(parts, fmt.Sprintf("classification %s -> %s", e.Previous.Classification, e.Current.Classification))
	}
	if e.Previous.ReportDate != e.Current.ReportDate {
		parts = append(parts, fmt.Sprintf("report_date %s -> %s", e.Previous.ReportDate, e.Current.ReportDate))
	}
	if e.Previous.DistributionPattern != e.Current.DistributionPattern {
		parts = append(parts, "distribution")
	}
	return strings.Join(parts, ", ")
}

func formatHistoryStats(stats []models.HistoryStat) string {
	if len(stats) == 0 {
		return "No regeneration stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %8s\n", "DAY", "TRIGGER", "COUNT")
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-10s %8d\n", s.Day, s.Trigger, s.Count)
	}
	return b.String()
}
