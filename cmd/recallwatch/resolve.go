package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/recallwatch/pkg/models"
)

func newResolveCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <recall-number>",
		Short: "Reconcile one recall and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reconciler.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Print(formatResolved(res))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "recallwatch.yaml", "path to config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func formatResolved(res models.ResolvedSummary) string {
	rec := res.Record
	source := string(res.Source)
	if res.Stale {
		source += fmt.Sprintf(" (stale: %s)", res.StaleReason)
	}

	out := fmt.Sprintf("Recall:         %s\n", rec.RecallNumber)
	out += fmt.Sprintf("Firm:           %s\n", rec.RecallingFirm)
	out += fmt.Sprintf("Classification: %s\n", rec.Classification)
	out += fmt.Sprintf("Reported:       %s\n", rec.ReportDate)
	out += fmt.Sprintf("Distribution:   %s\n", rec.DistributionPattern)
	out += fmt.Sprintf("Source:         %s\n", source)
	out += fmt.Sprintf("Updated:        %s\n", res.UpdatedAt.Format(time.RFC3339))
	if len(res.Summary.Sections) == 0 {
		return out + "\n" + res.Summary.Text + "\n"
	}
	for _, s := range res.Summary.Sections {
		out += fmt.Sprintf("\n--- %s ---\n%s\n", s.Name, s.Body)
	}
	return out
}
