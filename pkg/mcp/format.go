package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/recallwatch/pkg/models"
)

func formatResolved(res models.ResolvedSummary) string {
	var b strings.Builder
	rec := res.Record
	fmt.Fprintf(&b, "Recall %s (%s), %s\n", rec.RecallNumber, rec.Classification, rec.RecallingFirm)
	fmt.Fprintf(&b, "Reported %s. Distribution: %s\n", rec.ReportDate, rec.DistributionPattern)
	if res.Stale {
		fmt.Fprintf(&b, "Note: this summary may be out of date (%s).\n", res.StaleReason)
	}
	b.WriteString("\n")
	if len(res.Summary.Sections) == 0 {
		b.WriteString(res.Summary.Text)
		b.WriteString("\n")
		return b.String()
	}
	for _, sec := range res.Summary.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", sec.Name, sec.Body)
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

func formatEntries(entries []models.CachedSummary) string {
	if len(entries) == 0 {
		return "No cached summaries."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-10s %-10s %-20s\n", "Recall", "Class", "Reported", "Updated")
	b.WriteString(strings.Repeat("-", 57) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-14s %-10s %-10s %-20s\n",
			e.Record.RecallNumber, e.Record.Classification, e.Record.ReportDate,
			e.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatEvents(events []models.HistoryEvent) string {
	if len(events) == 0 {
		return "No regenerations found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-14s %-8s %-24s %8s\n", "Time", "Recall", "Trigger", "Classification", "Latency")
	b.WriteString(strings.Repeat("-", 78) + "\n")
	for _, e := range events {
		class := e.Current.Classification
		if e.Trigger == "changed" && e.Previous.Classification != e.Current.Classification {
			class = e.Previous.Classification + " -> " + class
		}
		fmt.Fprintf(&b, "%-20s %-14s %-8s %-24s %6dms\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.RecallNumber, e.Trigger, class, e.LatencyMs)
	}
	return b.String()
}

func formatHistoryStats(stats []models.HistoryStat) string {
	if len(stats) == 0 {
		return "No regeneration stats found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %8s\n", "Day", "Trigger", "Count")
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-10s %8d\n", s.Day, s.Trigger, s.Count)
	}
	return b.String()
}
