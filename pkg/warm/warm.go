// Package warm pre-generates summaries for recently reported recalls.
package warm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/models"
)

// Lister lists recalls reported within a window.
type Lister interface {
	FetchRecent(ctx context.Context, since, until time.Time, limit int) ([]models.RecallRecord, error)
}

// Resolver reconciles one recall.
type Resolver interface {
	Resolve(ctx context.Context, recallNumber string) (models.ResolvedSummary, error)
}

// Report summarizes one warm-up run.
type Report struct {
	Listed    int `json:"listed"`
	Generated int `json:"generated"`
	Cached    int `json:"cached"`
	Stale     int `json:"stale"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Warmer resolves every recall in the recent window so detail requests
// find a summary already cached.
type Warmer struct {
	lister   Lister
	resolver Resolver
	cfg      config.WarmConfig
	now      func() time.Time
}

// New creates a Warmer.
func New(lister Lister, resolver Resolver, cfg config.WarmConfig) *Warmer {
	return &Warmer{lister: lister, resolver: resolver, cfg: cfg, now: time.Now}
}

// Window returns the listing window ending at now: the later of
// WindowDays ago and January 1 of the current year.
func (w *Warmer) Window(now time.Time) (since, until time.Time) {
	since = now.AddDate(0, 0, -w.cfg.WindowDays)
	if jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()); jan1.After(since) {
		since = jan1
	}
	return since, now
}

// Run lists the window and resolves each record with bounded concurrency.
// Individual failures are counted, not returned; only a listing failure or
// context cancellation fails the run.
func (w *Warmer) Run(ctx context.Context) (Report, error) {
	logger := log.WithComponent("warm")
	since, until := w.Window(w.now())

	records, err := w.lister.FetchRecent(ctx, since, until, w.cfg.Limit)
	if err != nil {
		return Report{}, fmt.Errorf("list recent recalls: %w", err)
	}
	logger.Info().Int("records", len(records)).
		Str("since", since.Format("2006-01-02")).Str("until", until.Format("2006-01-02")).
		Msg("warming summaries")

	var generated, cached, stale, skipped, failed atomic.Int64
	seen := make(map[string]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	limit := w.cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, rec := range records {
		id := rec.RecallNumber
		if models.ValidateIdentifier(id) != nil || seen[id] {
			skipped.Add(1)
			continue
		}
		seen[id] = true

		g.Go(func() error {
			res, err := w.resolver.Resolve(gctx, id)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, models.ErrStorageUnavailable):
				// Every remaining write would fail the same way.
				return err
			case err != nil:
				failed.Add(1)
				logger.Warn().Err(err).Str("recall_number", id).Msg("warm-up failed")
			case res.Stale:
				stale.Add(1)
			case res.Source == models.SourceGenerated:
				generated.Add(1)
			default:
				cached.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()

	report := Report{
		Listed:    len(records),
		Generated: int(generated.Load()),
		Cached:    int(cached.Load()),
		Stale:     int(stale.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	logger.Info().Int("generated", report.Generated).Int("cached", report.Cached).
		Int("stale", report.Stale).Int("failed", report.Failed).Msg("warm-up finished")
	return report, err
}
