// Package reconciler keeps cached recall summaries consistent with the live
// recall registry, regenerating a summary only when its status fields change.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/metrics"
	"github.com/pario-ai/recallwatch/pkg/models"
)

// storeTimeout bounds the cache write that follows a generation.
const storeTimeout = 10 * time.Second

// Source returns the live record for a recall number.
type Source interface {
	FetchRecord(ctx context.Context, recallNumber string) (models.RecallRecord, error)
}

// Store is the summary cache.
type Store interface {
	Get(ctx context.Context, recallNumber string) (models.CachedSummary, bool, error)
	Put(ctx context.Context, entry models.CachedSummary) error
}

// Generator produces a summary for a record.
type Generator interface {
	Generate(ctx context.Context, rec models.RecallRecord) (models.Generation, error)
}

// Locker guards regeneration across processes. Acquire returns
// models.ErrLockHeld when another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, recallNumber string) (release func(), err error)
}

// History records regenerations.
type History interface {
	Log(ctx context.Context, ev models.HistoryEvent) error
}

// Options tune a Reconciler. Zero durations disable the corresponding bound.
type Options struct {
	FetchTimeout      time.Duration
	GenerationTimeout time.Duration
	// MaxStale is the longest a summary may be served as a fallback after
	// it was last confirmed against the registry.
	MaxStale time.Duration
	// WaitForFlight makes callers that find a regeneration in progress wait
	// for it even when a cached summary exists.
	WaitForFlight bool

	Locker  Locker
	History History
	Now     func() time.Time
}

// OptionsFromConfig maps the reconcile config section onto Options.
func OptionsFromConfig(cfg config.ReconcileConfig) Options {
	return Options{
		FetchTimeout:      cfg.FetchTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
		MaxStale:          cfg.MaxStale,
		WaitForFlight:     cfg.WaitForFlight,
	}
}

// Reconciler resolves recall numbers to up-to-date summaries.
type Reconciler struct {
	source  Source
	store   Store
	gen     Generator
	opts    Options
	flights *flightGroup
	logger  zerolog.Logger

	// pending tracks detached flights and history writes.
	pending sync.WaitGroup

	// verified holds confirmations newer than the cached entry's UpdatedAt.
	// Entries are dropped once a write catches up, so at most one per
	// cached recall remains.
	mu       sync.Mutex
	verified map[string]time.Time
}

// New creates a Reconciler.
func New(source Source, store Store, gen Generator, opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		source:   source,
		store:    store,
		gen:      gen,
		opts:     opts,
		flights:  newFlightGroup(),
		logger:   log.WithComponent("reconciler"),
		verified: make(map[string]time.Time),
	}
}

// Resolve returns the summary for recallNumber, regenerating it if the
// registry's status fields no longer match the cached ones.
//
// Errors: models.ErrInvalidIdentifier, models.ErrRecallNotFound,
// models.ErrRecallUnavailable and models.ErrStorageUnavailable.
func (r *Reconciler) Resolve(ctx context.Context, recallNumber string) (models.ResolvedSummary, error) {
	res, err := r.resolve(ctx, recallNumber)
	metrics.Resolutions.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func (r *Reconciler) resolve(ctx context.Context, id string) (models.ResolvedSummary, error) {
	if err := models.ValidateIdentifier(id); err != nil {
		return models.ResolvedSummary{}, err
	}
	logger := r.logger.With().Str("recall_number", id).Logger()

	cached, found, err := r.store.Get(ctx, id)
	if err != nil {
		return models.ResolvedSummary{}, err
	}

	live, err := r.fetch(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if !found {
			return models.ResolvedSummary{}, fmt.Errorf("%w: %s", models.ErrRecallNotFound, id)
		}
		logger.Info().Msg("recall no longer in registry, serving cached summary")
		return stale(cached, models.StaleSourceNotFound), nil
	case err != nil:
		if !found {
			return models.ResolvedSummary{}, fmt.Errorf("%w: %v", models.ErrRecallUnavailable, err)
		}
		logger.Warn().Err(err).Msg("registry unavailable, serving cached summary")
		return r.serveStale(id, cached, models.StaleUpstreamUnavailable)
	}

	if found && models.SameStatus(cached.Status(), live.Status()) {
		r.markVerified(id)
		return resolved(cached, models.SourceCache), nil
	}
	return r.regenerate(ctx, id, live, cached, found)
}

// Wait blocks until detached regenerations and their history writes have
// finished. Call it before closing the store or the history log.
func (r *Reconciler) Wait() {
	r.pending.Wait()
}

func (r *Reconciler) fetch(ctx context.Context, id string) (models.RecallRecord, error) {
	if r.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
	}
	return r.source.FetchRecord(ctx, id)
}

// regenerate joins or starts the flight for id. The flight runs detached
// from ctx so an abandoned request does not cancel it.
func (r *Reconciler) regenerate(ctx context.Context, id string, live models.RecallRecord, cached models.CachedSummary, found bool) (models.ResolvedSummary, error) {
	c, leader := r.flights.join(id)
	if leader {
		r.pending.Add(1)
		go func() {
			defer r.pending.Done()
			r.runFlight(context.WithoutCancel(ctx), id, live, c)
		}()
	} else if found && !r.opts.WaitForFlight {
		// A copy past MaxStale is refused; wait for the flight instead.
		if res, err := r.serveStale(id, cached, models.StaleRegenerationInFlight); err == nil {
			return res, nil
		}
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		return models.ResolvedSummary{}, fmt.Errorf("%w: %v", models.ErrRecallUnavailable, ctx.Err())
	}

	switch {
	case c.err == nil && c.res.reason != models.StaleNone:
		return r.serveStale(id, c.res.entry, c.res.reason)
	case c.err == nil:
		return resolved(c.res.entry, c.res.source), nil
	case errors.Is(c.err, models.ErrStorageUnavailable):
		return models.ResolvedSummary{}, c.err
	case found:
		return r.serveStale(id, cached, models.StaleGenerationFailed)
	default:
		return models.ResolvedSummary{}, fmt.Errorf("%w: %w", models.ErrRecallUnavailable, c.err)
	}
}

func (r *Reconciler) runFlight(ctx context.Context, id string, live models.RecallRecord, c *call) {
	res, err := r.flight(ctx, id, live)
	r.flights.finish(id, c, res, err)
}

// flight regenerates the summary for live unless the cache already holds a
// matching one.
func (r *Reconciler) flight(ctx context.Context, id string, live models.RecallRecord) (flightResult, error) {
	logger := log.WithRecall("reconciler", id)

	// Another flight may have finished between the caller's read and join.
	current, found, err := r.store.Get(ctx, id)
	if err != nil {
		return flightResult{}, err
	}
	if found && models.SameStatus(current.Status(), live.Status()) {
		r.markVerified(id)
		return flightResult{entry: current, source: models.SourceCache}, nil
	}

	if r.opts.Locker != nil {
		release, err := r.opts.Locker.Acquire(ctx, id)
		switch {
		case errors.Is(err, models.ErrLockHeld) && found:
			logger.Debug().Msg("regeneration running on another instance")
			return flightResult{entry: current, reason: models.StaleRegenerationInFlight}, nil
		case errors.Is(err, models.ErrLockHeld):
			logger.Debug().Msg("regeneration lock held elsewhere, generating anyway")
		case err != nil:
			logger.Warn().Err(err).Msg("regeneration lock unavailable")
		default:
			defer release()
		}
	}

	genCtx := ctx
	if r.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, r.opts.GenerationTimeout)
		defer cancel()
	}

	start := r.opts.Now()
	gen, err := r.gen.Generate(genCtx, live)
	if err != nil {
		if !errors.Is(err, models.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
		}
		logger.Error().Err(err).Msg("summary generation failed")
		return flightResult{}, err
	}

	now := r.opts.Now().UTC()
	entry := models.CachedSummary{Record: live, Summary: gen.Summary, UpdatedAt: now}

	putCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.Put(putCtx, entry); err != nil {
		if !errors.Is(err, models.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
		}
		logger.Error().Err(err).Msg("cache write failed")
		return flightResult{}, err
	}
	r.forgetVerified(id)

	ev := models.HistoryEvent{
		RecallNumber: id,
		Trigger:      "new",
		Current:      live.Status(),
		Provider:     gen.Provider,
		LatencyMs:    now.Sub(start).Milliseconds(),
		CreatedAt:    now,
	}
	if found {
		ev.Trigger = "changed"
		ev.Previous = current.Status()
	}
	logger.Info().Str("trigger", ev.Trigger).Str("provider", gen.Provider).
		Int64("latency_ms", ev.LatencyMs).Msg("summary regenerated")
	r.record(ev)

	return flightResult{entry: entry, source: models.SourceGenerated}, nil
}

func (r *Reconciler) record(ev models.HistoryEvent) {
	if r.opts.History == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if err := r.opts.History.Log(context.Background(), ev); err != nil {
			r.logger.Warn().Err(err).Str("recall_number", ev.RecallNumber).Msg("history log failed")
		}
	}()
}

// serveStale returns cached as a fallback, or ErrRecallUnavailable when it
// was last confirmed longer ago than MaxStale.
func (r *Reconciler) serveStale(id string, cached models.CachedSummary, reason models.StaleReason) (models.ResolvedSummary, error) {
	if r.opts.MaxStale > 0 {
		age := r.opts.Now().Sub(r.lastVerified(id, cached))
		if age > r.opts.MaxStale {
			return models.ResolvedSummary{}, fmt.Errorf("%w: cached summary unconfirmed for %s (%s)",
				models.ErrRecallUnavailable, age.Round(time.Second), reason)
		}
	}
	return stale(cached, reason), nil
}

func (r *Reconciler) markVerified(id string) {
	r.mu.Lock()
	r.verified[id] = r.opts.Now()
	r.mu.Unlock()
}

func (r *Reconciler) forgetVerified(id string) {
	r.mu.Lock()
	delete(r.verified, id)
	r.mu.Unlock()
}

func (r *Reconciler) lastVerified(id string, cached models.CachedSummary) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.verified[id]
	if !ok {
		return cached.UpdatedAt
	}
	if !cached.UpdatedAt.Before(t) {
		delete(r.verified, id)
		return cached.UpdatedAt
	}
	return t
}

func resolved(e models.CachedSummary, src models.Source) models.ResolvedSummary {
	return models.ResolvedSummary{
		Record:    e.Record,
		Summary:   e.Summary,
		Source:    src,
		UpdatedAt: e.UpdatedAt,
	}
}

func stale(e models.CachedSummary, reason models.StaleReason) models.ResolvedSummary {
	res := resolved(e, models.SourceCache)
	res.Stale = true
	res.StaleReason = reason
	return res
}

func outcome(res models.ResolvedSummary, err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidIdentifier):
		return "invalid"
	case errors.Is(err, models.ErrRecallNotFound):
		return "not_found"
	case errors.Is(err, models.ErrRecallUnavailable):
		return "unavailable"
	case err != nil:
		return "error"
	case res.Stale:
		return "stale"
	case res.Source == models.SourceGenerated:
		return "generated"
	default:
		return "hit"
	}
}
