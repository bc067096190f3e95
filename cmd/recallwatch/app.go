package main

import (
	"context"
	"fmt"

	"github.com/pario-ai/recallwatch/pkg/cache/redis"
	"github.com/pario-ai/recallwatch/pkg/cache/sqlite"
	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/fda"
	"github.com/pario-ai/recallwatch/pkg/history"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/models"
	"github.com/pario-ai/recallwatch/pkg/reconciler"
	"github.com/pario-ai/recallwatch/pkg/summary"
)

// summaryStore is what both cache backends provide.
type summaryStore interface {
	reconciler.Store
	List(ctx context.Context, limit int) ([]models.CachedSummary, error)
	Stats() (models.CacheStats, error)
	Close() error
}

// app holds the wired components for one command invocation.
type app struct {
	cfg        *config.Config
	store      summaryStore
	history    *history.Logger
	upstream   *fda.Client
	reconciler *reconciler.Reconciler
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	return cfg, nil
}

// openStore opens the configured cache backend. The returned locker is nil
// unless the backend is shared between instances.
func openStore(ctx context.Context, cfg *config.Config) (summaryStore, reconciler.Locker, error) {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := redis.New(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
		return c, c.Locker(cfg.Cache.Redis.LockTTL), nil
	default:
		c, err := sqlite.New(cfg.Cache.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil, nil
	}
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, locker, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		upstream: fda.New(cfg.Upstream, nil),
	}

	opts := reconciler.OptionsFromConfig(cfg.Reconcile)
	opts.Locker = locker
	if cfg.History.Enabled {
		a.history, err = history.New(cfg.History)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
		opts.History = a.history
	}

	gen := summary.New(cfg.Generator, nil)
	a.reconciler = reconciler.New(a.upstream, store, gen, opts)
	return a, nil
}

func (a *app) Close() {
	a.reconciler.Wait()
	if a.history != nil {
		_ = a.history.Close()
	}
	_ = a.store.Close()
}
