package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/models"
)

const (
	summaryPrefix = "recall:summary:"
	lockPrefix    = "recall:lock:"
	indexKey      = "recall:summaries"
)

// Cache is a recall summary cache backed by Redis. Each entry is one JSON
// document under recall:summary:{id}, so a SET replaces status fields and
// summary together. Entries never expire.
type Cache struct {
	rdb    *goredis.Client
	locker *redislock.Client
	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewWithClient(rdb), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client) *Cache {
	return &Cache{rdb: rdb, locker: redislock.New(rdb)}
}

// Get retrieves the cached summary for a recall number.
func (c *Cache) Get(ctx context.Context, recallNumber string) (models.CachedSummary, bool, error) {
	val, err := c.rdb.Get(ctx, summaryPrefix+recallNumber).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.misses.Add(1)
		return models.CachedSummary{}, false, nil
	}
	if err != nil {
		return models.CachedSummary{}, false, fmt.Errorf("%w: redis get: %v", models.ErrStorageUnavailable, err)
	}

	var entry models.CachedSummary
	if err := json.Unmarshal(val, &entry); err != nil {
		return models.CachedSummary{}, false, fmt.Errorf("%w: decode cached entry: %v", models.ErrStorageUnavailable, err)
	}
	c.hits.Add(1)
	return entry, true, nil
}

// Put stores an entry, replacing any previous one for the same recall.
func (c *Cache) Put(ctx context.Context, entry models.CachedSummary) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached entry: %w", err)
	}

	id := entry.Record.RecallNumber
	_, err = c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, summaryPrefix+id, data, 0)
		p.ZAdd(ctx, indexKey, goredis.Z{Score: float64(entry.UpdatedAt.Unix()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis put: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// List returns up to limit entries, most recently written first.
func (c *Cache) List(ctx context.Context, limit int) ([]models.CachedSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := c.rdb.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis list: %v", models.ErrStorageUnavailable, err)
	}

	entries := make([]models.CachedSummary, 0, len(ids))
	for _, id := range ids {
		val, err := c.rdb.Get(ctx, summaryPrefix+id).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: redis get %s: %v", models.ErrStorageUnavailable, id, err)
		}
		var e models.CachedSummary
		if err := json.Unmarshal(val, &e); err != nil {
			return nil, fmt.Errorf("decode cached entry %s: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	count, err := c.rdb.ZCard(context.Background(), indexKey).Result()
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Locker guards regeneration of one recall across instances sharing the
// same Redis.
type Locker struct {
	locker *redislock.Client
	ttl    time.Duration
}

// Locker returns a regeneration lock backed by the cache's Redis client.
func (c *Cache) Locker(ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Locker{locker: c.locker, ttl: ttl}
}

// Acquire obtains the lock for recallNumber. It returns models.ErrLockHeld
// when another holder has it.
func (l *Locker) Acquire(ctx context.Context, recallNumber string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockPrefix+recallNumber, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, models.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock: %w", err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
