package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func entry(id, classification, text string, at time.Time) models.CachedSummary {
	return models.CachedSummary{
		Record: models.RecallRecord{
			RecallNumber:        id,
			ReportDate:          "2025-03-12",
			Classification:      classification,
			DistributionPattern: "Nationwide",
		},
		Summary:   models.Summary{Text: text},
		UpdatedAt: at,
	}
}

func TestPutAndGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put(ctx, entry("F-0543-2025", "Class II", "first", at)))

	got, ok, err := c.Get(ctx, "F-0543-2025")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Class II", got.Record.Classification)
	assert.Equal(t, "first", got.Summary.Text)
	assert.True(t, got.UpdatedAt.Equal(at))

	// key layout is shared with existing deployments
	assert.True(t, mr.Exists("recall:summary:F-0543-2025"))
	assert.Zero(t, mr.TTL("recall:summary:F-0543-2025"), "entries must not expire")

	_, ok, err = c.Get(ctx, "F-0001-2025")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, models.CacheStats{Entries: 1, Hits: 1, Misses: 1}, stats)
}

func TestPutOverwritesAndLists(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put(ctx, entry("F-0543-2025", "Class II", "first", at)))
	require.NoError(t, c.Put(ctx, entry("F-0600-2025", "Class III", "other", at.Add(time.Minute))))
	require.NoError(t, c.Put(ctx, entry("F-0543-2025", "Class I", "second", at.Add(time.Hour))))

	got, _, err := c.Get(ctx, "F-0543-2025")
	require.NoError(t, err)
	assert.Equal(t, "Class I", got.Record.Classification)
	assert.Equal(t, "second", got.Summary.Text)

	list, err := c.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "F-0543-2025", list[0].Record.RecallNumber)
	assert.Equal(t, "F-0600-2025", list[1].Record.RecallNumber)
}

func TestGetStorageUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "F-0543-2025")
	assert.True(t, errors.Is(err, models.ErrStorageUnavailable), "got %v", err)
}

func TestGetCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("recall:summary:F-0543-2025", "not json"))

	_, _, err := c.Get(context.Background(), "F-0543-2025")
	assert.True(t, errors.Is(err, models.ErrStorageUnavailable), "got %v", err)
}

func TestLocker(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	l := c.Locker(time.Minute)

	release, err := l.Acquire(ctx, "F-0543-2025")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrLockHeld)

	other, err := l.Acquire(ctx, "F-0600-2025")
	require.NoError(t, err, "locks are per recall")
	other()

	release()
	again, err := l.Acquire(ctx, "F-0543-2025")
	require.NoError(t, err)
	again()
}

func TestNewWithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Put(context.Background(), entry("F-0543-2025", "Class II", "x", time.Now())))
	assert.True(t, mr.Exists("recall:summary:F-0543-2025"))
}
