package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/recallwatch/pkg/models"
)

// Cache is a recall summary cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
}

const createSummaryTable = `
CREATE TABLE IF NOT EXISTS recall_summaries (
	recall_number TEXT PRIMARY KEY,
	report_date TEXT NOT NULL,
	classification TEXT NOT NULL,
	distribution_pattern TEXT NOT NULL,
	record BLOB NOT NULL,
	summary TEXT NOT NULL,
	sections BLOB,
	updated_at DATETIME NOT NULL
);
`

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createSummaryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get retrieves the cached summary for a recall number.
func (c *Cache) Get(ctx context.Context, recallNumber string) (models.CachedSummary, bool, error) {
	var (
		record, sections []byte
		text             string
		updatedAt        time.Time
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT record, summary, sections, updated_at FROM recall_summaries WHERE recall_number = ?`,
		recallNumber,
	).Scan(&record, &text, &sections, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return models.CachedSummary{}, false, nil
	}
	if err != nil {
		return models.CachedSummary{}, false, fmt.Errorf("%w: cache get: %v", models.ErrStorageUnavailable, err)
	}

	entry := models.CachedSummary{
		Summary:   models.Summary{Text: text},
		UpdatedAt: updatedAt.UTC(),
	}
	if err := json.Unmarshal(record, &entry.Record); err != nil {
		return models.CachedSummary{}, false, fmt.Errorf("%w: decode cached record: %v", models.ErrStorageUnavailable, err)
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &entry.Summary.Sections); err != nil {
			return models.CachedSummary{}, false, fmt.Errorf("%w: decode cached sections: %v", models.ErrStorageUnavailable, err)
		}
	}

	c.hits.Add(1)
	return entry, true, nil
}

// Put stores an entry, replacing any previous one for the same recall.
// Status columns, record and summary go in a single statement.
func (c *Cache) Put(ctx context.Context, entry models.CachedSummary) error {
	record, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	sections, err := json.Marshal(entry.Summary.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	status := entry.Status()

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recall_summaries
		 (recall_number, report_date, classification, distribution_pattern, record, summary, sections, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Record.RecallNumber, status.ReportDate, status.Classification, status.DistributionPattern,
		record, entry.Summary.Text, sections, updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: cache put: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// List returns up to limit entries, most recently written first.
func (c *Cache) List(ctx context.Context, limit int) ([]models.CachedSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT record, summary, updated_at FROM recall_summaries ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: cache list: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []models.CachedSummary
	for rows.Next() {
		var (
			record []byte
			e      models.CachedSummary
		)
		if err := rows.Scan(&record, &e.Summary.Text, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		if err := json.Unmarshal(record, &e.Record); err != nil {
			return nil, fmt.Errorf("decode cached record: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM recall_summaries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
