// Package history keeps an append-only SQLite log of summary regenerations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/models"
)

// Logger writes and queries regeneration events in a dedicated SQLite database.
type Logger struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
}

// New opens the history database and creates the schema.
func New(cfg config.HistoryConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	l := &Logger{
		db:            db,
		retentionDays: cfg.RetentionDays,
		done:          make(chan struct{}),
	}
	if l.retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS regenerations (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		recall_number         TEXT NOT NULL,
		trigger               TEXT NOT NULL,
		prev_report_date      TEXT,
		prev_classification   TEXT,
		prev_distribution     TEXT,
		report_date           TEXT NOT NULL,
		classification        TEXT NOT NULL,
		distribution_pattern  TEXT NOT NULL,
		provider              TEXT,
		latency_ms            INTEGER,
		created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_regen_recall ON regenerations(recall_number)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_regen_created ON regenerations(created_at)`)
	return err
}

// Log appends a regeneration event.
func (l *Logger) Log(ctx context.Context, ev models.HistoryEvent) error {
	if l == nil || l.db == nil {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO regenerations
		(recall_number, trigger, prev_report_date, prev_classification, prev_distribution,
		 report_date, classification, distribution_pattern, provider, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RecallNumber, ev.Trigger,
		ev.Previous.ReportDate, ev.Previous.Classification, ev.Previous.DistributionPattern,
		ev.Current.ReportDate, ev.Current.Classification, ev.Current.DistributionPattern,
		ev.Provider, ev.LatencyMs, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("log regeneration: %w", err)
	}
	return nil
}

// Query returns events matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.HistoryQueryOpts) ([]models.HistoryEvent, error) {
	q := `SELECT id, recall_number, trigger, prev_report_date, prev_classification, prev_distribution,
		report_date, classification, distribution_pattern, provider, latency_ms, created_at
		FROM regenerations WHERE 1=1`
	var args []any

	if opts.RecallNumber != "" {
		q += " AND recall_number = ?"
		args = append(args, opts.RecallNumber)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	q += " ORDER BY created_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []models.HistoryEvent
	for rows.Next() {
		var e models.HistoryEvent
		var prevDate, prevClass, prevDist, provider sql.NullString
		if err := rows.Scan(
			&e.ID, &e.RecallNumber, &e.Trigger,
			&prevDate, &prevClass, &prevDist,
			&e.Current.ReportDate, &e.Current.Classification, &e.Current.DistributionPattern,
			&provider, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Previous = models.StatusFields{
			ReportDate:          prevDate.String,
			Classification:      prevClass.String,
			DistributionPattern: prevDist.String,
		}
		e.Provider = provider.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats returns regeneration counts grouped by day and trigger.
func (l *Logger) Stats(ctx context.Context) ([]models.HistoryStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT date(created_at) as day, trigger, count(*) as cnt
		 FROM regenerations GROUP BY day, trigger ORDER BY day DESC, trigger`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	var stats []models.HistoryStat
	for rows.Next() {
		var s models.HistoryStat
		var day sql.NullString
		if err := rows.Scan(&day, &s.Trigger, &s.Count); err != nil {
			return nil, fmt.Errorf("scan history stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx, `DELETE FROM regenerations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
